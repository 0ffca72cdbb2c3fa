package integrators

import (
	"errors"
	"fmt"
)

// Failure reasons.
var (
	// ErrMaxSteps indicates the step budget ran out before reaching tf.
	ErrMaxSteps = errors.New("integrators: maximum number of steps exceeded")

	// ErrStepUnderflow indicates the adaptive step size collapsed below
	// the resolvable time resolution.
	ErrStepUnderflow = errors.New("integrators: step size underflow")

	// ErrStateDiverged indicates a NaN or Inf state component.
	ErrStateDiverged = errors.New("integrators: state diverged")
)

// Failure reports an aborted integration. It carries the furthest time
// reached and the tolerance context so callers can decide whether a
// retry under different tolerances is worth attempting; the integrator
// itself never retries and never returns a partial state.
type Failure struct {
	T      float64 // furthest time reached
	Steps  int     // step attempts consumed
	RelTol float64
	AbsTol float64
	Err    error // one of the sentinel reasons above, or a context error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("%v at t=%g after %d steps (reltol=%g, abstol=%g)",
		e.Err, e.T, e.Steps, e.RelTol, e.AbsTol)
}

func (e *Failure) Unwrap() error { return e.Err }
