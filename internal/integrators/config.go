package integrators

import "fmt"

// Config holds every recognized integrator option. Tolerances are
// mandatory inputs: they bound the accuracy of anything built on top of
// the integrator, so there is no silent default of convenience.
type Config struct {
	// RelTol and AbsTol weigh the local error estimate per component as
	// AbsTol + RelTol*|x|.
	RelTol float64
	AbsTol float64

	// MaxSteps bounds the number of internal step attempts (accepted and
	// rejected) per integration.
	MaxSteps int

	// InitialStep is the first trial step size. Zero selects a fraction
	// of the interval length.
	InitialStep float64

	// StepsPerCheckpoint records a state checkpoint every that many
	// accepted steps. Zero disables checkpointing.
	StepsPerCheckpoint int

	// Step-size controller coefficients.
	Safety   float64
	MinScale float64
	MaxScale float64
}

// DefaultConfig returns a configuration suitable for non-stiff problems at
// moderate accuracy.
func DefaultConfig() Config {
	return Config{
		RelTol:   1e-8,
		AbsTol:   1e-8,
		MaxSteps: 10000,
		Safety:   0.9,
		MinScale: 0.2,
		MaxScale: 10.0,
	}
}

// Validate rejects out-of-range options before any numerical work.
func (c Config) Validate() error {
	if c.RelTol <= 0 {
		return fmt.Errorf("integrators: reltol must be positive, got %g", c.RelTol)
	}
	if c.AbsTol <= 0 {
		return fmt.Errorf("integrators: abstol must be positive, got %g", c.AbsTol)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("integrators: max steps must be positive, got %d", c.MaxSteps)
	}
	if c.InitialStep < 0 {
		return fmt.Errorf("integrators: initial step must be non-negative, got %g", c.InitialStep)
	}
	if c.StepsPerCheckpoint < 0 {
		return fmt.Errorf("integrators: steps per checkpoint must be non-negative, got %d", c.StepsPerCheckpoint)
	}
	if c.Safety <= 0 || c.Safety >= 1 {
		return fmt.Errorf("integrators: safety factor must be in (0,1), got %g", c.Safety)
	}
	if c.MinScale <= 0 || c.MaxScale < 1 || c.MinScale >= 1 {
		return fmt.Errorf("integrators: step scale bounds (%g, %g) out of range", c.MinScale, c.MaxScale)
	}
	return nil
}
