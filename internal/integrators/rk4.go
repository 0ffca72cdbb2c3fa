package integrators

import (
	"context"
	"fmt"

	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// RK4 is a fixed-step classical Runge-Kutta integrator over the same
// (t, x, q) right-hand side contract as RK45. It has no error control and
// no sensitivity propagation; it exists for cheap deterministic
// propagation such as initial-guess simulation.
type RK4 struct {
	rhs *fx.Function
	nx  int
	nq  int
}

func NewRK4(rhs *fx.Function) (*RK4, error) {
	if rhs.NumInputs() != 3 || rhs.InputSize(0) != 1 {
		return nil, fmt.Errorf("%w: integrator rhs %q must have inputs (t, x, q)",
			sx.ErrShapeMismatch, rhs.Name())
	}
	nx := rhs.InputSize(1)
	if nx == 0 || rhs.NumOutputs() != nx {
		return nil, fmt.Errorf("%w: integrator rhs %q maps %d states to %d derivatives",
			sx.ErrShapeMismatch, rhs.Name(), nx, rhs.NumOutputs())
	}
	return &RK4{rhs: rhs, nx: nx, nq: rhs.InputSize(2)}, nil
}

// Integrate advances x0 from t0 to tf in the given number of equal steps.
func (r *RK4) Integrate(ctx context.Context, t0, tf float64, steps int, x0, q []float64) ([]float64, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("integrators: step count must be positive, got %d", steps)
	}
	if len(x0) != r.nx {
		return nil, fmt.Errorf("%w: initial state has length %d, want %d",
			sx.ErrShapeMismatch, len(x0), r.nx)
	}
	if len(q) != r.nq {
		return nil, fmt.Errorf("%w: parameter vector has length %d, want %d",
			sx.ErrShapeMismatch, len(q), r.nq)
	}

	nx := r.nx
	x := append([]float64(nil), x0...)
	k1 := make([]float64, nx)
	k2 := make([]float64, nx)
	k3 := make([]float64, nx)
	k4 := make([]float64, nx)
	scratch := make([]float64, nx)
	tArg := make([]float64, 1)

	dt := (tf - t0) / float64(steps)
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		t := t0 + float64(i)*dt

		tArg[0] = t
		if err := r.rhs.CallInto(k1, tArg, x, q); err != nil {
			return nil, err
		}
		for c := range scratch {
			scratch[c] = x[c] + dt*0.5*k1[c]
		}
		tArg[0] = t + dt*0.5
		if err := r.rhs.CallInto(k2, tArg, scratch, q); err != nil {
			return nil, err
		}
		for c := range scratch {
			scratch[c] = x[c] + dt*0.5*k2[c]
		}
		if err := r.rhs.CallInto(k3, tArg, scratch, q); err != nil {
			return nil, err
		}
		for c := range scratch {
			scratch[c] = x[c] + dt*k3[c]
		}
		tArg[0] = t + dt
		if err := r.rhs.CallInto(k4, tArg, scratch, q); err != nil {
			return nil, err
		}

		dt6 := dt / 6.0
		for c := range x {
			x[c] += dt6 * (k1[c] + 2*k2[c] + 2*k3[c] + k4[c])
		}
	}
	return x, nil
}
