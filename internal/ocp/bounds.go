package ocp

import (
	"context"
	"fmt"
)

// locked runs fn under the transcriber mutex, rejecting the call while
// a solve is running.
func (t *Transcriber) locked(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.solving {
		return ErrSolveInProgress
	}
	return fn()
}

func (t *Transcriber) checkLen(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, want %d",
			ErrBoundsShapeMismatch, what, got, want)
	}
	return nil
}

// SetInitialState pins the state at node 0.
func (t *Transcriber) SetInitialState(x0 []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("initial state", len(x0), t.nx); err != nil {
			return err
		}
		copy(t.lbx[:t.nx], x0)
		copy(t.ubx[:t.nx], x0)
		copy(t.guess[:t.nx], x0)
		return nil
	})
}

// SetStateBounds applies bounds to the state at every node.
func (t *Transcriber) SetStateBounds(lb, ub []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("state lower bounds", len(lb), t.nx); err != nil {
			return err
		}
		if err := t.checkLen("state upper bounds", len(ub), t.nx); err != nil {
			return err
		}
		for k := 0; k <= t.intervals; k++ {
			copy(t.lbx[t.xOffset(k):], lb)
			copy(t.ubx[t.xOffset(k):], ub)
		}
		return nil
	})
}

// SetStateBoundsAt applies bounds to the state at one node.
func (t *Transcriber) SetStateBoundsAt(k int, lb, ub []float64) error {
	return t.locked(func() error {
		if k < 0 || k > t.intervals {
			return fmt.Errorf("%w: node %d out of range", ErrBoundsShapeMismatch, k)
		}
		if err := t.checkLen("state lower bounds", len(lb), t.nx); err != nil {
			return err
		}
		if err := t.checkLen("state upper bounds", len(ub), t.nx); err != nil {
			return err
		}
		copy(t.lbx[t.xOffset(k):], lb)
		copy(t.ubx[t.xOffset(k):], ub)
		return nil
	})
}

// SetControlBounds applies bounds to the control on every interval.
func (t *Transcriber) SetControlBounds(lb, ub []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("control lower bounds", len(lb), t.nu); err != nil {
			return err
		}
		if err := t.checkLen("control upper bounds", len(ub), t.nu); err != nil {
			return err
		}
		for k := 0; k < t.intervals; k++ {
			copy(t.lbx[t.uOffset(k):], lb)
			copy(t.ubx[t.uOffset(k):], ub)
		}
		return nil
	})
}

// SetControlBoundsAt applies bounds to the control on one interval.
func (t *Transcriber) SetControlBoundsAt(k int, lb, ub []float64) error {
	return t.locked(func() error {
		if k < 0 || k >= t.intervals {
			return fmt.Errorf("%w: interval %d out of range", ErrBoundsShapeMismatch, k)
		}
		if err := t.checkLen("control lower bounds", len(lb), t.nu); err != nil {
			return err
		}
		if err := t.checkLen("control upper bounds", len(ub), t.nu); err != nil {
			return err
		}
		copy(t.lbx[t.uOffset(k):t.uOffset(k)+t.nu], lb)
		copy(t.ubx[t.uOffset(k):t.uOffset(k)+t.nu], ub)
		return nil
	})
}

// SetParameterBounds applies bounds to the parameters.
func (t *Transcriber) SetParameterBounds(lb, ub []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("parameter lower bounds", len(lb), t.np); err != nil {
			return err
		}
		if err := t.checkLen("parameter upper bounds", len(ub), t.np); err != nil {
			return err
		}
		copy(t.lbx[t.pOffset():], lb)
		copy(t.ubx[t.pOffset():], ub)
		return nil
	})
}

// SetPathBounds applies bounds to the path constraint rows, enforced at
// the first node of every interval.
func (t *Transcriber) SetPathBounds(lb, ub []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("path lower bounds", len(lb), t.nh); err != nil {
			return err
		}
		if err := t.checkLen("path upper bounds", len(ub), t.nh); err != nil {
			return err
		}
		copy(t.lbh, lb)
		copy(t.ubh, ub)
		return nil
	})
}

// SetStateGuess seeds the state guess at every node.
func (t *Transcriber) SetStateGuess(x []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("state guess", len(x), t.nx); err != nil {
			return err
		}
		for k := 0; k <= t.intervals; k++ {
			copy(t.guess[t.xOffset(k):], x)
		}
		return nil
	})
}

// SetStateGuessAt seeds the state guess at one node.
func (t *Transcriber) SetStateGuessAt(k int, x []float64) error {
	return t.locked(func() error {
		if k < 0 || k > t.intervals {
			return fmt.Errorf("%w: node %d out of range", ErrBoundsShapeMismatch, k)
		}
		if err := t.checkLen("state guess", len(x), t.nx); err != nil {
			return err
		}
		copy(t.guess[t.xOffset(k):t.xOffset(k)+t.nx], x)
		return nil
	})
}

// SetControlGuess seeds the control guess on every interval.
func (t *Transcriber) SetControlGuess(u []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("control guess", len(u), t.nu); err != nil {
			return err
		}
		for k := 0; k < t.intervals; k++ {
			copy(t.guess[t.uOffset(k):], u)
		}
		return nil
	})
}

// SetParameterGuess seeds the parameter guess.
func (t *Transcriber) SetParameterGuess(p []float64) error {
	return t.locked(func() error {
		if err := t.checkLen("parameter guess", len(p), t.np); err != nil {
			return err
		}
		copy(t.guess[t.pOffset():], p)
		return nil
	})
}

// SimulateGuess replaces the state guesses at nodes 1..N with a
// fixed-step simulation from the node-0 guess under the current control
// and parameter guesses. A consistent guess shortens the first solver
// iterations considerably for unstable dynamics.
func (t *Transcriber) SimulateGuess(ctx context.Context) error {
	return t.locked(func() error {
		q := make([]float64, t.nu+t.np)
		copy(q[t.nu:], t.guess[t.pOffset():])
		x := append([]float64(nil), t.guess[:t.nx]...)
		for k := 0; k < t.intervals; k++ {
			copy(q[:t.nu], t.guess[t.uOffset(k):t.uOffset(k)+t.nu])
			xf, err := t.rk4.Integrate(ctx, t.cfg.Grid.Times[k], t.cfg.Grid.Times[k+1],
				rk4GuessSteps, x, q)
			if err != nil {
				return fmt.Errorf("ocp: guess simulation on interval %d: %w", k, err)
			}
			copy(t.guess[t.xOffset(k+1):t.xOffset(k+1)+t.nx], xf)
			x = xf
		}
		return nil
	})
}
