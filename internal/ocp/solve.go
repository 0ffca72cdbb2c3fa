package ocp

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/trajopt/internal/nlp"
)

// Solve transcribes the problem and runs the solver. The iteration
// always starts from the stored guess, never from a previous solution.
// A non-converged solve returns the best iterate together with an error
// wrapping ErrSolverNonConvergence or ErrSolverInfeasible; an evaluation
// failure, an integration breakdown included, returns the last attempted
// iterate together with the wrapped cause.
func (t *Transcriber) Solve(ctx context.Context) (*Solution, error) {
	t.mu.Lock()
	if t.solving {
		t.mu.Unlock()
		return nil, ErrSolveInProgress
	}
	t.solving = true
	prob := t.buildProblem(ctx)
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.solving = false
		t.mu.Unlock()
	}()

	t.log.Info("solving transcribed problem",
		zap.Int("intervals", t.intervals),
		zap.Int("variables", prob.NumVars),
		zap.Int("constraints", prob.NumCons),
		zap.Int("jacobian nonzeros", len(prob.JacPattern)))

	raw, err := t.solver.Solve(ctx, prob)
	if raw == nil {
		return nil, fmt.Errorf("ocp: solve: %w", err)
	}

	sol := &Solution{
		grid:       t.cfg.Grid,
		nx:         t.nx,
		nu:         t.nu,
		np:         t.np,
		nh:         t.nh,
		primal:     raw.Primal,
		dualBounds: raw.DualBounds,
		dualCons:   raw.DualCons,
		objective:  raw.Objective,
		status:     raw.Status,
		iterations: raw.Iterations,
		residual:   raw.Residual,
	}
	if err != nil {
		return sol, fmt.Errorf("ocp: solve: %w", err)
	}

	switch raw.Status {
	case nlp.StatusConverged:
		return sol, nil
	case nlp.StatusInfeasible:
		return sol, fmt.Errorf("%w: after %d iterations", ErrSolverInfeasible, raw.Iterations)
	default:
		return sol, fmt.Errorf("%w: status %v after %d iterations (residual %e)",
			ErrSolverNonConvergence, raw.Status, raw.Iterations, raw.Residual)
	}
}

// buildProblem assembles the nlp closures over the current bounds and
// guess. Copies are taken under the transcriber lock so later setter
// calls cannot race a running solve.
func (t *Transcriber) buildProblem(ctx context.Context) *nlp.Problem {
	n := t.NumVars()
	m := t.NumCons()

	lbg := make([]float64, m)
	ubg := make([]float64, m)
	for k := 0; k <= t.intervals; k++ {
		row0 := t.intervals*t.nx + k*t.nh
		for i := 0; i < t.nh; i++ {
			lbg[row0+i] = t.lbh[i]
			ubg[row0+i] = t.ubh[i]
		}
	}

	return &nlp.Problem{
		Name:        t.cfg.Dynamics.Name(),
		NumVars:     n,
		NumCons:     m,
		Objective:   t.objective,
		Gradient:    t.gradient,
		Constraints: func(x, g []float64) error { return t.constraints(ctx, x, g) },
		JacPattern:  t.pattern,
		Jacobian:    func(x, vals []float64) error { return t.jacobian(ctx, x, vals) },
		LBx:         append([]float64(nil), t.lbx...),
		UBx:         append([]float64(nil), t.ubx...),
		LBg:         lbg,
		UBg:         ubg,
		X0:          append([]float64(nil), t.guess...),
	}
}

// constraints evaluates the continuity and path rows. Intervals are
// independent and write disjoint regions of g, so they run in parallel
// without locking.
func (t *Transcriber) constraints(ctx context.Context, x, g []float64) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.workers)
	for k := 0; k < t.intervals; k++ {
		k := k
		eg.Go(func() error {
			xk := x[t.xOffset(k) : t.xOffset(k)+t.nx]
			uk := x[t.uOffset(k) : t.uOffset(k)+t.nu]
			pv := x[t.pOffset():]
			q := make([]float64, t.nu+t.np)
			copy(q, uk)
			copy(q[t.nu:], pv)

			res, err := t.rk45.Integrate(ctx, t.cfg.Grid.Times[k], t.cfg.Grid.Times[k+1], xk, q)
			if err != nil {
				return fmt.Errorf("ocp: interval %d: %w", k, err)
			}
			row0 := k * t.nx
			for i := 0; i < t.nx; i++ {
				g[row0+i] = x[t.xOffset(k+1)+i] - res.XF[i]
			}

			if t.nh > 0 {
				rowH := t.intervals*t.nx + k*t.nh
				tk := []float64{t.cfg.Grid.Times[k]}
				if err := t.cfg.Path.CallInto(g[rowH:rowH+t.nh], tk, xk, uk, pv); err != nil {
					return fmt.Errorf("ocp: path at node %d: %w", k, err)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if t.nh > 0 {
		n := t.intervals
		rowH := n*t.nx + n*t.nh
		tN, xN, uN, pv := t.pathPoint(x, n)
		if err := t.cfg.Path.CallInto(g[rowH:rowH+t.nh], tN, xN, uN, pv); err != nil {
			return fmt.Errorf("ocp: path at node %d: %w", n, err)
		}
	}
	return nil
}

// pathPoint returns the evaluation point of the path rows at node k.
func (t *Transcriber) pathPoint(x []float64, k int) (tk, xk, uk, pv []float64) {
	ku := pathControl(k, t.intervals)
	return []float64{t.cfg.Grid.Times[k]},
		x[t.xOffset(k) : t.xOffset(k)+t.nx],
		x[t.uOffset(ku) : t.uOffset(ku)+t.nu],
		x[t.pOffset():]
}

// jacobian fills the nonzero values in pattern order. The continuity
// blocks come from the integrator sensitivities, the path blocks from
// the symbolic Jacobians.
func (t *Transcriber) jacobian(ctx context.Context, x, vals []float64) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.workers)
	for k := 0; k < t.intervals; k++ {
		k := k
		eg.Go(func() error {
			xk := x[t.xOffset(k) : t.xOffset(k)+t.nx]
			uk := x[t.uOffset(k) : t.uOffset(k)+t.nu]
			pv := x[t.pOffset():]
			q := make([]float64, t.nu+t.np)
			copy(q, uk)
			copy(q[t.nu:], pv)

			_, sens, err := t.rk45.IntegrateSens(ctx, t.cfg.Grid.Times[k], t.cfg.Grid.Times[k+1], xk, q)
			if err != nil {
				return fmt.Errorf("ocp: interval %d: %w", k, err)
			}

			off := k * t.contValsPer
			for i := 0; i < t.nx; i++ {
				for j := 0; j < t.nx; j++ {
					vals[off] = -sens.DxfDx0.At(i, j)
					off++
				}
			}
			for i := 0; i < t.nx; i++ {
				for j := 0; j < t.nu; j++ {
					vals[off] = -sens.DxfDq.At(i, j)
					off++
				}
			}
			for i := 0; i < t.nx; i++ {
				for j := 0; j < t.np; j++ {
					vals[off] = -sens.DxfDq.At(i, t.nu+j)
					off++
				}
			}
			for i := 0; i < t.nx; i++ {
				vals[off] = 1
				off++
			}

			if t.nh > 0 {
				if err := t.pathJacInto(vals, x, k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if t.nh > 0 {
		return t.pathJacInto(vals, x, t.intervals)
	}
	return nil
}

// pathJacInto writes the path Jacobian blocks of node k into vals.
func (t *Transcriber) pathJacInto(vals, x []float64, k int) error {
	tk, xk, uk, pv := t.pathPoint(x, k)
	offH := t.pathValsBase + k*t.pathValsPer
	if t.pathJacX != nil {
		if err := t.pathJacX.CallInto(vals[offH:offH+t.nh*t.nx], tk, xk, uk, pv); err != nil {
			return err
		}
	}
	offH += t.nh * t.nx
	if t.pathJacU != nil {
		if err := t.pathJacU.CallInto(vals[offH:offH+t.nh*t.nu], tk, xk, uk, pv); err != nil {
			return err
		}
	}
	offH += t.nh * t.nu
	if t.pathJacP != nil {
		if err := t.pathJacP.CallInto(vals[offH:offH+t.nh*t.np], tk, xk, uk, pv); err != nil {
			return err
		}
	}
	return nil
}

// objective evaluates the Mayer term plus a trapezoidal quadrature of
// the Lagrange term with the control held constant over each interval.
func (t *Transcriber) objective(x []float64) (float64, error) {
	pv := x[t.pOffset():]
	total := 0.0
	if t.cfg.Mayer != nil {
		xN := x[t.xOffset(t.intervals) : t.xOffset(t.intervals)+t.nx]
		out, err := t.cfg.Mayer.Call(xN, pv)
		if err != nil {
			return 0, err
		}
		total += out[0]
	}
	if t.cfg.Lagrange == nil {
		return total, nil
	}

	var scratch [1]float64
	for k := 0; k < t.intervals; k++ {
		t0, t1 := t.cfg.Grid.Times[k], t.cfg.Grid.Times[k+1]
		xk := x[t.xOffset(k) : t.xOffset(k)+t.nx]
		xk1 := x[t.xOffset(k+1) : t.xOffset(k+1)+t.nx]
		uk := x[t.uOffset(k) : t.uOffset(k)+t.nu]

		if err := t.cfg.Lagrange.CallInto(scratch[:], []float64{t0}, xk, uk, pv); err != nil {
			return 0, err
		}
		l0 := scratch[0]
		if err := t.cfg.Lagrange.CallInto(scratch[:], []float64{t1}, xk1, uk, pv); err != nil {
			return 0, err
		}
		total += 0.5 * (t1 - t0) * (l0 + scratch[0])
	}
	return total, nil
}

// gradient accumulates the exact objective gradient from the symbolic
// Jacobians of the Mayer and Lagrange terms.
func (t *Transcriber) gradient(x, grad []float64) error {
	for i := range grad {
		grad[i] = 0
	}
	pv := x[t.pOffset():]

	if t.cfg.Mayer != nil {
		xN := x[t.xOffset(t.intervals) : t.xOffset(t.intervals)+t.nx]
		if t.mayerJacX != nil {
			if err := t.mayerJacX.CallInto(grad[t.xOffset(t.intervals):t.xOffset(t.intervals)+t.nx], xN, pv); err != nil {
				return err
			}
		}
		if t.mayerJacP != nil {
			if err := t.mayerJacP.CallInto(grad[t.pOffset():], xN, pv); err != nil {
				return err
			}
		}
	}
	if t.cfg.Lagrange == nil {
		return nil
	}

	bufX := make([]float64, t.nx)
	bufU := make([]float64, t.nu)
	bufP := make([]float64, t.np)
	addInto := func(dst []float64, src []float64, w float64) {
		for i := range src {
			dst[i] += w * src[i]
		}
	}
	for k := 0; k < t.intervals; k++ {
		t0, t1 := t.cfg.Grid.Times[k], t.cfg.Grid.Times[k+1]
		w := 0.5 * (t1 - t0)
		xk := x[t.xOffset(k) : t.xOffset(k)+t.nx]
		xk1 := x[t.xOffset(k+1) : t.xOffset(k+1)+t.nx]
		uk := x[t.uOffset(k) : t.uOffset(k)+t.nu]

		for _, pt := range []struct {
			tv float64
			xv []float64
			at int
		}{{t0, xk, k}, {t1, xk1, k + 1}} {
			tv := []float64{pt.tv}
			if t.lagJacX != nil {
				if err := t.lagJacX.CallInto(bufX, tv, pt.xv, uk, pv); err != nil {
					return err
				}
				addInto(grad[t.xOffset(pt.at):], bufX, w)
			}
			if t.lagJacU != nil {
				if err := t.lagJacU.CallInto(bufU, tv, pt.xv, uk, pv); err != nil {
					return err
				}
				addInto(grad[t.uOffset(k):], bufU, w)
			}
			if t.lagJacP != nil {
				if err := t.lagJacP.CallInto(bufP, tv, pt.xv, uk, pv); err != nil {
					return err
				}
				addInto(grad[t.pOffset():], bufP, w)
			}
		}
	}
	return nil
}
