package nlp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidProblem reports a structurally broken problem definition.
	ErrInvalidProblem = errors.New("nlp: invalid problem")

	// ErrUnknownSolver reports a solver name with no registered factory.
	ErrUnknownSolver = errors.New("nlp: unknown solver")
)

// Entry is one structural nonzero of the constraint Jacobian.
type Entry struct {
	Row int
	Col int
}

// Problem is a nonlinear program
//
//	min  f(x)
//	s.t. lbg <= g(x) <= ubg
//	     lbx <=  x   <= ubx
//
// Evaluation closures must be safe for repeated calls with different
// arguments but are never called concurrently by a solver. Jacobian
// fills vals in the order of JacPattern. Nil bound slices mean
// unbounded; individual entries may be +-Inf.
type Problem struct {
	Name string

	NumVars int
	NumCons int

	Objective   func(x []float64) (float64, error)
	Gradient    func(x, grad []float64) error
	Constraints func(x, g []float64) error
	JacPattern  []Entry
	Jacobian    func(x, vals []float64) error

	LBx []float64
	UBx []float64
	LBg []float64
	UBg []float64

	// X0 is the starting point. Solvers push it into the interior of
	// the bounds, so it does not need to be strictly feasible.
	X0 []float64
}

// Validate checks dimensions, closure presence and bound ordering.
func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("%w: %d variables", ErrInvalidProblem, p.NumVars)
	}
	if p.NumCons < 0 {
		return fmt.Errorf("%w: %d constraints", ErrInvalidProblem, p.NumCons)
	}
	if p.Objective == nil || p.Gradient == nil {
		return fmt.Errorf("%w: objective and gradient are required", ErrInvalidProblem)
	}
	if p.NumCons > 0 && (p.Constraints == nil || p.Jacobian == nil) {
		return fmt.Errorf("%w: constraints and jacobian are required for %d rows",
			ErrInvalidProblem, p.NumCons)
	}
	if len(p.X0) != p.NumVars {
		return fmt.Errorf("%w: starting point has %d entries, want %d",
			ErrInvalidProblem, len(p.X0), p.NumVars)
	}
	if err := checkBounds("x", p.LBx, p.UBx, p.NumVars); err != nil {
		return err
	}
	if err := checkBounds("g", p.LBg, p.UBg, p.NumCons); err != nil {
		return err
	}
	for k, e := range p.JacPattern {
		if e.Row < 0 || e.Row >= p.NumCons || e.Col < 0 || e.Col >= p.NumVars {
			return fmt.Errorf("%w: jacobian entry %d at (%d,%d) out of range",
				ErrInvalidProblem, k, e.Row, e.Col)
		}
	}
	return nil
}

func checkBounds(what string, lb, ub []float64, n int) error {
	if lb != nil && len(lb) != n {
		return fmt.Errorf("%w: lb%s has %d entries, want %d", ErrInvalidProblem, what, len(lb), n)
	}
	if ub != nil && len(ub) != n {
		return fmt.Errorf("%w: ub%s has %d entries, want %d", ErrInvalidProblem, what, len(ub), n)
	}
	for i := 0; i < n; i++ {
		l, u := boundAt(lb, i, math.Inf(-1)), boundAt(ub, i, math.Inf(1))
		if l > u {
			return fmt.Errorf("%w: %s[%d] has lb %v > ub %v", ErrInvalidProblem, what, i, l, u)
		}
		if math.IsNaN(l) || math.IsNaN(u) {
			return fmt.Errorf("%w: %s[%d] has a NaN bound", ErrInvalidProblem, what, i)
		}
	}
	return nil
}

func boundAt(b []float64, i int, def float64) float64 {
	if b == nil {
		return def
	}
	return b[i]
}
