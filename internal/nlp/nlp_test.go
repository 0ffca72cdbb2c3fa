package nlp

import (
	"context"
	"errors"
	"math"
	"testing"
)

func solver(t *testing.T, opts Options) Solver {
	t.Helper()
	s, err := DefaultRegistry().New("interior-point", opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInteriorPoint_EqualityQP(t *testing.T) {
	// min (x0-1)^2 + (x1-2)^2  s.t.  x0 + x1 = 1
	p := &Problem{
		Name:    "equality-qp",
		NumVars: 2,
		NumCons: 1,
		Objective: func(x []float64) (float64, error) {
			return (x[0]-1)*(x[0]-1) + (x[1]-2)*(x[1]-2), nil
		},
		Gradient: func(x, grad []float64) error {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 2 * (x[1] - 2)
			return nil
		},
		Constraints: func(x, g []float64) error {
			g[0] = x[0] + x[1]
			return nil
		},
		JacPattern: []Entry{{0, 0}, {0, 1}},
		Jacobian: func(x, vals []float64) error {
			vals[0], vals[1] = 1, 1
			return nil
		},
		LBg: []float64{1},
		UBg: []float64{1},
		X0:  []float64{5, -3},
	}

	sol, err := solver(t, DefaultOptions()).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v", sol.Status)
	}
	if math.Abs(sol.Primal[0]) > 1e-7 || math.Abs(sol.Primal[1]-1) > 1e-7 {
		t.Errorf("primal = %v, want (0, 1)", sol.Primal)
	}
	if math.Abs(sol.DualCons[0]-2) > 1e-6 {
		t.Errorf("dual = %v, want 2", sol.DualCons[0])
	}
}

func TestInteriorPoint_ActiveUpperBound(t *testing.T) {
	// min (x-2)^2  s.t.  x <= 1. The bound is active and its net
	// multiplier zU-zL must come out positive.
	p := &Problem{
		Name:    "upper-bound",
		NumVars: 1,
		Objective: func(x []float64) (float64, error) {
			return (x[0] - 2) * (x[0] - 2), nil
		},
		Gradient: func(x, grad []float64) error {
			grad[0] = 2 * (x[0] - 2)
			return nil
		},
		LBx: []float64{math.Inf(-1)},
		UBx: []float64{1},
		X0:  []float64{0},
	}

	opts := DefaultOptions()
	opts.Tol = 1e-9
	sol, err := solver(t, opts).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v", sol.Status)
	}
	if math.Abs(sol.Primal[0]-1) > 1e-6 {
		t.Errorf("x = %v, want 1", sol.Primal[0])
	}
	if math.Abs(sol.DualBounds[0]-2) > 1e-5 {
		t.Errorf("bound dual = %v, want 2", sol.DualBounds[0])
	}
}

func TestInteriorPoint_FixedVariable(t *testing.T) {
	// lbx == ubx pins x0 at 1; the pinning multiplier is reported
	// through DualBounds.
	p := &Problem{
		Name:    "fixed-var",
		NumVars: 2,
		Objective: func(x []float64) (float64, error) {
			return (x[0]-3)*(x[0]-3) + x[1]*x[1], nil
		},
		Gradient: func(x, grad []float64) error {
			grad[0] = 2 * (x[0] - 3)
			grad[1] = 2 * x[1]
			return nil
		},
		LBx: []float64{1, math.Inf(-1)},
		UBx: []float64{1, math.Inf(1)},
		X0:  []float64{0, 7},
	}

	sol, err := solver(t, DefaultOptions()).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v", sol.Status)
	}
	if math.Abs(sol.Primal[0]-1) > 1e-8 {
		t.Errorf("x0 = %v, want 1", sol.Primal[0])
	}
	if math.Abs(sol.Primal[1]) > 1e-7 {
		t.Errorf("x1 = %v, want 0", sol.Primal[1])
	}
	if math.Abs(sol.DualBounds[0]-4) > 1e-6 {
		t.Errorf("pinning dual = %v, want 4", sol.DualBounds[0])
	}
}

// TestInteriorPoint_LQRiccati checks a discrete LQ problem against the
// backward Riccati recursion. With a=b=q=r=s=1 the recursion converges
// to the golden ratio, and the optimal cost is K_0 * x0^2.
func TestInteriorPoint_LQRiccati(t *testing.T) {
	const (
		horizon = 100
		x0      = 100.0
	)
	nx := horizon + 1
	n := nx + horizon // states then controls

	p := &Problem{
		Name:    "lq",
		NumVars: n,
		NumCons: horizon,
		Objective: func(x []float64) (float64, error) {
			obj := 0.0
			for k := 0; k < horizon; k++ {
				obj += x[k]*x[k] + x[nx+k]*x[nx+k]
			}
			obj += x[horizon] * x[horizon]
			return obj, nil
		},
		Gradient: func(x, grad []float64) error {
			for k := 0; k < horizon; k++ {
				grad[k] = 2 * x[k]
				grad[nx+k] = 2 * x[nx+k]
			}
			grad[horizon] = 2 * x[horizon]
			return nil
		},
		Constraints: func(x, g []float64) error {
			for k := 0; k < horizon; k++ {
				g[k] = x[k+1] - x[k] - x[nx+k]
			}
			return nil
		},
		Jacobian: func(x, vals []float64) error {
			for k := 0; k < horizon; k++ {
				vals[3*k] = 1
				vals[3*k+1] = -1
				vals[3*k+2] = -1
			}
			return nil
		},
	}
	for k := 0; k < horizon; k++ {
		p.JacPattern = append(p.JacPattern,
			Entry{k, k + 1}, Entry{k, k}, Entry{k, nx + k})
	}
	p.LBg = make([]float64, horizon)
	p.UBg = make([]float64, horizon)
	p.LBx = make([]float64, n)
	p.UBx = make([]float64, n)
	for i := range p.LBx {
		p.LBx[i] = math.Inf(-1)
		p.UBx[i] = math.Inf(1)
	}
	p.LBx[0], p.UBx[0] = x0, x0
	p.X0 = make([]float64, n)
	p.X0[0] = x0

	// backward Riccati sweep for the reference cost
	kR := 1.0
	for k := 0; k < horizon; k++ {
		kR = 1 + kR - kR*kR/(1+kR)
	}
	want := kR * x0 * x0

	opts := DefaultOptions()
	opts.MaxIter = 3000
	sol, err := solver(t, opts).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != StatusConverged {
		t.Fatalf("status = %v after %d iterations (residual %e)",
			sol.Status, sol.Iterations, sol.Residual)
	}
	if rel := math.Abs(sol.Objective-want) / want; rel > 1e-10 {
		t.Errorf("objective %v vs riccati %v (relative %e)", sol.Objective, want, rel)
	}

	// the first feedback control for a long horizon is u0 = -x0*K/(1+K)
	wantU0 := -x0 * kR / (1 + kR)
	if math.Abs(sol.Primal[nx]-wantU0) > 1e-4*math.Abs(wantU0) {
		t.Errorf("u0 = %v, want %v", sol.Primal[nx], wantU0)
	}
}

func TestInteriorPoint_EvalFailureKeepsIterate(t *testing.T) {
	boom := errors.New("model blew up")
	p := &Problem{
		Name:    "failing",
		NumVars: 1,
		Objective: func(x []float64) (float64, error) {
			return 0, boom
		},
		Gradient: func(x, grad []float64) error { return nil },
		X0:       []float64{3},
	}

	sol, err := solver(t, DefaultOptions()).Solve(context.Background(), p)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the evaluation error, got %v", err)
	}
	if sol == nil {
		t.Fatal("expected the last iterate alongside the error")
	}
	if sol.Status != StatusNumericalError {
		t.Errorf("status = %v, want StatusNumericalError", sol.Status)
	}
	if sol.Primal[0] != 3 {
		t.Errorf("primal = %v, want the starting point", sol.Primal)
	}
}

func TestInteriorPoint_Infeasible(t *testing.T) {
	// contradictory equalities x = -1 and x = 1
	p := &Problem{
		Name:    "infeasible",
		NumVars: 1,
		NumCons: 2,
		Objective: func(x []float64) (float64, error) {
			return x[0] * x[0], nil
		},
		Gradient: func(x, grad []float64) error {
			grad[0] = 2 * x[0]
			return nil
		},
		Constraints: func(x, g []float64) error {
			g[0], g[1] = x[0], x[0]
			return nil
		},
		JacPattern: []Entry{{0, 0}, {1, 0}},
		Jacobian: func(x, vals []float64) error {
			vals[0], vals[1] = 1, 1
			return nil
		},
		LBg: []float64{-1, 1},
		UBg: []float64{-1, 1},
		X0:  []float64{0},
	}

	opts := DefaultOptions()
	opts.MaxIter = 60
	sol, err := solver(t, opts).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != StatusInfeasible {
		t.Errorf("status = %v, want infeasible", sol.Status)
	}
}

func TestProblem_Validate(t *testing.T) {
	base := func() *Problem {
		return &Problem{
			NumVars:   1,
			Objective: func(x []float64) (float64, error) { return 0, nil },
			Gradient:  func(x, grad []float64) error { return nil },
			X0:        []float64{0},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatal(err)
	}

	p := base()
	p.NumVars = 0
	p.X0 = nil
	if !errors.Is(p.Validate(), ErrInvalidProblem) {
		t.Error("zero variables must be rejected")
	}

	p = base()
	p.LBx = []float64{2}
	p.UBx = []float64{1}
	if !errors.Is(p.Validate(), ErrInvalidProblem) {
		t.Error("crossed bounds must be rejected")
	}

	p = base()
	p.NumCons = 1
	if !errors.Is(p.Validate(), ErrInvalidProblem) {
		t.Error("missing constraint closures must be rejected")
	}

	p = base()
	p.JacPattern = []Entry{{0, 0}}
	if !errors.Is(p.Validate(), ErrInvalidProblem) {
		t.Error("pattern entry outside the constraint range must be rejected")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.New("newton-sqp", DefaultOptions()); !errors.Is(err, ErrUnknownSolver) {
		t.Errorf("expected ErrUnknownSolver, got %v", err)
	}
	if err := r.Register("interior-point", newInteriorPoint); err == nil {
		t.Error("duplicate registration must be rejected")
	}
	names := r.Names()
	if len(names) != 1 || names[0] != "interior-point" {
		t.Errorf("names = %v", names)
	}

	bad := DefaultOptions()
	bad.Tol = 0
	if _, err := r.New("interior-point", bad); err == nil {
		t.Error("invalid options must be rejected")
	}
}
