package ocp

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/nlp"
	"github.com/san-kum/trajopt/internal/sx"
)

// rk4GuessSteps is the fixed step count per interval used when
// simulating an initial guess.
const rk4GuessSteps = 50

// Config describes a transcription. Dynamics is required and has the
// input groups (t, x, u, p) with a scalar time group. Mayer has groups
// (x, p), Lagrange and Path share the dynamics signature. At least one
// of Mayer and Lagrange must be present. Zero-size u and p groups are
// allowed.
type Config struct {
	Grid     Grid
	Dynamics *fx.Function
	Mayer    *fx.Function
	Lagrange *fx.Function
	Path     *fx.Function

	Integrator integrators.Config

	// Solver is the registry name, "interior-point" when empty.
	Solver        string
	SolverOptions nlp.Options

	// Workers caps the number of intervals evaluated concurrently.
	// Zero means one worker per CPU.
	Workers int

	Logger *zap.Logger
}

// Transcriber holds a transcribed problem. Bounds and guesses are
// mutable between solves; a solve always starts from the stored guess,
// so solving twice from the same inputs gives the same result.
type Transcriber struct {
	cfg Config
	log *zap.Logger

	nx, nu, np, nh int
	intervals      int
	workers        int

	rk45   *integrators.RK45
	rk4    *integrators.RK4
	solver nlp.Solver

	mayerJacX *fx.Function
	mayerJacP *fx.Function
	lagJacX   *fx.Function
	lagJacU   *fx.Function
	lagJacP   *fx.Function
	pathJacX  *fx.Function
	pathJacU  *fx.Function
	pathJacP  *fx.Function

	pattern      []nlp.Entry
	contValsPer  int
	pathValsBase int
	pathValsPer  int

	mu      sync.Mutex
	solving bool

	lbx, ubx []float64
	lbh, ubh []float64
	guess    []float64
}

// New validates the configuration, regroups the dynamics for the
// integrator and prepares the constraint Jacobian pattern.
func New(cfg Config, reg *nlp.Registry) (*Transcriber, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dynamics == nil {
		return nil, fmt.Errorf("%w: dynamics function is required", ErrInvalidProblem)
	}
	if cfg.Dynamics.NumInputs() != 4 || cfg.Dynamics.InputSize(0) != 1 {
		return nil, fmt.Errorf("%w: dynamics %q must have inputs (t, x, u, p)",
			ErrInvalidProblem, cfg.Dynamics.Name())
	}

	t := &Transcriber{
		cfg:       cfg,
		nx:        cfg.Dynamics.InputSize(1),
		nu:        cfg.Dynamics.InputSize(2),
		np:        cfg.Dynamics.InputSize(3),
		intervals: cfg.Grid.Intervals(),
		workers:   cfg.Workers,
		log:       cfg.Logger,
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if t.workers <= 0 {
		t.workers = runtime.GOMAXPROCS(0)
	}
	if t.nx == 0 || cfg.Dynamics.NumOutputs() != t.nx {
		return nil, fmt.Errorf("%w: dynamics %q maps %d states to %d derivatives",
			ErrInvalidProblem, cfg.Dynamics.Name(), t.nx, cfg.Dynamics.NumOutputs())
	}
	if cfg.Mayer == nil && cfg.Lagrange == nil {
		return nil, fmt.Errorf("%w: need a Mayer or Lagrange term", ErrInvalidProblem)
	}
	if err := t.checkObjectives(); err != nil {
		return nil, err
	}

	// the integrator sees the controls and parameters as one
	// quadrature-constant input q = [u; p]
	pool := cfg.Dynamics.Pool()
	q := make([]*sx.Node, 0, t.nu+t.np)
	q = append(q, cfg.Dynamics.Input(2).Syms...)
	q = append(q, cfg.Dynamics.Input(3).Syms...)
	rhs, err := fx.New(pool, cfg.Dynamics.Name()+"_rhs", []fx.Group{
		cfg.Dynamics.Input(0),
		cfg.Dynamics.Input(1),
		{Name: "q", Syms: q},
	}, cfg.Dynamics.Outputs())
	if err != nil {
		return nil, err
	}
	if t.rk45, err = integrators.NewRK45(cfg.Integrator, rhs); err != nil {
		return nil, err
	}
	if t.rk4, err = integrators.NewRK4(rhs); err != nil {
		return nil, err
	}

	name := cfg.Solver
	if name == "" {
		name = "interior-point"
	}
	opts := cfg.SolverOptions
	if opts.Tol == 0 && opts.MaxIter == 0 && opts.Mu0 == 0 {
		opts = nlp.DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = t.log
	}
	if t.solver, err = reg.New(name, opts); err != nil {
		return nil, err
	}

	if err := t.buildObjectiveJacobians(); err != nil {
		return nil, err
	}
	t.buildPattern()
	t.initBoundsAndGuess()
	return t, nil
}

func (t *Transcriber) checkObjectives() error {
	cfg := &t.cfg
	if m := cfg.Mayer; m != nil {
		if m.NumInputs() != 2 || m.InputSize(0) != t.nx || m.InputSize(1) != t.np ||
			m.NumOutputs() != 1 {
			return fmt.Errorf("%w: mayer %q must map (x, p) to a scalar",
				ErrInvalidProblem, m.Name())
		}
	}
	for _, f := range []*fx.Function{cfg.Lagrange, cfg.Path} {
		if f == nil {
			continue
		}
		if f.NumInputs() != 4 || f.InputSize(0) != 1 || f.InputSize(1) != t.nx ||
			f.InputSize(2) != t.nu || f.InputSize(3) != t.np {
			return fmt.Errorf("%w: %q must share the dynamics signature (t, x, u, p)",
				ErrInvalidProblem, f.Name())
		}
	}
	if cfg.Lagrange != nil && cfg.Lagrange.NumOutputs() != 1 {
		return fmt.Errorf("%w: lagrange %q must be scalar", ErrInvalidProblem, cfg.Lagrange.Name())
	}
	if cfg.Path != nil {
		t.nh = cfg.Path.NumOutputs()
		if t.nh == 0 {
			return fmt.Errorf("%w: path %q has no rows", ErrInvalidProblem, cfg.Path.Name())
		}
	}
	return nil
}

func (t *Transcriber) buildObjectiveJacobians() error {
	var err error
	jac := func(f *fx.Function, gi, size int) *fx.Function {
		if err != nil || f == nil || size == 0 {
			return nil
		}
		var j *fx.Function
		j, err = f.Jacobian(gi)
		return j
	}
	t.mayerJacX = jac(t.cfg.Mayer, 0, t.nx)
	t.mayerJacP = jac(t.cfg.Mayer, 1, t.np)
	t.lagJacX = jac(t.cfg.Lagrange, 1, t.nx)
	t.lagJacU = jac(t.cfg.Lagrange, 2, t.nu)
	t.lagJacP = jac(t.cfg.Lagrange, 3, t.np)
	t.pathJacX = jac(t.cfg.Path, 1, t.nx)
	t.pathJacU = jac(t.cfg.Path, 2, t.nu)
	t.pathJacP = jac(t.cfg.Path, 3, t.np)
	return err
}

// Layout of the decision vector.

func (t *Transcriber) xOffset(k int) int { return k * t.nx }

func (t *Transcriber) uOffset(k int) int { return (t.intervals+1)*t.nx + k*t.nu }

func (t *Transcriber) pOffset() int { return (t.intervals+1)*t.nx + t.intervals*t.nu }

// NumVars returns the decision vector length.
func (t *Transcriber) NumVars() int { return t.pOffset() + t.np }

// NumCons returns the constraint row count: continuity rows per
// interval plus path rows at every grid node.
func (t *Transcriber) NumCons() int { return t.intervals*t.nx + (t.intervals+1)*t.nh }

// NumStates returns the state dimension.
func (t *Transcriber) NumStates() int { return t.nx }

// NumControls returns the control dimension.
func (t *Transcriber) NumControls() int { return t.nu }

// NumParameters returns the parameter dimension.
func (t *Transcriber) NumParameters() int { return t.np }

// NumPath returns the number of path constraint rows per node.
func (t *Transcriber) NumPath() int { return t.nh }

// Grid returns the shooting grid.
func (t *Transcriber) Grid() Grid { return t.cfg.Grid }

// buildPattern lays out the constraint Jacobian nonzeros. Continuity
// rows come first, ordered per interval as the X_k block, the U_k
// block, the P block and the unit entries on X_{k+1}; path rows follow
// with the same block order, one block per grid node. The terminal
// node is paired with the last interval's control.
func (t *Transcriber) buildPattern() {
	for k := 0; k < t.intervals; k++ {
		row0 := k * t.nx
		for i := 0; i < t.nx; i++ {
			for j := 0; j < t.nx; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.xOffset(k) + j})
			}
		}
		for i := 0; i < t.nx; i++ {
			for j := 0; j < t.nu; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.uOffset(k) + j})
			}
		}
		for i := 0; i < t.nx; i++ {
			for j := 0; j < t.np; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.pOffset() + j})
			}
		}
		for i := 0; i < t.nx; i++ {
			t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.xOffset(k+1) + i})
		}
	}
	t.contValsPer = t.nx * (t.nx + t.nu + t.np + 1)
	t.pathValsBase = t.intervals * t.contValsPer
	t.pathValsPer = t.nh * (t.nx + t.nu + t.np)

	for k := 0; k <= t.intervals; k++ {
		row0 := t.intervals*t.nx + k*t.nh
		ku := pathControl(k, t.intervals)
		for i := 0; i < t.nh; i++ {
			for j := 0; j < t.nx; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.xOffset(k) + j})
			}
		}
		for i := 0; i < t.nh; i++ {
			for j := 0; j < t.nu; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.uOffset(ku) + j})
			}
		}
		for i := 0; i < t.nh; i++ {
			for j := 0; j < t.np; j++ {
				t.pattern = append(t.pattern, nlp.Entry{Row: row0 + i, Col: t.pOffset() + j})
			}
		}
	}
}

// pathControl maps a grid node to the interval whose control the path
// rows use; the terminal node shares the last interval's control.
func pathControl(k, intervals int) int {
	if k == intervals {
		return intervals - 1
	}
	return k
}

func (t *Transcriber) initBoundsAndGuess() {
	n := t.NumVars()
	t.lbx = make([]float64, n)
	t.ubx = make([]float64, n)
	for i := range t.lbx {
		t.lbx[i] = math.Inf(-1)
		t.ubx[i] = math.Inf(1)
	}
	t.lbh = make([]float64, t.nh)
	t.ubh = make([]float64, t.nh)
	for i := range t.lbh {
		t.lbh[i] = math.Inf(-1)
		t.ubh[i] = math.Inf(1)
	}

	t.guess = make([]float64, n)
	states := t.cfg.Dynamics.Input(1).Syms
	for k := 0; k <= t.intervals; k++ {
		for i, s := range states {
			t.guess[t.xOffset(k)+i] = s.Nominal()
		}
	}
	params := t.cfg.Dynamics.Input(3).Syms
	for j, s := range params {
		t.guess[t.pOffset()+j] = s.Nominal()
	}
}
