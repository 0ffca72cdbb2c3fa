package integrators

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// Dormand-Prince coefficients (RK45)
var (
	rkC = [7]float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}

	rkA = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}

	rkB = [7]float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}

	// difference between the 5th and the embedded 4th order weights
	rkE = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

// Checkpoint is an exactly recoverable point of an integration: the state
// at an accepted step. Sensitivities are not checkpointed; re-integrating
// between checkpoints reproduces the state cheaply when needed.
type Checkpoint struct {
	T float64
	X []float64
}

// Result is the outcome of a completed integration.
type Result struct {
	XF          []float64
	Steps       int // step attempts, accepted plus rejected
	Accepted    int
	Rejected    int
	Checkpoints []Checkpoint
}

// Sensitivities are the Jacobians of the terminal state with respect to
// the initial state and the parameter vector q. DxfDq is nil when q is
// empty.
type Sensitivities struct {
	DxfDx0 *mat.Dense
	DxfDq  *mat.Dense
}

// RK45 is an adaptive Dormand-Prince 4(5) integrator over an fx-defined
// right-hand side with signature (t, x, q) -> dx/dt.
//
// The zero value is not usable; construct with NewRK45. A single instance
// may be shared across goroutines: all mutable per-call state lives on the
// call stack.
type RK45 struct {
	cfg  Config
	rhs  *fx.Function
	jacX *fx.Function
	jacQ *fx.Function
	nx   int
	nq   int
}

// NewRK45 validates the configuration and right-hand side signature and
// builds the symbolic Jacobians the variational equations need. Structural
// problems (wrong signature, non-differentiable operators in the dynamics)
// surface here, before any integration is attempted.
func NewRK45(cfg Config, rhs *fx.Function) (*RK45, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rhs.NumInputs() != 3 || rhs.InputSize(0) != 1 {
		return nil, fmt.Errorf("%w: integrator rhs %q must have inputs (t, x, q)",
			sx.ErrShapeMismatch, rhs.Name())
	}
	nx := rhs.InputSize(1)
	nq := rhs.InputSize(2)
	if nx == 0 || rhs.NumOutputs() != nx {
		return nil, fmt.Errorf("%w: integrator rhs %q maps %d states to %d derivatives",
			sx.ErrShapeMismatch, rhs.Name(), nx, rhs.NumOutputs())
	}
	jacX, err := rhs.Jacobian(1)
	if err != nil {
		return nil, err
	}
	var jacQ *fx.Function
	if nq > 0 {
		if jacQ, err = rhs.Jacobian(2); err != nil {
			return nil, err
		}
	}
	return &RK45{cfg: cfg, rhs: rhs, jacX: jacX, jacQ: jacQ, nx: nx, nq: nq}, nil
}

// Config returns the integrator configuration.
func (r *RK45) Config() Config { return r.cfg }

// Integrate advances the state from (t0, x0) to tf under parameters q.
func (r *RK45) Integrate(ctx context.Context, t0, tf float64, x0, q []float64) (*Result, error) {
	res, _, err := r.drive(ctx, t0, tf, x0, q, false)
	return res, err
}

// IntegrateSens advances the state like Integrate and simultaneously
// propagates the variational equations for dxf/dx0 and dxf/dq. Step-size
// decisions are driven by the state error alone, so the sensitivities
// describe exactly the trajectory the state followed.
func (r *RK45) IntegrateSens(ctx context.Context, t0, tf float64, x0, q []float64) (*Result, *Sensitivities, error) {
	return r.drive(ctx, t0, tf, x0, q, true)
}

// Recover re-integrates the state from a checkpoint to time t. Only the
// state is recovered; this is the cheap path adjoint-style passes use
// between checkpoints.
func (r *RK45) Recover(ctx context.Context, cp Checkpoint, q []float64, t float64) ([]float64, error) {
	res, err := r.Integrate(ctx, cp.T, t, cp.X, q)
	if err != nil {
		return nil, err
	}
	return res.XF, nil
}

func (r *RK45) drive(ctx context.Context, t0, tf float64, x0, q []float64, sens bool) (*Result, *Sensitivities, error) {
	if len(x0) != r.nx {
		return nil, nil, fmt.Errorf("%w: initial state has length %d, want %d",
			sx.ErrShapeMismatch, len(x0), r.nx)
	}
	if len(q) != r.nq {
		return nil, nil, fmt.Errorf("%w: parameter vector has length %d, want %d",
			sx.ErrShapeMismatch, len(q), r.nq)
	}
	if tf < t0 {
		return nil, nil, fmt.Errorf("integrators: tf=%g precedes t0=%g", tf, t0)
	}

	nx, nq := r.nx, r.nq
	ns := nx + nq

	x := append([]float64(nil), x0...)
	t := t0
	span := tf - t0

	var (
		k    [7][]float64
		y    = make([]float64, nx)
		xNew = make([]float64, nx)
		tArg = make([]float64, 1)
	)
	for i := range k {
		k[i] = make([]float64, nx)
	}

	// sensitivity workspace
	var (
		S, SNew, SY *mat.Dense
		KS          [6]*mat.Dense
		aVals       []float64
		bVals       []float64
		aMat, bMat  *mat.Dense
	)
	if sens {
		S = mat.NewDense(nx, ns, nil)
		for i := 0; i < nx; i++ {
			S.Set(i, i, 1)
		}
		SNew = mat.NewDense(nx, ns, nil)
		SY = mat.NewDense(nx, ns, nil)
		for i := range KS {
			KS[i] = mat.NewDense(nx, ns, nil)
		}
		aVals = make([]float64, nx*nx)
		aMat = mat.NewDense(nx, nx, aVals)
		if nq > 0 {
			bVals = make([]float64, nx*nq)
			bMat = mat.NewDense(nx, nq, bVals)
		}
	}

	res := &Result{}
	h := r.cfg.InitialStep
	if h <= 0 {
		h = span / 50
	}
	if span == 0 {
		res.XF = x
		return res, r.splitSens(S, sens), nil
	}

	fail := func(reason error) (*Result, *Sensitivities, error) {
		return nil, nil, &Failure{
			T: t, Steps: res.Steps,
			RelTol: r.cfg.RelTol, AbsTol: r.cfg.AbsTol,
			Err: reason,
		}
	}

	sinceCheckpoint := 0
	for tf-t > 1e-14*span {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}
		if res.Steps >= r.cfg.MaxSteps {
			return fail(ErrMaxSteps)
		}
		res.Steps++

		remaining := tf - t
		last := h >= remaining
		if last {
			h = remaining
		}

		finite := true
		for i := 0; i < 7 && finite; i++ {
			copy(y, x)
			for j := 0; j < i; j++ {
				if a := rkA[i][j]; a != 0 {
					for c := range y {
						y[c] += h * a * k[j][c]
					}
				}
			}
			if i == 6 {
				copy(xNew, y) // stage 7 sits at the 5th order solution
			}
			tArg[0] = t + rkC[i]*h
			if err := r.rhs.CallInto(k[i], tArg, y, q); err != nil {
				return nil, nil, err
			}
			for c := range k[i] {
				if math.IsNaN(k[i][c]) || math.IsInf(k[i][c], 0) {
					finite = false
					break
				}
			}
			if finite && sens && i < 6 {
				SY.Copy(S)
				for j := 0; j < i; j++ {
					if a := rkA[i][j]; a != 0 {
						addScaled(SY, KS[j], h*a)
					}
				}
				if err := r.jacX.CallInto(aVals, tArg, y, q); err != nil {
					return nil, nil, err
				}
				KS[i].Mul(aMat, SY)
				if nq > 0 {
					if err := r.jacQ.CallInto(bVals, tArg, y, q); err != nil {
						return nil, nil, err
					}
					view := KS[i].Slice(0, nx, nx, ns).(*mat.Dense)
					view.Add(view, bMat)
				}
			}
		}

		if !finite {
			res.Rejected++
			h *= r.cfg.MinScale
			if h < 1e-14*span {
				return fail(ErrStateDiverged)
			}
			continue
		}

		errRatio := 0.0
		for c := 0; c < nx; c++ {
			est := 0.0
			for i := 0; i < 7; i++ {
				est += rkE[i] * k[i][c]
			}
			est *= h
			scale := r.cfg.AbsTol + r.cfg.RelTol*math.Max(math.Abs(x[c]), math.Abs(xNew[c]))
			errRatio = math.Max(errRatio, math.Abs(est)/scale)
		}

		if errRatio <= 1 {
			copy(x, xNew)
			if sens {
				SNew.Copy(S)
				for i := 0; i < 6; i++ {
					if b := rkB[i]; b != 0 {
						addScaled(SNew, KS[i], h*b)
					}
				}
				S.Copy(SNew)
			}
			if last {
				t = tf
			} else {
				t += h
			}
			res.Accepted++
			if r.cfg.StepsPerCheckpoint > 0 {
				sinceCheckpoint++
				if sinceCheckpoint >= r.cfg.StepsPerCheckpoint {
					res.Checkpoints = append(res.Checkpoints,
						Checkpoint{T: t, X: append([]float64(nil), x...)})
					sinceCheckpoint = 0
				}
			}
		} else {
			res.Rejected++
		}

		// step-size controller
		if errRatio > 1 {
			h *= math.Max(r.cfg.MinScale, r.cfg.Safety*math.Pow(errRatio, -0.25))
		} else if errRatio > 0 {
			h *= math.Min(r.cfg.MaxScale, r.cfg.Safety*math.Pow(errRatio, -0.2))
		} else {
			h *= r.cfg.MaxScale
		}
		if h < 1e-14*span {
			return fail(ErrStepUnderflow)
		}
	}

	res.XF = x
	return res, r.splitSens(S, sens), nil
}

func (r *RK45) splitSens(s *mat.Dense, sens bool) *Sensitivities {
	if !sens {
		return nil
	}
	out := &Sensitivities{DxfDx0: mat.NewDense(r.nx, r.nx, nil)}
	out.DxfDx0.Copy(s.Slice(0, r.nx, 0, r.nx))
	if r.nq > 0 {
		out.DxfDq = mat.NewDense(r.nx, r.nq, nil)
		out.DxfDq.Copy(s.Slice(0, r.nx, r.nx, r.nx+r.nq))
	}
	return out
}

// addScaled adds s*a into dst. Both matrices must share dimensions and be
// contiguously backed, which holds for every matrix this package builds.
func addScaled(dst, a *mat.Dense, s float64) {
	dd := dst.RawMatrix().Data
	ad := a.RawMatrix().Data
	for i := range dd {
		dd[i] += s * ad[i]
	}
}
