package nlp

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// interiorPoint is a dense primal-dual interior-point solver. General
// constraints become equalities through slack variables that carry the
// row bounds, variables fixed by lbx==ubx become pinning equality rows,
// and the Lagrangian Hessian is approximated with damped BFGS updates.
type interiorPoint struct {
	opts Options
	log  *zap.Logger
}

func newInteriorPoint(opts Options) (Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &interiorPoint{opts: opts, log: log}, nil
}

// workspace holds the reformulated problem. The solver variable vector
// is z = [x; s] with one slack per inequality row, and the equality
// rows are the original constraints followed by the pinning rows.
type workspace struct {
	p *Problem

	n     int // original variables
	mOrig int // original constraint rows
	nz    int // variables plus slacks
	mEq   int // equality rows after reformulation

	slackOf  []int // per original row, slack column in z or -1
	fixed    []int
	fixedVal []float64

	lo, hi []float64 // bounds on z, +-Inf where absent

	gScratch []float64
	jScratch []float64
}

func newWorkspace(p *Problem) *workspace {
	w := &workspace{
		p:        p,
		n:        p.NumVars,
		mOrig:    p.NumCons,
		slackOf:  make([]int, p.NumCons),
		gScratch: make([]float64, p.NumCons),
		jScratch: make([]float64, len(p.JacPattern)),
	}

	ninf, pinf := math.Inf(-1), math.Inf(1)
	lo := make([]float64, 0, w.n)
	hi := make([]float64, 0, w.n)
	for i := 0; i < w.n; i++ {
		l, u := boundAt(p.LBx, i, ninf), boundAt(p.UBx, i, pinf)
		if l == u {
			// A degenerate interval leaves no interior for the
			// barrier, so pin the variable with an equality row
			// and lift its bounds.
			w.fixed = append(w.fixed, i)
			w.fixedVal = append(w.fixedVal, l)
			l, u = ninf, pinf
		}
		lo = append(lo, l)
		hi = append(hi, u)
	}

	for i := 0; i < w.mOrig; i++ {
		l, u := boundAt(p.LBg, i, ninf), boundAt(p.UBg, i, pinf)
		if l == u && !math.IsInf(l, 0) {
			w.slackOf[i] = -1
			continue
		}
		w.slackOf[i] = len(lo) - w.n
		lo = append(lo, l)
		hi = append(hi, u)
	}

	w.lo, w.hi = lo, hi
	w.nz = len(lo)
	w.mEq = w.mOrig + len(w.fixed)
	return w
}

// evalCheap computes the objective and equality residuals at z.
func (w *workspace) evalCheap(z []float64) (f float64, c []float64, err error) {
	x := z[:w.n]
	f, err = w.p.Objective(x)
	if err != nil {
		return 0, nil, err
	}
	c = make([]float64, w.mEq)
	if w.mOrig > 0 {
		if err := w.p.Constraints(x, w.gScratch); err != nil {
			return 0, nil, err
		}
		for i := 0; i < w.mOrig; i++ {
			if s := w.slackOf[i]; s >= 0 {
				c[i] = w.gScratch[i] - z[w.n+s]
			} else {
				c[i] = w.gScratch[i] - w.p.LBg[i]
			}
		}
	}
	for k, i := range w.fixed {
		c[w.mOrig+k] = x[i] - w.fixedVal[k]
	}
	return f, c, nil
}

// evalFull additionally computes the objective gradient and the dense
// equality Jacobian in z space.
func (w *workspace) evalFull(z []float64) (f float64, c, grad []float64, a *mat.Dense, err error) {
	f, c, err = w.evalCheap(z)
	if err != nil {
		return 0, nil, nil, nil, err
	}
	grad = make([]float64, w.nz)
	if err := w.p.Gradient(z[:w.n], grad[:w.n]); err != nil {
		return 0, nil, nil, nil, err
	}
	if w.mEq == 0 {
		return f, c, grad, nil, nil
	}
	a = mat.NewDense(w.mEq, w.nz, nil)
	if w.mOrig > 0 {
		if err := w.p.Jacobian(z[:w.n], w.jScratch); err != nil {
			return 0, nil, nil, nil, err
		}
		for k, e := range w.p.JacPattern {
			a.Set(e.Row, e.Col, a.At(e.Row, e.Col)+w.jScratch[k])
		}
		for i := 0; i < w.mOrig; i++ {
			if s := w.slackOf[i]; s >= 0 {
				a.Set(i, w.n+s, -1)
			}
		}
	}
	for k, i := range w.fixed {
		a.Set(w.mOrig+k, i, 1)
	}
	return f, c, grad, a, nil
}

// initialPoint pushes X0 and the implied slacks into the bound interior.
func (w *workspace) initialPoint() []float64 {
	z := make([]float64, w.nz)
	copy(z, w.p.X0)
	for k, i := range w.fixed {
		z[i] = w.fixedVal[k]
	}
	if w.mOrig > 0 {
		if err := w.p.Constraints(z[:w.n], w.gScratch); err == nil {
			for i, s := range w.slackOf {
				if s >= 0 {
					z[w.n+s] = w.gScratch[i]
				}
			}
		}
	}
	const push = 1e-2
	for i := range z {
		l, u := w.lo[i], w.hi[i]
		if math.IsInf(l, -1) && math.IsInf(u, 1) {
			continue
		}
		var pl, pu float64
		if !math.IsInf(l, -1) {
			pl = l + push*math.Max(1, math.Abs(l))
		} else {
			pl = math.Inf(-1)
		}
		if !math.IsInf(u, 1) {
			pu = u - push*math.Max(1, math.Abs(u))
		} else {
			pu = math.Inf(1)
		}
		if pl > pu {
			z[i] = 0.5 * (l + u)
			continue
		}
		z[i] = math.Min(math.Max(z[i], pl), pu)
	}
	return z
}

// Solve runs the barrier iteration until the KKT error meets Tol. When
// an evaluation closure fails mid-iteration the returned solution still
// carries the last iterate, so a caller can inspect where the failure
// happened.
func (ip *interiorPoint) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w := newWorkspace(p)

	z := w.initialPoint()
	lam := make([]float64, w.mEq)
	zl := make([]float64, w.nz)
	zu := make([]float64, w.nz)
	for i := range z {
		if !math.IsInf(w.lo[i], -1) {
			zl[i] = 1
		}
		if !math.IsInf(w.hi[i], 1) {
			zu[i] = 1
		}
	}

	f, c, grad, a, err := w.evalFull(z)
	if err != nil {
		return assemble(w, StatusNumericalError, z, lam, zl, zu, math.NaN(), 0, math.Inf(1)), err
	}

	b := eye(w.nz)
	firstUpdate := true
	mu := ip.opts.Mu0
	muMin := ip.opts.Tol / 11
	nu := 1.0

	status := StatusMaxIterations
	iters := 0
	resid := math.Inf(1)

	for iter := 1; iter <= ip.opts.MaxIter; iter++ {
		iters = iter
		select {
		case <-ctx.Done():
			return assemble(w, status, z, lam, zl, zu, f, iters, resid), ctx.Err()
		default:
		}

		dual := dualResidual(grad, a, lam, zl, zu)
		e0 := kktError(w, dual, c, z, zl, zu, 0)
		resid = e0
		if !isFinite(e0) {
			status = StatusNumericalError
			break
		}
		if e0 <= ip.opts.Tol {
			status = StatusConverged
			break
		}
		if kktError(w, dual, c, z, zl, zu, mu) <= 10*mu && mu > muMin {
			mu = math.Max(muMin, math.Min(0.2*mu, math.Pow(mu, 1.5)))
		}

		dz, dlam, ok := ip.solveKKT(w, b, a, c, grad, lam, z, zl, zu, mu)
		if !ok {
			status = StatusNumericalError
			break
		}

		dzl, dzu := boundDualSteps(w, z, dz, zl, zu, mu)
		tau := math.Max(0.99, 1-mu)
		aMax := primalMaxStep(w, z, dz, tau)
		aDual := dualMaxStep(zl, dzl, tau)
		aDual = math.Min(aDual, dualMaxStep(zu, dzu, tau))

		nu = math.Max(nu, 1.1*shiftedInfNorm(lam, dlam))
		alpha, fNew, cNew, lsErr := ip.lineSearch(w, z, dz, f, c, grad, nu, mu, aMax)
		if lsErr != nil {
			return assemble(w, StatusNumericalError, z, lam, zl, zu, f, iters, resid), lsErr
		}

		zNew := make([]float64, w.nz)
		for i := range z {
			zNew[i] = z[i] + alpha*dz[i]
		}
		lamNew := make([]float64, w.mEq)
		for i := range lam {
			lamNew[i] = lam[i] + alpha*dlam[i]
		}
		for i := range zl {
			zl[i] += aDual * dzl[i]
			zu[i] += aDual * dzu[i]
		}

		_, _, gradNew, aNew, err := w.evalFull(zNew)
		if err != nil {
			return assemble(w, StatusNumericalError, zNew, lamNew, zl, zu, fNew, iters, resid), err
		}
		firstUpdate = bfgsUpdate(b, w, z, zNew, grad, gradNew, a, aNew, lamNew, firstUpdate)

		z, lam, f, c, grad, a = zNew, lamNew, fNew, cNew, gradNew, aNew

		ip.log.Debug("iteration",
			zap.String("problem", p.Name),
			zap.Int("iter", iter),
			zap.Float64("objective", f),
			zap.Float64("kkt", e0),
			zap.Float64("infeas", infNorm(c)),
			zap.Float64("mu", mu),
			zap.Float64("alpha", alpha))
	}

	if status == StatusMaxIterations && infNorm(c) > 1e-6 {
		status = StatusInfeasible
	}

	sol := assemble(w, status, z, lam, zl, zu, f, iters, resid)

	ip.log.Info("solve finished",
		zap.String("problem", p.Name),
		zap.String("status", status.String()),
		zap.Int("iterations", iters),
		zap.Float64("objective", sol.Objective),
		zap.Float64("residual", sol.Residual))
	return sol, nil
}

// assemble packs an iterate into a Solution in original-problem terms.
func assemble(w *workspace, status Status, z, lam, zl, zu []float64, f float64, iters int, resid float64) *Solution {
	sol := &Solution{
		Status:     status,
		Primal:     append([]float64(nil), z[:w.n]...),
		DualBounds: make([]float64, w.n),
		DualCons:   append([]float64(nil), lam[:w.mOrig]...),
		Objective:  f,
		Iterations: iters,
		Residual:   resid,
	}
	for i := 0; i < w.n; i++ {
		sol.DualBounds[i] = zu[i] - zl[i]
	}
	for k, i := range w.fixed {
		sol.DualBounds[i] = lam[w.mOrig+k]
	}
	return sol
}

// solveKKT factors and solves the condensed primal-dual system
//
//	[B + Sigma + dI    A^T] [dz  ]   [-r1]
//	[A                -dI ] [dlam] = [-c ]
//
// retrying with growing regularization d when the factorization fails.
func (ip *interiorPoint) solveKKT(w *workspace, b *mat.SymDense, a *mat.Dense,
	c, grad, lam, z, zl, zu []float64, mu float64) ([]float64, []float64, bool) {

	dim := w.nz + w.mEq
	rhs := mat.NewVecDense(dim, nil)
	for i := 0; i < w.nz; i++ {
		r := grad[i] + aTLamAt(a, lam, i)
		if !math.IsInf(w.lo[i], -1) {
			r -= mu / (z[i] - w.lo[i])
		}
		if !math.IsInf(w.hi[i], 1) {
			r += mu / (w.hi[i] - z[i])
		}
		rhs.SetVec(i, -r)
	}
	for i := 0; i < w.mEq; i++ {
		rhs.SetVec(w.nz+i, -c[i])
	}

	for delta := 0.0; delta <= 1e8; {
		k := mat.NewDense(dim, dim, nil)
		for i := 0; i < w.nz; i++ {
			for j := 0; j < w.nz; j++ {
				k.Set(i, j, b.At(i, j))
			}
			sigma := 0.0
			if !math.IsInf(w.lo[i], -1) {
				sigma += zl[i] / (z[i] - w.lo[i])
			}
			if !math.IsInf(w.hi[i], 1) {
				sigma += zu[i] / (w.hi[i] - z[i])
			}
			k.Set(i, i, k.At(i, i)+sigma+delta)
		}
		for i := 0; i < w.mEq; i++ {
			for j := 0; j < w.nz; j++ {
				v := a.At(i, j)
				k.Set(w.nz+i, j, v)
				k.Set(j, w.nz+i, v)
			}
			k.Set(w.nz+i, w.nz+i, -delta)
		}

		var lu mat.LU
		lu.Factorize(k)
		sol := mat.NewVecDense(dim, nil)
		if err := lu.SolveVecTo(sol, false, rhs); err == nil && finiteVec(sol) {
			dz := make([]float64, w.nz)
			dlam := make([]float64, w.mEq)
			for i := range dz {
				dz[i] = sol.AtVec(i)
			}
			for i := range dlam {
				dlam[i] = sol.AtVec(w.nz + i)
			}
			return dz, dlam, true
		}
		if delta == 0 {
			delta = 1e-8
		} else {
			delta *= 100
		}
	}
	return nil, nil, false
}

// lineSearch backtracks along dz under an l1 merit function. The step
// starts at the fraction-to-boundary limit, so every trial point keeps
// the barrier terms defined.
func (ip *interiorPoint) lineSearch(w *workspace, z, dz []float64,
	f float64, c, grad []float64, nu, mu, aMax float64) (float64, float64, []float64, error) {

	m0 := f + barrier(w, z, mu) + nu*l1Norm(c)
	dd := -nu * l1Norm(c)
	for i := range dz {
		g := grad[i]
		if !math.IsInf(w.lo[i], -1) {
			g -= mu / (z[i] - w.lo[i])
		}
		if !math.IsInf(w.hi[i], 1) {
			g += mu / (w.hi[i] - z[i])
		}
		dd += g * dz[i]
	}

	alpha := aMax
	trial := make([]float64, w.nz)
	var fT float64
	var cT []float64
	for ls := 0; ; ls++ {
		for i := range z {
			trial[i] = z[i] + alpha*dz[i]
		}
		var err error
		fT, cT, err = w.evalCheap(trial)
		if err != nil {
			return 0, 0, nil, err
		}
		bar := barrier(w, trial, mu)
		if isFinite(fT) && isFinite(bar) {
			mT := fT + bar + nu*l1Norm(cT)
			if mT <= m0+1e-4*alpha*math.Min(dd, 0) {
				return alpha, fT, cT, nil
			}
		}
		if ls == 29 {
			// keep moving on a stalled search rather than
			// aborting; the barrier update usually restores
			// progress
			return alpha, fT, cT, nil
		}
		alpha *= 0.5
	}
}

func barrier(w *workspace, z []float64, mu float64) float64 {
	sum := 0.0
	for i := range z {
		if !math.IsInf(w.lo[i], -1) {
			m := z[i] - w.lo[i]
			if m <= 0 {
				return math.Inf(1)
			}
			sum -= mu * math.Log(m)
		}
		if !math.IsInf(w.hi[i], 1) {
			m := w.hi[i] - z[i]
			if m <= 0 {
				return math.Inf(1)
			}
			sum -= mu * math.Log(m)
		}
	}
	return sum
}

func boundDualSteps(w *workspace, z, dz, zl, zu []float64, mu float64) (dzl, dzu []float64) {
	dzl = make([]float64, w.nz)
	dzu = make([]float64, w.nz)
	for i := range z {
		if !math.IsInf(w.lo[i], -1) {
			m := z[i] - w.lo[i]
			dzl[i] = (mu-zl[i]*dz[i])/m - zl[i]
		}
		if !math.IsInf(w.hi[i], 1) {
			m := w.hi[i] - z[i]
			dzu[i] = (mu+zu[i]*dz[i])/m - zu[i]
		}
	}
	return dzl, dzu
}

func primalMaxStep(w *workspace, z, dz []float64, tau float64) float64 {
	alpha := 1.0
	for i := range z {
		if dz[i] < 0 && !math.IsInf(w.lo[i], -1) {
			alpha = math.Min(alpha, -tau*(z[i]-w.lo[i])/dz[i])
		}
		if dz[i] > 0 && !math.IsInf(w.hi[i], 1) {
			alpha = math.Min(alpha, tau*(w.hi[i]-z[i])/dz[i])
		}
	}
	return alpha
}

func dualMaxStep(zv, dzv []float64, tau float64) float64 {
	alpha := 1.0
	for i := range zv {
		if dzv[i] < 0 && zv[i] > 0 {
			alpha = math.Min(alpha, -tau*zv[i]/dzv[i])
		}
	}
	return alpha
}

func bfgsUpdate(b *mat.SymDense, w *workspace, z, zNew, grad, gradNew []float64,
	a, aNew *mat.Dense, lam []float64, first bool) bool {

	nz := w.nz
	sv := make([]float64, nz)
	yv := make([]float64, nz)
	for i := 0; i < nz; i++ {
		sv[i] = zNew[i] - z[i]
		yv[i] = (gradNew[i] + aTLamAt(aNew, lam, i)) - (grad[i] + aTLamAt(a, lam, i))
	}
	ss := dot(sv, sv)
	sy := dot(sv, yv)
	if ss < 1e-20 {
		return first
	}

	if first && sy > 1e-12*math.Sqrt(ss)*math.Sqrt(dot(yv, yv)) {
		scale := dot(yv, yv) / sy
		for i := 0; i < nz; i++ {
			b.SetSym(i, i, scale)
		}
		first = false
	}

	bs := make([]float64, nz)
	for i := 0; i < nz; i++ {
		v := 0.0
		for j := 0; j < nz; j++ {
			v += b.At(i, j) * sv[j]
		}
		bs[i] = v
	}
	sbs := dot(sv, bs)
	if sbs <= 0 {
		return first
	}

	// Powell damping keeps the update positive definite.
	if sy < 0.2*sbs {
		theta := 0.8 * sbs / (sbs - sy)
		for i := range yv {
			yv[i] = theta*yv[i] + (1-theta)*bs[i]
		}
		sy = dot(sv, yv)
	}
	if sy < 1e-14 {
		return first
	}

	for i := 0; i < nz; i++ {
		for j := i; j < nz; j++ {
			v := b.At(i, j) - bs[i]*bs[j]/sbs + yv[i]*yv[j]/sy
			b.SetSym(i, j, v)
		}
	}
	return first
}

func dualResidual(grad []float64, a *mat.Dense, lam, zl, zu []float64) []float64 {
	r := make([]float64, len(grad))
	for i := range grad {
		r[i] = grad[i] + aTLamAt(a, lam, i) - zl[i] + zu[i]
	}
	return r
}

func kktError(w *workspace, dual, c, z, zl, zu []float64, mu float64) float64 {
	e := math.Max(infNorm(dual), infNorm(c))
	for i := range z {
		if !math.IsInf(w.lo[i], -1) {
			e = math.Max(e, math.Abs(zl[i]*(z[i]-w.lo[i])-mu))
		}
		if !math.IsInf(w.hi[i], 1) {
			e = math.Max(e, math.Abs(zu[i]*(w.hi[i]-z[i])-mu))
		}
	}
	return e
}

func aTLamAt(a *mat.Dense, lam []float64, col int) float64 {
	if a == nil {
		return 0
	}
	v := 0.0
	for i := range lam {
		v += a.At(i, col) * lam[i]
	}
	return v
}

func eye(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

func infNorm(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func shiftedInfNorm(v, dv []float64) float64 {
	m := 0.0
	for i := range v {
		m = math.Max(m, math.Abs(v[i]+dv[i]))
	}
	return m
}

func l1Norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += math.Abs(x)
	}
	return s
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finiteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if !isFinite(v.AtVec(i)) {
			return false
		}
	}
	return true
}
