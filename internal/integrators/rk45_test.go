package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// oscillator builds the harmonic oscillator x'=v, v'=-x with empty q.
func oscillator(t *testing.T) *fx.Function {
	t.Helper()
	p := sx.NewPool()
	tt := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 2)
	f, err := fx.New(p, "oscillator",
		[]fx.Group{{Name: "t", Syms: tt}, {Name: "x", Syms: x}, {Name: "q", Syms: nil}},
		[]*sx.Node{x[1], p.Neg(x[0])})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// riser builds y'=v, v'=p+v^2 with q=[p], the parametric climb problem
// with closed-form solution y(T) = y0 - ln cos(sqrt(p) T) for v0=0.
func riser(t *testing.T) *fx.Function {
	t.Helper()
	p := sx.NewPool()
	tt := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 2)
	q := p.SymbolVector("q", 1)
	f, err := fx.New(p, "riser",
		[]fx.Group{{Name: "t", Syms: tt}, {Name: "x", Syms: x}, {Name: "q", Syms: q}},
		[]*sx.Node{x[1], p.Add(q[0], p.Mul(x[1], x[1]))})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func tightConfig() Config {
	cfg := DefaultConfig()
	cfg.RelTol = 1e-12
	cfg.AbsTol = 1e-12
	cfg.MaxSteps = 100000
	return cfg
}

func TestRK45_ExponentialDecay(t *testing.T) {
	p := sx.NewPool()
	tt := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 1)
	f, err := fx.New(p, "decay",
		[]fx.Group{{Name: "t", Syms: tt}, {Name: "x", Syms: x}, {Name: "q", Syms: nil}},
		[]*sx.Node{p.Neg(x[0])})
	if err != nil {
		t.Fatal(err)
	}

	integ, err := NewRK45(tightConfig(), f)
	if err != nil {
		t.Fatal(err)
	}
	res, err := integ.Integrate(context.Background(), 0, 2, []float64{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Exp(-2)
	if math.Abs(res.XF[0]-want) > 1e-10 {
		t.Errorf("xf = %v, want %v", res.XF[0], want)
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	integ, err := NewRK45(tightConfig(), oscillator(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := integ.Integrate(context.Background(), 0, 20*math.Pi, []float64{1, 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	energy := 0.5 * (res.XF[0]*res.XF[0] + res.XF[1]*res.XF[1])
	if drift := math.Abs(energy - 0.5); drift > 1e-8 {
		t.Errorf("energy drift %e too high", drift)
	}
}

func TestRK45_SensitivitiesMatchClosedForm(t *testing.T) {
	const (
		pval = 0.2
		te   = 0.4
	)
	integ, err := NewRK45(tightConfig(), riser(t))
	if err != nil {
		t.Fatal(err)
	}
	res, sens, err := integ.IntegrateSens(context.Background(), 0, te, []float64{1, 0}, []float64{pval})
	if err != nil {
		t.Fatal(err)
	}

	sp := math.Sqrt(pval)
	tn := math.Tan(sp * te)

	if got, want := res.XF[0], 1-math.Log(math.Cos(sp*te)); math.Abs(got-want) > 1e-9 {
		t.Errorf("y(T) = %v, want %v", got, want)
	}
	if got, want := res.XF[1], sp*tn; math.Abs(got-want) > 1e-9 {
		t.Errorf("v(T) = %v, want %v", got, want)
	}

	// dxf/dx0 = [[1, tan(sp T)/sp], [0, 1+tan^2(sp T)]]
	wantX0 := [2][2]float64{
		{1, tn / sp},
		{0, 1 + tn*tn},
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if got := sens.DxfDx0.At(i, j); math.Abs(got-wantX0[i][j]) > 1e-8 {
				t.Errorf("dxf/dx0[%d,%d] = %v, want %v", i, j, got, wantX0[i][j])
			}
		}
	}

	// dxf/dp
	wantDyDp := te * tn / (2 * sp)
	wantDvDp := tn/(2*sp) + te*(1+tn*tn)/2
	if got := sens.DxfDq.At(0, 0); math.Abs(got-wantDyDp) > 1e-8 {
		t.Errorf("dy/dp = %v, want %v", got, wantDyDp)
	}
	if got := sens.DxfDq.At(1, 0); math.Abs(got-wantDvDp) > 1e-8 {
		t.Errorf("dv/dp = %v, want %v", got, wantDvDp)
	}
}

func TestRK45_MaxStepsFailure(t *testing.T) {
	cfg := tightConfig()
	cfg.MaxSteps = 3
	integ, err := NewRK45(cfg, oscillator(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = integ.Integrate(context.Background(), 0, 100, []float64{1, 0}, nil)

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if !errors.Is(err, ErrMaxSteps) {
		t.Errorf("expected ErrMaxSteps, got %v", f.Err)
	}
	if f.T < 0 || f.T >= 100 {
		t.Errorf("furthest time %v out of range", f.T)
	}
	if f.RelTol != cfg.RelTol || f.AbsTol != cfg.AbsTol {
		t.Error("failure must carry tolerance context")
	}
}

func TestRK45_FiniteEscape(t *testing.T) {
	p := sx.NewPool()
	tt := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 1)
	f, err := fx.New(p, "quadratic",
		[]fx.Group{{Name: "t", Syms: tt}, {Name: "x", Syms: x}, {Name: "q", Syms: nil}},
		[]*sx.Node{p.Mul(x[0], x[0])})
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.MaxSteps = 2000
	integ, err := NewRK45(cfg, f)
	if err != nil {
		t.Fatal(err)
	}
	// x' = x^2 from x0=1 escapes at t=1; integrating past it must fail
	_, err = integ.Integrate(context.Background(), 0, 2, []float64{1}, nil)
	var fl *Failure
	if !errors.As(err, &fl) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if fl.T > 1.5 {
		t.Errorf("reported furthest time %v beyond the escape", fl.T)
	}
}

func TestRK45_ContextCancellation(t *testing.T) {
	integ, err := NewRK45(tightConfig(), oscillator(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = integ.Integrate(ctx, 0, 10, []float64{1, 0}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRK45_CheckpointRecovery(t *testing.T) {
	cfg := tightConfig()
	cfg.StepsPerCheckpoint = 5
	integ, err := NewRK45(cfg, oscillator(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := integ.Integrate(context.Background(), 0, 2*math.Pi, []float64{1, 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Checkpoints) == 0 {
		t.Fatal("expected checkpoints")
	}

	cp := res.Checkpoints[0]
	xf, err := integ.Recover(context.Background(), cp, nil, 2*math.Pi)
	if err != nil {
		t.Fatal(err)
	}
	for i := range xf {
		if math.Abs(xf[i]-res.XF[i]) > 1e-9 {
			t.Errorf("recovered state[%d] = %v, want %v", i, xf[i], res.XF[i])
		}
	}
}

func TestRK45_ConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelTol = 0
	if _, err := NewRK45(cfg, oscillator(t)); err == nil {
		t.Error("zero reltol must be rejected")
	}
	cfg = DefaultConfig()
	cfg.MaxSteps = 0
	if _, err := NewRK45(cfg, oscillator(t)); err == nil {
		t.Error("zero step budget must be rejected")
	}
}

func TestRK4_Oscillator(t *testing.T) {
	integ, err := NewRK4(oscillator(t))
	if err != nil {
		t.Fatal(err)
	}
	xf, err := integ.Integrate(context.Background(), 0, 2*math.Pi, 1000, []float64{1, 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(xf[0]-1) > 1e-6 || math.Abs(xf[1]) > 1e-6 {
		t.Errorf("one period should return to (1,0), got (%v,%v)", xf[0], xf[1])
	}
}
