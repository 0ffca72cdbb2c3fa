package sx

import (
	"errors"
	"math"
	"testing"
)

func evalAt(t *testing.T, p *Pool, n *Node, binds map[*Node]float64) float64 {
	t.Helper()
	v := p.NewValuation()
	for s, x := range binds {
		if err := v.Bind(s, x); err != nil {
			t.Fatalf("bind: %v", err)
		}
	}
	got, err := v.Eval(n)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	return got
}

func TestEval_Arithmetic(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")

	// x*y + sin(x)/y
	e := p.Add(p.Mul(x, y), p.Div(p.Sin(x), y))

	got := evalAt(t, p, e, map[*Node]float64{x: 1.3, y: -0.7})
	want := 1.3*-0.7 + math.Sin(1.3)/-0.7
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEval_UnboundSymbolIsShapeMismatch(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")
	e := p.Add(x, y)

	v := p.NewValuation()
	if err := v.Bind(x, 1); err != nil {
		t.Fatal(err)
	}
	_, err := v.Eval(e)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestPool_Interning(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")

	if p.Symbol("x") != x {
		t.Error("symbol identity by name violated")
	}
	if p.Const(2) != p.Const(2) {
		t.Error("constants not interned")
	}
	a := p.Mul(x, p.Const(2))
	b := p.Mul(x, p.Const(2))
	if a != b {
		t.Error("identical applications not interned")
	}
}

func TestPool_ScaledSymbol(t *testing.T) {
	p := NewPool()
	s, err := p.ScaledSymbol("T", 350)
	if err != nil {
		t.Fatal(err)
	}
	if s.Nominal() != 350 {
		t.Errorf("nominal = %v, want 350", s.Nominal())
	}
	if _, err := p.ScaledSymbol("T", 400); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("conflicting nominal should be rejected, got %v", err)
	}
}

func TestDiff_ChainRules(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")

	cases := []struct {
		name  string
		expr  *Node
		deriv func(x float64) float64
	}{
		{"poly", p.Add(p.Mul(x, p.Mul(x, x)), p.Mul(p.Const(3), x)),
			func(v float64) float64 { return 3*v*v + 3 }},
		{"sin", p.Sin(p.Mul(x, x)),
			func(v float64) float64 { return math.Cos(v*v) * 2 * v }},
		{"expdiv", p.Div(p.Exp(x), x),
			func(v float64) float64 { return math.Exp(v)/v - math.Exp(v)/(v*v) }},
		{"logsqrt", p.Log(p.Sqrt(x)),
			func(v float64) float64 { return 0.5 / v }},
		{"tan", p.Tan(x),
			func(v float64) float64 { c := math.Cos(v); return 1 / (c * c) }},
		{"atan", p.Atan(x),
			func(v float64) float64 { return 1 / (1 + v*v) }},
		{"tanh", p.Tanh(x),
			func(v float64) float64 { th := math.Tanh(v); return 1 - th*th }},
		{"powvar", p.Pow(x, x),
			func(v float64) float64 { return math.Pow(v, v) * (math.Log(v) + 1) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := p.Diff(tc.expr, x)
			if err != nil {
				t.Fatal(err)
			}
			for _, v := range []float64{0.3, 1.1, 2.5} {
				got := evalAt(t, p, d, map[*Node]float64{x: v})
				want := tc.deriv(v)
				if math.Abs(got-want) > 1e-12*math.Max(1, math.Abs(want)) {
					t.Errorf("d/dx at %v: got %v, want %v", v, got, want)
				}
			}
		})
	}
}

func TestDiff_UnrelatedSymbolIsZero(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")
	d, err := p.Diff(p.Sin(x), y)
	if err != nil {
		t.Fatal(err)
	}
	if !d.isConst(0) {
		t.Errorf("expected constant zero, got %s", d)
	}
}

func TestDiff_NonSymbolTarget(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	_, err := p.Diff(x, p.Const(1))
	if !errors.Is(err, ErrUnsupportedDifferentiation) {
		t.Errorf("expected ErrUnsupportedDifferentiation, got %v", err)
	}
}

func TestDiff_MinMaxUnsupported(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")
	_, err := p.Diff(p.Min(x, y), x)
	if !errors.Is(err, ErrUnsupportedDifferentiation) {
		t.Errorf("expected ErrUnsupportedDifferentiation, got %v", err)
	}

	// min over subexpressions free of the target differentiates to zero
	d, err := p.Diff(p.Mul(x, p.Min(y, p.Const(2))), x)
	if err != nil {
		t.Fatal(err)
	}
	got := evalAt(t, p, d, map[*Node]float64{y: 5})
	if got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestSubstitute(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")

	// replace x with y^2 in x + sin(x)
	e := p.Add(x, p.Sin(x))
	sub := p.Substitute(e, x, p.Mul(y, y))

	got := evalAt(t, p, sub, map[*Node]float64{y: 1.5})
	want := 2.25 + math.Sin(2.25)
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("got %v, want %v", got, want)
	}

	// the original expression is untouched
	got = evalAt(t, p, e, map[*Node]float64{x: 3})
	if math.Abs(got-(3+math.Sin(3))) > 1e-15 {
		t.Error("substitution mutated the original graph")
	}
}

func TestFreeSymbols(t *testing.T) {
	p := NewPool()
	x := p.Symbol("x")
	y := p.Symbol("y")
	e := p.Add(p.Mul(x, y), p.Sin(x))

	syms := FreeSymbols([]*Node{e})
	if len(syms) != 2 {
		t.Fatalf("got %d symbols, want 2", len(syms))
	}
	if syms[0] != x || syms[1] != y {
		t.Error("free symbols not in encounter order")
	}
}
