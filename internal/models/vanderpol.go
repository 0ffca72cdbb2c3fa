package models

import (
	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// VanDerPol is the controlled Van der Pol oscillator with a quadratic
// running cost and a path constraint keeping the first state above
// -0.25, enforced through the transcriber's path bounds.
func VanDerPol() (*Model, error) {
	p := sx.NewPool()
	t := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 2)
	u := p.SymbolVector("u", 1)

	one := p.Const(1)
	groups := []fx.Group{
		{Name: "t", Syms: t},
		{Name: "x", Syms: x},
		{Name: "u", Syms: u},
		{Name: "p", Syms: nil},
	}

	dyn, err := fx.New(p, "vanderpol", groups, []*sx.Node{
		p.Add(p.Mul(p.Sub(one, p.Mul(x[1], x[1])), x[0]), p.Add(p.Neg(x[1]), u[0])),
		x[0],
	})
	if err != nil {
		return nil, err
	}

	lagrange, err := fx.New(p, "vanderpol_cost", groups, []*sx.Node{
		p.Add(p.Add(p.Mul(x[0], x[0]), p.Mul(x[1], x[1])), p.Mul(u[0], u[0])),
	})
	if err != nil {
		return nil, err
	}

	path, err := fx.New(p, "vanderpol_floor", groups, []*sx.Node{x[0]})
	if err != nil {
		return nil, err
	}

	return &Model{Name: "vanderpol", Dynamics: dyn, Lagrange: lagrange, Path: path}, nil
}
