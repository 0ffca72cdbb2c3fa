package models

import (
	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// DoubleIntegrator is the minimum-energy point-to-point transfer
// s'' = u with running cost u^2. Reaching (1, 0) from rest in unit
// time has the classic solution u(t) = 6(1 - 2t).
func DoubleIntegrator() (*Model, error) {
	p := sx.NewPool()
	t := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 2) // position, velocity
	u := p.SymbolVector("u", 1)

	groups := []fx.Group{
		{Name: "t", Syms: t},
		{Name: "x", Syms: x},
		{Name: "u", Syms: u},
		{Name: "p", Syms: nil},
	}

	dyn, err := fx.New(p, "double_integrator", groups, []*sx.Node{x[1], u[0]})
	if err != nil {
		return nil, err
	}

	lagrange, err := fx.New(p, "double_integrator_energy", groups,
		[]*sx.Node{p.Mul(u[0], u[0])})
	if err != nil {
		return nil, err
	}

	return &Model{Name: "double-integrator", Dynamics: dyn, Lagrange: lagrange}, nil
}
