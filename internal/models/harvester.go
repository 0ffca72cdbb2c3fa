package models

import (
	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// Harvester is a resource harvesting problem on an oscillating stock.
// The stock level x swings freely as a harmonic oscillator, the
// harvest rate u in [-1, 1] accumulates yield w' = u*x, and the
// objective maximizes the final yield. The optimal policy is bang-bang
// and follows the sign of the stock.
func Harvester() (*Model, error) {
	p := sx.NewPool()
	t := p.SymbolVector("t", 1)
	x := p.SymbolVector("x", 3) // stock, stock rate, yield
	u := p.SymbolVector("u", 1)

	dyn, err := fx.New(p, "harvester", []fx.Group{
		{Name: "t", Syms: t},
		{Name: "x", Syms: x},
		{Name: "u", Syms: u},
		{Name: "p", Syms: nil},
	}, []*sx.Node{
		x[1],
		p.Neg(x[0]),
		p.Mul(u[0], x[0]),
	})
	if err != nil {
		return nil, err
	}

	mayer, err := fx.New(p, "harvester_yield", []fx.Group{
		{Name: "x", Syms: x},
		{Name: "p", Syms: nil},
	}, []*sx.Node{p.Neg(x[2])})
	if err != nil {
		return nil, err
	}

	return &Model{Name: "harvester", Dynamics: dyn, Mayer: mayer}, nil
}
