package models

import (
	"github.com/san-kum/trajopt/internal/fx"
	"github.com/san-kum/trajopt/internal/sx"
)

// PoweredAscent is a parameter estimation style climb problem: the
// altitude y obeys y'' = p + (y')^2 with a free thrust parameter p,
// and the objective maximizes the final altitude. For v(0) = 0 the
// trajectory has the closed form
//
//	y(T) = y(0) - ln cos(sqrt(p) T)
//
// which makes the problem a good end-to-end accuracy check.
func PoweredAscent() (*Model, error) {
	pl := sx.NewPool()
	t := pl.SymbolVector("t", 1)
	x := pl.SymbolVector("x", 2) // altitude, climb rate
	par := pl.SymbolVector("p", 1)

	dyn, err := fx.New(pl, "powered_ascent", []fx.Group{
		{Name: "t", Syms: t},
		{Name: "x", Syms: x},
		{Name: "u", Syms: nil},
		{Name: "p", Syms: par},
	}, []*sx.Node{
		x[1],
		pl.Add(par[0], pl.Mul(x[1], x[1])),
	})
	if err != nil {
		return nil, err
	}

	mayer, err := fx.New(pl, "powered_ascent_altitude", []fx.Group{
		{Name: "x", Syms: x},
		{Name: "p", Syms: par},
	}, []*sx.Node{pl.Neg(x[0])})
	if err != nil {
		return nil, err
	}

	return &Model{Name: "powered-ascent", Dynamics: dyn, Mayer: mayer}, nil
}
