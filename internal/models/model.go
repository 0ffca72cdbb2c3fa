package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/trajopt/internal/fx"
)

// Model bundles the symbolic pieces of one optimal control problem.
// Mayer, Lagrange and Path may be nil. Bounds and initial conditions
// are applied on the transcriber by the caller.
type Model struct {
	Name     string
	Dynamics *fx.Function
	Mayer    *fx.Function
	Lagrange *fx.Function
	Path     *fx.Function
}

// Builder constructs a model.
type Builder func() (*Model, error)

var builders = map[string]Builder{
	"harvester":         Harvester,
	"powered-ascent":    PoweredAscent,
	"vanderpol":         VanDerPol,
	"double-integrator": DoubleIntegrator,
}

// ByName builds a registered model.
func ByName(name string) (*Model, error) {
	b, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("models: unknown model %q (have %v)", name, Names())
	}
	return b()
}

// Names lists the registered models.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
