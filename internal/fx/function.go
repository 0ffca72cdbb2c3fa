// Package fx provides named function objects over sx expression graphs.
//
// A [Function] is a fixed mapping from ordered groups of input symbols to a
// vector of output expressions. Its signature is validated once at
// construction and never changes; callers treat it as a black box that can
// be evaluated and differentiated. Functions are pure: Call has no side
// effects and the same inputs always produce the same outputs.
package fx

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/sx"
)

// Group is an ordered set of scalar symbols acting as one vector-valued
// input of a Function.
type Group struct {
	Name string
	Syms []*sx.Node
}

// Function is an immutable mapping from input groups to output
// expressions. Every symbol reachable from an output belongs to a declared
// input group; this invariant is checked at construction.
type Function struct {
	name string
	pool *sx.Pool
	in   []Group
	out  []*sx.Node

	mu  sync.Mutex
	jac map[int]*Function
}

// New builds a Function and validates its signature. Construction fails if
// a group contains a non-symbol node, a symbol is declared twice, or an
// output references an undeclared symbol.
func New(pool *sx.Pool, name string, in []Group, out []*sx.Node) (*Function, error) {
	declared := make(map[*sx.Node]bool)
	for gi, g := range in {
		for _, s := range g.Syms {
			if s.Kind() != sx.KindSymbol {
				return nil, fmt.Errorf("%w: function %q input group %d contains non-symbol node %s",
					sx.ErrShapeMismatch, name, gi, s)
			}
			if declared[s] {
				return nil, fmt.Errorf("%w: function %q declares symbol %q twice",
					sx.ErrShapeMismatch, name, s.Name())
			}
			declared[s] = true
		}
	}
	for _, s := range sx.FreeSymbols(out) {
		if !declared[s] {
			return nil, fmt.Errorf("%w: function %q output references undeclared symbol %q",
				sx.ErrShapeMismatch, name, s.Name())
		}
	}
	return &Function{
		name: name,
		pool: pool,
		in:   in,
		out:  out,
		jac:  make(map[int]*Function),
	}, nil
}

func (f *Function) Name() string { return f.name }

// Pool returns the expression pool the function's graph lives in.
func (f *Function) Pool() *sx.Pool { return f.pool }

func (f *Function) NumInputs() int  { return len(f.in) }
func (f *Function) NumOutputs() int { return len(f.out) }

// InputSize returns the length of input group i.
func (f *Function) InputSize(i int) int { return len(f.in[i].Syms) }

// Input returns input group i.
func (f *Function) Input(i int) Group { return f.in[i] }

// Outputs returns the output expressions. The slice must not be modified.
func (f *Function) Outputs() []*sx.Node { return f.out }

// Call evaluates the function at the given input values, one slice per
// input group.
func (f *Function) Call(args ...[]float64) ([]float64, error) {
	out := make([]float64, len(f.out))
	if err := f.CallInto(out, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// CallInto evaluates the function into dst, which must have length
// NumOutputs.
func (f *Function) CallInto(dst []float64, args ...[]float64) error {
	if len(dst) != len(f.out) {
		return fmt.Errorf("%w: function %q output buffer has length %d, want %d",
			sx.ErrShapeMismatch, f.name, len(dst), len(f.out))
	}
	if len(args) != len(f.in) {
		return fmt.Errorf("%w: function %q called with %d input groups, want %d",
			sx.ErrShapeMismatch, f.name, len(args), len(f.in))
	}
	v := f.pool.NewValuation()
	for gi, g := range f.in {
		if len(args[gi]) != len(g.Syms) {
			return fmt.Errorf("%w: function %q input %q has length %d, want %d",
				sx.ErrShapeMismatch, f.name, g.Name, len(args[gi]), len(g.Syms))
		}
		for si, s := range g.Syms {
			if err := v.Bind(s, args[gi][si]); err != nil {
				return err
			}
		}
	}
	for oi, o := range f.out {
		x, err := v.Eval(o)
		if err != nil {
			return err
		}
		dst[oi] = x
	}
	return nil
}

// Jacobian returns a new Function whose outputs are the partial
// derivatives of f's outputs with respect to input group gi, in row-major
// order (output index varies slowest). The remaining groups are carried
// unchanged as parameters. The derivative graph is built on first use and
// cached.
func (f *Function) Jacobian(gi int) (*Function, error) {
	if gi < 0 || gi >= len(f.in) {
		return nil, fmt.Errorf("%w: function %q has no input group %d",
			sx.ErrUnsupportedDifferentiation, f.name, gi)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jac[gi]; ok {
		return j, nil
	}

	group := f.in[gi]
	out := make([]*sx.Node, 0, len(f.out)*len(group.Syms))
	for _, o := range f.out {
		for _, s := range group.Syms {
			d, err := f.pool.Diff(o, s)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	j, err := New(f.pool, fmt.Sprintf("%s_d%s", f.name, group.Name), f.in, out)
	if err != nil {
		return nil, err
	}
	f.jac[gi] = j
	return j, nil
}

// JacobianAt evaluates the Jacobian with respect to group gi at the given
// inputs into a dense matrix of shape NumOutputs x InputSize(gi).
func (f *Function) JacobianAt(gi int, args ...[]float64) (*mat.Dense, error) {
	j, err := f.Jacobian(gi)
	if err != nil {
		return nil, err
	}
	rows, cols := len(f.out), f.InputSize(gi)
	vals := make([]float64, rows*cols)
	if err := j.CallInto(vals, args...); err != nil {
		return nil, err
	}
	return mat.NewDense(rows, cols, vals), nil
}
