package sx

import "fmt"

// Valuation binds symbols to numeric values and evaluates expressions
// against those bindings. Results are memoized per node, so shared
// subexpressions are computed once.
//
// A valuation is cheap to create and is meant to live for a single
// evaluation pass; bindings from a previous pass can be overwritten with
// Bind but computed intermediates are not invalidated by rebinding, so a
// fresh valuation per pass is the safe pattern.
type Valuation struct {
	pool  *Pool
	vals  []float64
	known []bool
}

func (p *Pool) NewValuation() *Valuation {
	return &Valuation{
		pool:  p,
		vals:  make([]float64, len(p.nodes)),
		known: make([]bool, len(p.nodes)),
	}
}

// Bind assigns a value to a symbol.
func (v *Valuation) Bind(sym *Node, x float64) error {
	if sym.kind != KindSymbol {
		return fmt.Errorf("%w: cannot bind non-symbol node %s", ErrShapeMismatch, sym)
	}
	if sym.id >= len(v.vals) {
		return fmt.Errorf("%w: symbol %q does not belong to this pool", ErrShapeMismatch, sym.name)
	}
	v.vals[sym.id] = x
	v.known[sym.id] = true
	return nil
}

// Eval computes the numeric value of n under the current bindings.
// Referencing a symbol that has not been bound is a shape mismatch.
func (v *Valuation) Eval(n *Node) (float64, error) {
	if n.id >= len(v.vals) {
		return 0, fmt.Errorf("%w: node does not belong to this pool", ErrShapeMismatch)
	}
	if v.known[n.id] {
		return v.vals[n.id], nil
	}
	var x float64
	switch n.kind {
	case KindConstant:
		x = n.val
	case KindSymbol:
		return 0, fmt.Errorf("%w: symbol %q is not bound", ErrShapeMismatch, n.name)
	case KindUnary:
		a, err := v.Eval(n.lhs)
		if err != nil {
			return 0, err
		}
		x = applyUnary(n.op, a)
	default:
		a, err := v.Eval(n.lhs)
		if err != nil {
			return 0, err
		}
		b, err := v.Eval(n.rhs)
		if err != nil {
			return 0, err
		}
		x = applyBinary(n.op, a, b)
	}
	v.vals[n.id] = x
	v.known[n.id] = true
	return x, nil
}
