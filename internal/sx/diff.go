package sx

import "fmt"

// Diff builds the expression for the partial derivative of n with respect
// to the symbol wrt. The derivative graph is built once and evaluates
// exactly; no finite differencing is involved. Shared subexpressions are
// differentiated once.
func (p *Pool) Diff(n, wrt *Node) (*Node, error) {
	if wrt.kind != KindSymbol {
		return nil, fmt.Errorf("%w: derivative target %s is not a symbol", ErrUnsupportedDifferentiation, wrt)
	}
	memo := make(map[*Node]*Node)
	return p.diff(n, wrt, memo)
}

func (p *Pool) diff(n, wrt *Node, memo map[*Node]*Node) (*Node, error) {
	if d, ok := memo[n]; ok {
		return d, nil
	}
	d, err := p.diffNode(n, wrt, memo)
	if err != nil {
		return nil, err
	}
	memo[n] = d
	return d, nil
}

func (p *Pool) diffNode(n, wrt *Node, memo map[*Node]*Node) (*Node, error) {
	switch n.kind {
	case KindConstant:
		return p.Const(0), nil

	case KindSymbol:
		if n == wrt {
			return p.Const(1), nil
		}
		return p.Const(0), nil

	case KindUnary:
		du, err := p.diff(n.lhs, wrt, memo)
		if err != nil {
			return nil, err
		}
		if du.isConst(0) {
			return du, nil
		}
		u := n.lhs
		var outer *Node
		switch n.op {
		case OpNeg:
			return p.Neg(du), nil
		case OpSqrt:
			outer = p.Div(p.Const(0.5), n)
		case OpExp:
			outer = n
		case OpLog:
			outer = p.Div(p.Const(1), u)
		case OpSin:
			outer = p.Cos(u)
		case OpCos:
			outer = p.Neg(p.Sin(u))
		case OpTan:
			outer = p.Add(p.Const(1), p.Mul(n, n))
		case OpAtan:
			outer = p.Div(p.Const(1), p.Add(p.Const(1), p.Mul(u, u)))
		case OpTanh:
			outer = p.Sub(p.Const(1), p.Mul(n, n))
		case OpAbs:
			outer = p.Div(u, n)
		default:
			return nil, fmt.Errorf("%w: operator %s", ErrUnsupportedDifferentiation, n.op)
		}
		return p.Mul(outer, du), nil

	default:
		da, err := p.diff(n.lhs, wrt, memo)
		if err != nil {
			return nil, err
		}
		db, err := p.diff(n.rhs, wrt, memo)
		if err != nil {
			return nil, err
		}
		if da.isConst(0) && db.isConst(0) {
			return da, nil
		}
		a, b := n.lhs, n.rhs
		switch n.op {
		case OpAdd:
			return p.Add(da, db), nil
		case OpSub:
			return p.Sub(da, db), nil
		case OpMul:
			return p.Add(p.Mul(da, b), p.Mul(a, db)), nil
		case OpDiv:
			// da/b - a*db/b^2
			return p.Sub(p.Div(da, b), p.Div(p.Mul(a, db), p.Mul(b, b))), nil
		case OpPow:
			if b.kind == KindConstant {
				// c*a^(c-1) * da
				return p.Mul(p.Mul(b, p.Pow(a, p.Const(b.val-1))), da), nil
			}
			// a^b * (db*log(a) + b*da/a)
			term := p.Add(p.Mul(db, p.Log(a)), p.Div(p.Mul(b, da), a))
			return p.Mul(n, term), nil
		default:
			// min/max have no smooth derivative
			return nil, fmt.Errorf("%w: operator %s", ErrUnsupportedDifferentiation, n.op)
		}
	}
}
