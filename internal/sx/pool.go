package sx

import (
	"fmt"
	"math"
)

type unaryKey struct {
	op  Op
	arg int
}

type binaryKey struct {
	op   Op
	l, r int
}

// Pool owns every node of an expression graph. All nodes created through
// one pool share its lifetime; there is no per-node reference counting.
// Identical constants and operator applications are interned so that
// repeated construction returns the same node.
type Pool struct {
	nodes    []*Node
	symbols  map[string]*Node
	consts   map[float64]*Node
	unaries  map[unaryKey]*Node
	binaries map[binaryKey]*Node
}

func NewPool() *Pool {
	return &Pool{
		symbols:  make(map[string]*Node),
		consts:   make(map[float64]*Node),
		unaries:  make(map[unaryKey]*Node),
		binaries: make(map[binaryKey]*Node),
	}
}

// Size returns the number of nodes owned by the pool.
func (p *Pool) Size() int { return len(p.nodes) }

func (p *Pool) intern(n *Node) *Node {
	n.id = len(p.nodes)
	p.nodes = append(p.nodes, n)
	return n
}

// Const returns the node for a numeric literal.
func (p *Pool) Const(v float64) *Node {
	if !math.IsNaN(v) {
		if n, ok := p.consts[v]; ok {
			return n
		}
	}
	n := p.intern(&Node{kind: KindConstant, val: v})
	if !math.IsNaN(v) {
		p.consts[v] = n
	}
	return n
}

// Symbol returns the symbol with the given name, creating it with nominal
// scale 1 if it does not exist. Symbol identity is by name: requesting an
// existing name returns the existing node.
func (p *Pool) Symbol(name string) *Node {
	if n, ok := p.symbols[name]; ok {
		return n
	}
	n := p.intern(&Node{kind: KindSymbol, name: name, nominal: 1})
	p.symbols[name] = n
	return n
}

// ScaledSymbol creates a symbol carrying a nominal scale value. It is an
// error to re-declare an existing symbol with a different nominal.
func (p *Pool) ScaledSymbol(name string, nominal float64) (*Node, error) {
	if nominal <= 0 || math.IsInf(nominal, 0) || math.IsNaN(nominal) {
		return nil, fmt.Errorf("%w: nominal for %q must be a positive finite value, got %g",
			ErrShapeMismatch, name, nominal)
	}
	if n, ok := p.symbols[name]; ok {
		if n.nominal != nominal {
			return nil, fmt.Errorf("%w: symbol %q already declared with nominal %g",
				ErrShapeMismatch, name, n.nominal)
		}
		return n, nil
	}
	n := p.intern(&Node{kind: KindSymbol, name: name, nominal: nominal})
	p.symbols[name] = n
	return n, nil
}

// SymbolVector returns n scalar symbols named name[0] .. name[n-1].
func (p *Pool) SymbolVector(name string, n int) []*Node {
	syms := make([]*Node, n)
	for i := range syms {
		syms[i] = p.Symbol(fmt.Sprintf("%s[%d]", name, i))
	}
	return syms
}

func (p *Pool) unary(op Op, a *Node) *Node {
	if a.kind == KindConstant {
		return p.Const(applyUnary(op, a.val))
	}
	if op == OpNeg && a.kind == KindUnary && a.op == OpNeg {
		return a.lhs
	}
	key := unaryKey{op: op, arg: a.id}
	if n, ok := p.unaries[key]; ok {
		return n
	}
	n := p.intern(&Node{kind: KindUnary, op: op, lhs: a})
	p.unaries[key] = n
	return n
}

func (p *Pool) binary(op Op, a, b *Node) *Node {
	if a.kind == KindConstant && b.kind == KindConstant {
		return p.Const(applyBinary(op, a.val, b.val))
	}
	switch op {
	case OpAdd:
		if a.isConst(0) {
			return b
		}
		if b.isConst(0) {
			return a
		}
	case OpSub:
		if b.isConst(0) {
			return a
		}
		if a == b {
			return p.Const(0)
		}
		if a.isConst(0) {
			return p.unary(OpNeg, b)
		}
	case OpMul:
		if a.isConst(0) || b.isConst(0) {
			return p.Const(0)
		}
		if a.isConst(1) {
			return b
		}
		if b.isConst(1) {
			return a
		}
	case OpDiv:
		if a.isConst(0) {
			return p.Const(0)
		}
		if b.isConst(1) {
			return a
		}
	case OpPow:
		if b.isConst(1) {
			return a
		}
		if b.isConst(0) {
			return p.Const(1)
		}
	}
	key := binaryKey{op: op, l: a.id, r: b.id}
	if n, ok := p.binaries[key]; ok {
		return n
	}
	n := p.intern(&Node{kind: KindBinary, op: op, lhs: a, rhs: b})
	p.binaries[key] = n
	return n
}

func (p *Pool) Add(a, b *Node) *Node { return p.binary(OpAdd, a, b) }
func (p *Pool) Sub(a, b *Node) *Node { return p.binary(OpSub, a, b) }
func (p *Pool) Mul(a, b *Node) *Node { return p.binary(OpMul, a, b) }
func (p *Pool) Div(a, b *Node) *Node { return p.binary(OpDiv, a, b) }
func (p *Pool) Pow(a, b *Node) *Node { return p.binary(OpPow, a, b) }
func (p *Pool) Min(a, b *Node) *Node { return p.binary(OpMin, a, b) }
func (p *Pool) Max(a, b *Node) *Node { return p.binary(OpMax, a, b) }

func (p *Pool) Neg(a *Node) *Node  { return p.unary(OpNeg, a) }
func (p *Pool) Sqrt(a *Node) *Node { return p.unary(OpSqrt, a) }
func (p *Pool) Exp(a *Node) *Node  { return p.unary(OpExp, a) }
func (p *Pool) Log(a *Node) *Node  { return p.unary(OpLog, a) }
func (p *Pool) Sin(a *Node) *Node  { return p.unary(OpSin, a) }
func (p *Pool) Cos(a *Node) *Node  { return p.unary(OpCos, a) }
func (p *Pool) Tan(a *Node) *Node  { return p.unary(OpTan, a) }
func (p *Pool) Atan(a *Node) *Node { return p.unary(OpAtan, a) }
func (p *Pool) Tanh(a *Node) *Node { return p.unary(OpTanh, a) }
func (p *Pool) Abs(a *Node) *Node  { return p.unary(OpAbs, a) }

// Substitute returns root with every occurrence of old replaced by repl.
// Untouched subgraphs are shared with the original expression.
func (p *Pool) Substitute(root, old, repl *Node) *Node {
	memo := map[*Node]*Node{old: repl}
	return p.substitute(root, memo)
}

func (p *Pool) substitute(n *Node, memo map[*Node]*Node) *Node {
	if r, ok := memo[n]; ok {
		return r
	}
	var r *Node
	switch n.kind {
	case KindConstant, KindSymbol:
		r = n
	case KindUnary:
		r = p.unary(n.op, p.substitute(n.lhs, memo))
	default:
		r = p.binary(n.op, p.substitute(n.lhs, memo), p.substitute(n.rhs, memo))
	}
	memo[n] = r
	return r
}

// FreeSymbols returns the set of symbols reachable from the given roots,
// in first-encounter order.
func FreeSymbols(roots []*Node) []*Node {
	seen := make(map[*Node]bool)
	var syms []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		switch n.kind {
		case KindSymbol:
			syms = append(syms, n)
		case KindUnary:
			walk(n.lhs)
		case KindBinary:
			walk(n.lhs)
			walk(n.rhs)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return syms
}
