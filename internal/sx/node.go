package sx

import (
	"fmt"
	"math"
)

// Kind discriminates the closed set of node variants.
type Kind uint8

const (
	KindConstant Kind = iota
	KindSymbol
	KindUnary
	KindBinary
)

// Op identifies the operator of a unary or binary node.
type Op uint8

const (
	OpNone Op = iota

	// unary
	OpNeg
	OpSqrt
	OpExp
	OpLog
	OpSin
	OpCos
	OpTan
	OpAtan
	OpTanh
	OpAbs

	// binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpMin
	OpMax
)

var opNames = map[Op]string{
	OpNeg: "neg", OpSqrt: "sqrt", OpExp: "exp", OpLog: "log",
	OpSin: "sin", OpCos: "cos", OpTan: "tan", OpAtan: "atan",
	OpTanh: "tanh", OpAbs: "abs",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpPow: "^",
	OpMin: "min", OpMax: "max",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "none"
}

// Node is an immutable expression node. Nodes are created by a Pool and
// are identified by pointer; two pointers into the same pool are equal
// exactly when they denote the same subexpression.
type Node struct {
	id      int
	kind    Kind
	op      Op
	val     float64 // KindConstant
	name    string  // KindSymbol
	nominal float64 // KindSymbol
	lhs     *Node
	rhs     *Node
}

func (n *Node) Kind() Kind { return n.kind }
func (n *Node) Op() Op     { return n.op }

// Name returns the symbol name; empty for non-symbol nodes.
func (n *Node) Name() string { return n.name }

// Constant returns the literal value of a constant node.
func (n *Node) Constant() float64 { return n.val }

// Nominal returns the symbol's nominal scale value (1 by default).
func (n *Node) Nominal() float64 { return n.nominal }

func (n *Node) String() string {
	switch n.kind {
	case KindConstant:
		return fmt.Sprintf("%g", n.val)
	case KindSymbol:
		return n.name
	case KindUnary:
		return fmt.Sprintf("%s(%s)", n.op, n.lhs)
	default:
		switch n.op {
		case OpMin, OpMax:
			return fmt.Sprintf("%s(%s, %s)", n.op, n.lhs, n.rhs)
		}
		return fmt.Sprintf("(%s %s %s)", n.lhs, n.op, n.rhs)
	}
}

// isConst reports whether n is a constant with the given value.
func (n *Node) isConst(v float64) bool {
	return n.kind == KindConstant && n.val == v
}

func applyUnary(op Op, x float64) float64 {
	switch op {
	case OpNeg:
		return -x
	case OpSqrt:
		return math.Sqrt(x)
	case OpExp:
		return math.Exp(x)
	case OpLog:
		return math.Log(x)
	case OpSin:
		return math.Sin(x)
	case OpCos:
		return math.Cos(x)
	case OpTan:
		return math.Tan(x)
	case OpAtan:
		return math.Atan(x)
	case OpTanh:
		return math.Tanh(x)
	case OpAbs:
		return math.Abs(x)
	}
	return math.NaN()
}

func applyBinary(op Op, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpPow:
		return math.Pow(a, b)
	case OpMin:
		return math.Min(a, b)
	case OpMax:
		return math.Max(a, b)
	}
	return math.NaN()
}
