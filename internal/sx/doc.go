// Package sx provides immutable scalar expression graphs.
//
// Expressions are directed acyclic graphs of [Node] values owned by a
// [Pool]. A node is one of four kinds:
//
//   - [KindConstant]: a numeric literal
//   - [KindSymbol]: a named leaf variable
//   - [KindUnary], [KindBinary]: an operator applied to child nodes
//
// Nodes are created through the Pool's builder methods (Add, Mul, Sin, ...)
// and are freely shared between expressions; structurally identical nodes
// are interned so shared subgraphs stay shared. Nodes live exactly as long
// as their pool.
//
// Three operations are supported on a built graph: numeric evaluation
// through a [Valuation], symbolic differentiation with [Pool.Diff], and
// structural substitution with [Pool.Substitute]. Differentiation builds a
// new expression once; evaluating it is exact to machine precision.
//
// # Thread Safety
//
// A Pool is not safe for concurrent construction. Once a graph is built it
// is immutable, and any number of Valuations may evaluate it concurrently.
package sx
