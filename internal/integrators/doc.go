// Package integrators advances fx-defined ordinary differential equations
// over a time interval.
//
// The right-hand side is an [fx.Function] with signature (t, x, q) -> dx/dt
// where t is scalar time, x the state vector and q a free parameter vector
// (the caller decides what q carries; the multiple-shooting layer packs the
// interval's control and the shared problem parameters into it).
//
// [RK45] is an adaptive Dormand-Prince 4(5) method with independent
// relative and absolute tolerances. It can propagate forward sensitivities
// of the terminal state with respect to the initial state and q by
// integrating the variational equations inside the same accepted-step
// loop, so the sensitivities always correspond to the discretized
// trajectory the state itself followed. [RK4] is a fixed-step companion
// used where cheap, tolerance-free propagation is enough (initial-guess
// simulation, cross-checks).
//
// Integration is sequential within one interval; instances are safe for
// concurrent use across intervals because all per-call state is local.
package integrators
