// Package nlp defines the nonlinear program contract consumed by the
// transcription layer and provides a dense primal-dual interior-point
// solver with a damped BFGS Hessian approximation.
//
// A Problem carries evaluation closures for the objective, its gradient,
// the constraint vector and its sparse Jacobian, plus simple bounds on
// variables and constraints. Solvers are constructed through a Registry
// so callers select them by name.
package nlp
