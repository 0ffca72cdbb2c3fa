// Package ocp transcribes continuous-time optimal control problems into
// nonlinear programs by multiple shooting and drives a registered nlp
// solver on the result.
//
// The decision vector holds the shooting states X_0..X_N, the
// piecewise-constant controls U_0..U_{N-1} and the free parameters P.
// Each shooting interval contributes continuity rows
//
//	X_{k+1} - F(t_k, X_k, U_k, P) = 0
//
// where F integrates the dynamics with an adaptive Runge-Kutta method
// that also propagates forward sensitivities, so the constraint
// Jacobian is exact to integration tolerance. Intervals are independent
// and evaluated in parallel.
package ocp
