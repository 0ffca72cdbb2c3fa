package ocp

import "errors"

// Domain errors for transcription and solve operations.
var (
	// ErrBoundsShapeMismatch indicates a bound or guess vector whose
	// length does not match the problem dimensions.
	ErrBoundsShapeMismatch = errors.New("ocp: bounds shape mismatch")

	// ErrSolveInProgress indicates a setter or second solve was called
	// while a solve is running.
	ErrSolveInProgress = errors.New("ocp: solve in progress")

	// ErrSolverNonConvergence indicates the solver stopped without
	// reaching the requested tolerance.
	ErrSolverNonConvergence = errors.New("ocp: solver did not converge")

	// ErrSolverInfeasible indicates the solver classified the problem
	// as locally infeasible.
	ErrSolverInfeasible = errors.New("ocp: problem appears infeasible")

	// ErrInvalidProblem indicates an inconsistent problem definition.
	ErrInvalidProblem = errors.New("ocp: invalid problem definition")
)
