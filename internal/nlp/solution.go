package nlp

// Status classifies the outcome of a solve.
type Status int

const (
	StatusConverged Status = iota
	StatusMaxIterations
	StatusInfeasible
	StatusNumericalError
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max iterations"
	case StatusInfeasible:
		return "infeasible"
	case StatusNumericalError:
		return "numerical error"
	default:
		return "unknown"
	}
}

// Solution is the result of a solve. DualBounds[i] is the net bound
// multiplier zU[i]-zL[i] of variable i, so a positive value means the
// upper bound is active and equals the objective improvement available
// per unit of bound relaxation. For a variable fixed by lbx==ubx it is
// the multiplier of the pinning constraint. DualCons holds one
// multiplier per constraint row.
type Solution struct {
	Status     Status
	Primal     []float64
	DualBounds []float64
	DualCons   []float64
	Objective  float64
	Iterations int

	// Residual is the unscaled KKT error at the returned point.
	Residual float64
}
