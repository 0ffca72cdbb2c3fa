package ocp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/trajopt/internal/nlp"
)

// Solution is the result of a transcribed solve. Accessors copy, so a
// caller can mutate the returned slices freely.
type Solution struct {
	grid           Grid
	nx, nu, np, nh int

	primal     []float64
	dualBounds []float64
	dualCons   []float64
	objective  float64
	status     nlp.Status
	iterations int
	residual   float64
}

// Objective returns the objective value at the solution.
func (s *Solution) Objective() float64 { return s.objective }

// Status reports how the solver finished.
func (s *Solution) Status() nlp.Status { return s.status }

// Iterations returns the solver iteration count.
func (s *Solution) Iterations() int { return s.iterations }

// Residual returns the KKT error at the returned point.
func (s *Solution) Residual() float64 { return s.residual }

// Times returns the shooting node times.
func (s *Solution) Times() []float64 {
	return append([]float64(nil), s.grid.Times...)
}

// State returns the state at node k, 0 <= k <= N.
func (s *Solution) State(k int) []float64 {
	off := k * s.nx
	return append([]float64(nil), s.primal[off:off+s.nx]...)
}

// States returns all node states as an (N+1) x nx matrix.
func (s *Solution) States() *mat.Dense {
	n := s.grid.Intervals() + 1
	m := mat.NewDense(n, s.nx, nil)
	for k := 0; k < n; k++ {
		m.SetRow(k, s.primal[k*s.nx:(k+1)*s.nx])
	}
	return m
}

// Control returns the control held over interval k, 0 <= k < N.
// The returned slice is empty when the problem has no controls.
func (s *Solution) Control(k int) []float64 {
	off := s.uOffset() + k*s.nu
	return append([]float64{}, s.primal[off:off+s.nu]...)
}

// Controls returns all interval controls, one row per interval.
func (s *Solution) Controls() [][]float64 {
	out := make([][]float64, s.grid.Intervals())
	for k := range out {
		out[k] = s.Control(k)
	}
	return out
}

// Parameters returns the parameter values, empty when np is zero.
func (s *Solution) Parameters() []float64 {
	return append([]float64{}, s.primal[s.pOffset():]...)
}

// ParameterDuals returns the net bound multipliers of the parameters.
func (s *Solution) ParameterDuals() []float64 {
	return append([]float64{}, s.dualBounds[s.pOffset():]...)
}

// StateDuals returns the net bound multipliers of the state at node k.
func (s *Solution) StateDuals(k int) []float64 {
	off := k * s.nx
	return append([]float64(nil), s.dualBounds[off:off+s.nx]...)
}

// ContinuityDuals returns the multipliers of the continuity rows of
// interval k.
func (s *Solution) ContinuityDuals(k int) []float64 {
	off := k * s.nx
	return append([]float64(nil), s.dualCons[off:off+s.nx]...)
}

// PathDuals returns the multipliers of the path rows at node k,
// 0 <= k <= N. The returned slice is empty without path constraints.
func (s *Solution) PathDuals(k int) []float64 {
	off := s.grid.Intervals()*s.nx + k*s.nh
	return append([]float64{}, s.dualCons[off:off+s.nh]...)
}

func (s *Solution) uOffset() int { return (s.grid.Intervals() + 1) * s.nx }

func (s *Solution) pOffset() int { return s.uOffset() + s.grid.Intervals()*s.nu }
