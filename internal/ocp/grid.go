package ocp

import "fmt"

// Grid is the shooting grid: N intervals between the node times
// Times[0]..Times[N]. Node times must be strictly increasing.
type Grid struct {
	Times []float64
}

// UniformGrid builds a grid with n equal intervals over [t0, tf].
func UniformGrid(t0, tf float64, n int) Grid {
	if n <= 0 {
		return Grid{}
	}
	times := make([]float64, n+1)
	h := (tf - t0) / float64(n)
	for i := range times {
		times[i] = t0 + float64(i)*h
	}
	times[n] = tf
	return Grid{Times: times}
}

// Intervals returns the number of shooting intervals.
func (g Grid) Intervals() int {
	if len(g.Times) == 0 {
		return 0
	}
	return len(g.Times) - 1
}

// Validate checks that the grid has at least one interval and strictly
// increasing node times.
func (g Grid) Validate() error {
	if g.Intervals() < 1 {
		return fmt.Errorf("%w: grid needs at least one interval", ErrInvalidProblem)
	}
	for i := 1; i < len(g.Times); i++ {
		if g.Times[i] <= g.Times[i-1] {
			return fmt.Errorf("%w: grid times must be strictly increasing at node %d",
				ErrInvalidProblem, i)
		}
	}
	return nil
}
