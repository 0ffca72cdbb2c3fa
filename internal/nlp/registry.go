package nlp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Options tunes a solver instance.
type Options struct {
	// Tol is the target KKT error.
	Tol float64
	// MaxIter caps the number of iterations.
	MaxIter int
	// Mu0 is the initial barrier parameter.
	Mu0 float64
	// Logger receives per-iteration diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions returns the tuning used when callers pass nothing.
func DefaultOptions() Options {
	return Options{
		Tol:     1e-10,
		MaxIter: 500,
		Mu0:     0.1,
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.Tol <= 0 {
		return fmt.Errorf("%w: tol must be positive, got %v", ErrInvalidProblem, o.Tol)
	}
	if o.MaxIter <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidProblem, o.MaxIter)
	}
	if o.Mu0 <= 0 {
		return fmt.Errorf("%w: initial barrier parameter must be positive, got %v", ErrInvalidProblem, o.Mu0)
	}
	return nil
}

// Solver solves one problem per call. Implementations keep all solve
// state local to the call, so a Solver may be shared across goroutines.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// Factory builds a solver from options.
type Factory func(opts Options) (Solver, error)

// Registry maps solver names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a name. Re-registering a name is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("%w: empty solver registration", ErrInvalidProblem)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: solver %q already registered", ErrInvalidProblem, name)
	}
	r.factories[name] = f
	return nil
}

// New builds the named solver.
func (r *Registry) New(name string, opts Options) (Solver, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownSolver, name, r.Names())
	}
	return f(opts)
}

// Names lists the registered solvers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in solvers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register("interior-point", newInteriorPoint); err != nil {
		panic(err)
	}
	return r
}
