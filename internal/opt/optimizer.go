package opt

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrMinimizerFailed wraps a numerical failure (error or panic) inside a
	// minimizer backend.
	ErrMinimizerFailed = errors.New("minimizer failed")

	// ErrInvalidConfig is returned when a minimizer or strategy configuration
	// is out of range.
	ErrInvalidConfig = errors.New("invalid optimizer configuration")
)

// Bounds is a per-dimension box constraint.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// UnitBounds returns [0,1] for every dimension.
func UnitBounds(dim int) Bounds {
	b := Bounds{Lower: make([]float64, dim), Upper: make([]float64, dim)}
	for i := range b.Upper {
		b.Upper[i] = 1
	}
	return b
}

// Dim returns the number of bounded dimensions.
func (b Bounds) Dim() int { return len(b.Lower) }

// Validate checks that the box has dim dimensions and lower <= upper.
func (b Bounds) Validate(dim int) error {
	if len(b.Lower) != dim || len(b.Upper) != dim {
		return fmt.Errorf("%w: bounds have %d/%d entries, want %d", ErrInvalidConfig, len(b.Lower), len(b.Upper), dim)
	}
	for i := range b.Lower {
		if !(b.Lower[i] <= b.Upper[i]) {
			return fmt.Errorf("%w: lower bound %g exceeds upper bound %g at %d", ErrInvalidConfig, b.Lower[i], b.Upper[i], i)
		}
	}
	return nil
}

// Contains reports whether x lies inside the box.
func (b Bounds) Contains(x []float64) bool {
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// Clamp returns a copy of x projected into the box.
func (b Bounds) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = clamp(v, b.Lower[i], b.Upper[i])
	}
	return out
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}

// Solution is what a minimizer reports: the best point, its value and the
// number of objective evaluations spent.
type Solution struct {
	X           []float64
	F           float64
	Evaluations int
	// Converged is set when the backend stopped on its own convergence
	// criterion rather than on its evaluation budget.
	Converged bool
}

// Minimizer is a black-box, derivative-free minimizer. Backends hold their
// own configuration (budget, population, step sizes, seed).
type Minimizer interface {
	// Minimize searches for the minimum of f starting at x0. Backends that
	// do not support bounds natively evaluate f at the projection of each
	// candidate into bounds.
	Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (Solution, error)
	Name() string
}

// guardedObjective counts evaluations, remembers the best point seen and
// turns a panic inside the objective into a recorded failure. Backends may
// call it from worker goroutines.
type guardedObjective struct {
	f   func([]float64) float64
	max int // 0 means unlimited

	mu    sync.Mutex
	count int
	err   error
	bestX []float64
	bestF float64
}

func guard(f func([]float64) float64, maxEvaluations int) *guardedObjective {
	return &guardedObjective{f: f, max: maxEvaluations, bestF: math.Inf(1)}
}

// Eval returns f(x). Once the budget is spent or a panic was seen it returns
// math.MaxFloat64 without calling f.
func (g *guardedObjective) Eval(x []float64) (v float64) {
	g.mu.Lock()
	if g.err != nil || (g.max > 0 && g.count >= g.max) {
		g.mu.Unlock()
		return math.MaxFloat64
	}
	g.count++
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			g.mu.Lock()
			if g.err == nil {
				if e, ok := r.(error); ok {
					g.err = fmt.Errorf("%w: objective failed: %w", ErrMinimizerFailed, e)
				} else {
					g.err = fmt.Errorf("%w: objective panicked: %v", ErrMinimizerFailed, r)
				}
			}
			g.mu.Unlock()
			v = math.MaxFloat64
		}
	}()
	v = g.f(x)

	g.mu.Lock()
	if v < g.bestF {
		g.bestF = v
		g.bestX = append(g.bestX[:0], x...)
	}
	g.mu.Unlock()
	return v
}

// Best returns a copy of the best point evaluated so far and its value.
func (g *guardedObjective) Best() ([]float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]float64(nil), g.bestX...), g.bestF
}

func (g *guardedObjective) Evaluations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *guardedObjective) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// recoverFailure converts a panic raised by a backend on the calling
// goroutine into ErrMinimizerFailed.
func recoverFailure(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s: %v", ErrMinimizerFailed, name, r)
	}
}
