package opt

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// mayflyMinPopulation is the smallest population mayfly v0.1.0 accepts.
const mayflyMinPopulation = 20

// Mayfly wraps the mayfly metaheuristic. It supports bounds natively: the
// swarm flies in the unit cube, which is mapped linearly onto the box.
type Mayfly struct {
	Iterations     int
	Population     int
	MaxEvaluations int // 0 means only Iterations limits the run
	StopFitness    float64
	Seed           int64
}

// DefaultMayfly returns the mayfly settings used when no parameters are given.
func DefaultMayfly() Mayfly {
	return Mayfly{
		Iterations:     100,
		Population:     mayflyMinPopulation,
		MaxEvaluations: 10000,
		StopFitness:    1e-3,
		Seed:           1,
	}
}

func (m Mayfly) Name() string { return AlgorithmMayfly }

// Validate checks the configuration ranges.
func (m Mayfly) Validate() error {
	switch {
	case m.Iterations <= 0:
		return fmt.Errorf("%w: mayfly iterations must be positive, got %d", ErrInvalidConfig, m.Iterations)
	case m.Population < mayflyMinPopulation:
		return fmt.Errorf("%w: mayfly population must be at least %d, got %d", ErrInvalidConfig, mayflyMinPopulation, m.Population)
	case m.MaxEvaluations < 0:
		return fmt.Errorf("%w: maxEvaluations must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (m Mayfly) Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (sol Solution, err error) {
	defer recoverFailure(m.Name(), &err)
	if err := m.Validate(); err != nil {
		return Solution{}, err
	}
	dim := len(x0)
	if err := bounds.Validate(dim); err != nil {
		return Solution{}, err
	}

	obj := guard(f, m.MaxEvaluations)
	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = bounds.Lower[i] + clamp(u[i], 0, 1)*(bounds.Upper[i]-bounds.Lower[i])
		}
		return x
	}

	// The swarm starts at random; the caller's starting point competes with it.
	obj.Eval(bounds.Clamp(x0))

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 { return obj.Eval(toBox(u)) }
	config.ProblemSize = dim
	config.MaxIterations = m.Iterations
	config.NPop = m.Population
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.Seed))

	if _, err := mayfly.Optimize(config); err != nil {
		return Solution{Evaluations: obj.Evaluations()}, fmt.Errorf("%w: mayfly: %v", ErrMinimizerFailed, err)
	}
	if err := obj.Err(); err != nil {
		return Solution{Evaluations: obj.Evaluations()}, err
	}

	x, fx := obj.Best()
	sol = Solution{X: x, F: fx, Evaluations: obj.Evaluations()}
	if sol.X == nil || math.IsNaN(sol.F) {
		return sol, fmt.Errorf("%w: mayfly found no finite value", ErrMinimizerFailed)
	}
	sol.Converged = sol.F <= m.StopFitness

	slog.Debug("Mayfly run complete",
		"dim", dim,
		"iterations", m.Iterations,
		"population", m.Population,
		"evaluations", sol.Evaluations,
		"best", sol.F,
	)
	return sol, nil
}
