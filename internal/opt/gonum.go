package opt

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// runGonum drives an optimize.Method on the projection of f into bounds and
// reports the best point seen.
func runGonum(name string, method optimize.Method, f func([]float64) float64, x0 []float64, bounds Bounds, maxEvaluations int, converger optimize.Converger) (sol Solution, status optimize.Status, err error) {
	defer recoverFailure(name, &err)
	if err := bounds.Validate(len(x0)); err != nil {
		return Solution{}, optimize.NotTerminated, err
	}

	obj := guard(func(x []float64) float64 { return f(bounds.Clamp(x)) }, maxEvaluations)
	problem := optimize.Problem{
		Func: obj.Eval,
		Status: func() (optimize.Status, error) {
			if err := obj.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvaluations,
		Converger:       converger,
	}

	result, runErr := optimize.Minimize(problem, bounds.Clamp(x0), settings, method)
	evals := obj.Evaluations()
	if err := obj.Err(); err != nil {
		return Solution{Evaluations: evals}, optimize.Failure, err
	}
	if runErr != nil {
		return Solution{Evaluations: evals}, optimize.Failure, fmt.Errorf("%w: %s: %v", ErrMinimizerFailed, name, runErr)
	}

	x, fx := obj.Best()
	if x == nil || math.IsNaN(fx) {
		return Solution{Evaluations: evals}, result.Status, fmt.Errorf("%w: %s found no finite value", ErrMinimizerFailed, name)
	}

	slog.Debug("Gonum run complete",
		"method", name,
		"status", result.Status.String(),
		"evaluations", evals,
		"major_iterations", result.MajorIterations,
		"best", fx,
	)
	return Solution{X: bounds.Clamp(x), F: fx, Evaluations: evals}, result.Status, nil
}

// NelderMead is the derivative-free downhill simplex. It has no native bounds
// support; candidates are projected into the box before evaluation.
type NelderMead struct {
	StepSize          float64
	RelativeThreshold float64
	AbsoluteThreshold float64
	Patience          int
	MaxEvaluations    int
}

// DefaultNelderMead returns the simplex settings used when no parameters are given.
func DefaultNelderMead() NelderMead {
	return NelderMead{
		StepSize:          0.1,
		RelativeThreshold: 1e-6,
		AbsoluteThreshold: 1e-6,
		Patience:          50,
		MaxEvaluations:    100000,
	}
}

func (n NelderMead) Name() string { return AlgorithmNelderMead }

// Validate checks the configuration ranges.
func (n NelderMead) Validate() error {
	switch {
	case !(n.StepSize > 0):
		return fmt.Errorf("%w: nelder-mead stepSize must be positive, got %g", ErrInvalidConfig, n.StepSize)
	case n.RelativeThreshold < 0 || n.AbsoluteThreshold < 0:
		return fmt.Errorf("%w: nelder-mead thresholds must not be negative", ErrInvalidConfig)
	case n.Patience <= 0:
		return fmt.Errorf("%w: nelder-mead patience must be positive, got %d", ErrInvalidConfig, n.Patience)
	case n.MaxEvaluations <= 0:
		return fmt.Errorf("%w: maxEvaluations must be positive, got %d", ErrInvalidConfig, n.MaxEvaluations)
	}
	return nil
}

func (n NelderMead) Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (Solution, error) {
	if err := n.Validate(); err != nil {
		return Solution{}, err
	}
	converger := &optimize.FunctionConverge{
		Absolute:   n.AbsoluteThreshold,
		Relative:   n.RelativeThreshold,
		Iterations: n.Patience,
	}
	sol, _, err := runGonum(n.Name(), &optimize.NelderMead{SimplexSize: n.StepSize}, f, x0, bounds, n.MaxEvaluations, converger)
	if err != nil {
		return sol, err
	}
	sol.Converged = sol.Evaluations < n.MaxEvaluations
	return sol, nil
}

// CMAES is the covariance matrix adaptation evolution strategy (Cholesky
// variant). The initial search distribution is centred on the starting point
// with per-dimension standard deviation Sigma·(upper-lower), or Sigmas when
// given.
type CMAES struct {
	Sigma                float64
	Sigmas               []float64
	PopulationMultiplier int
	MaxEvaluations       int
	StopFitness          float64
	Patience             int
	Seed                 int64
}

const cmaesMinPopulation = 4

// DefaultCMAES returns the CMA-ES settings used when no parameters are given.
func DefaultCMAES() CMAES {
	return CMAES{
		Sigma:                0.3,
		PopulationMultiplier: 5,
		MaxEvaluations:       10000,
		StopFitness:          1e-3,
		Patience:             100,
		Seed:                 1,
	}
}

func (c CMAES) Name() string { return AlgorithmCMAES }

// Validate checks the configuration ranges.
func (c CMAES) Validate() error {
	switch {
	case !(c.Sigma > 0) && len(c.Sigmas) == 0:
		return fmt.Errorf("%w: cma-es sigma must be positive, got %g", ErrInvalidConfig, c.Sigma)
	case c.PopulationMultiplier <= 0:
		return fmt.Errorf("%w: cma-es populationMultiplier must be positive, got %d", ErrInvalidConfig, c.PopulationMultiplier)
	case c.MaxEvaluations <= 0:
		return fmt.Errorf("%w: maxEvaluations must be positive, got %d", ErrInvalidConfig, c.MaxEvaluations)
	case c.Patience < 0:
		return fmt.Errorf("%w: cma-es patience must not be negative", ErrInvalidConfig)
	}
	for i, s := range c.Sigmas {
		if !(s > 0) {
			return fmt.Errorf("%w: cma-es sigma %d must be positive, got %g", ErrInvalidConfig, i, s)
		}
	}
	return nil
}

func (c CMAES) Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (Solution, error) {
	if err := c.Validate(); err != nil {
		return Solution{}, err
	}
	dim := len(x0)
	if len(c.Sigmas) > 0 && len(c.Sigmas) != dim {
		return Solution{}, fmt.Errorf("%w: %d sigmas for %d dimensions", ErrInvalidConfig, len(c.Sigmas), dim)
	}
	if err := bounds.Validate(dim); err != nil {
		return Solution{}, err
	}

	cov := mat.NewDiagDense(dim, nil)
	for i := 0; i < dim; i++ {
		s := c.Sigma * (bounds.Upper[i] - bounds.Lower[i])
		if len(c.Sigmas) > 0 {
			s = c.Sigmas[i]
		}
		if !(s > 0) {
			s = c.Sigma
		}
		cov.SetDiag(i, s*s)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return Solution{}, fmt.Errorf("%w: cma-es initial covariance is not positive definite", ErrInvalidConfig)
	}

	population := c.PopulationMultiplier * dim
	if population < cmaesMinPopulation {
		population = cmaesMinPopulation
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 1,
		Population:   population,
		InitCholesky: &chol,
		Src:          rand.NewSource(uint64(c.Seed)),
	}
	tracker := NewTracker(c.Patience, 1e-9, c.StopFitness)

	sol, _, err := runGonum(c.Name(), method, f, x0, bounds, c.MaxEvaluations, tracker)
	if err != nil {
		return sol, err
	}
	sol.Converged = sol.F < c.StopFitness
	return sol, nil
}

// RandomSearch samples the box uniformly and keeps the best sample.
type RandomSearch struct {
	MaxEvaluations int
	StopFitness    float64
	Seed           int64
}

// DefaultRandomSearch returns the random search settings used when no
// parameters are given.
func DefaultRandomSearch() RandomSearch {
	return RandomSearch{MaxEvaluations: 2000, StopFitness: 1e-3, Seed: 1}
}

func (r RandomSearch) Name() string { return AlgorithmRandom }

// Validate checks the configuration ranges.
func (r RandomSearch) Validate() error {
	if r.MaxEvaluations <= 0 {
		return fmt.Errorf("%w: maxEvaluations must be positive, got %d", ErrInvalidConfig, r.MaxEvaluations)
	}
	return nil
}

func (r RandomSearch) Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (Solution, error) {
	if err := r.Validate(); err != nil {
		return Solution{}, err
	}
	if err := bounds.Validate(len(x0)); err != nil {
		return Solution{}, err
	}

	intervals := make([]r1.Interval, len(x0))
	for i := range intervals {
		intervals[i] = r1.Interval{Min: bounds.Lower[i], Max: bounds.Upper[i]}
	}
	method := &optimize.GuessAndCheck{
		Rander: distmv.NewUniform(intervals, rand.NewSource(uint64(r.Seed))),
	}
	tracker := NewTracker(0, 0, r.StopFitness)

	sol, _, err := runGonum(r.Name(), method, f, x0, bounds, r.MaxEvaluations, tracker)
	if err != nil {
		return sol, err
	}
	sol.Converged = sol.F < r.StopFitness
	return sol, nil
}
