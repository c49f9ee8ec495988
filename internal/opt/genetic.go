package opt

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/MaxHalford/eaopt"
)

// Genetic is a generational genetic algorithm: tournament selection, uniform
// crossover and Gaussian mutation. Like Mayfly it searches the unit cube,
// which is mapped linearly onto the box, so bounds are honoured natively.
type Genetic struct {
	Population     int
	Generations    int
	Tournament     int
	MutationRate   float64
	MutationSigma  float64
	CrossoverRate  float64
	MaxEvaluations int // 0 means only Generations limits the run
	StopFitness    float64
	Seed           int64
}

// DefaultGenetic returns the genetic algorithm settings used when no
// parameters are given.
func DefaultGenetic() Genetic {
	return Genetic{
		Population:     30,
		Generations:    200,
		Tournament:     3,
		MutationRate:   0.5,
		MutationSigma:  0.1,
		CrossoverRate:  0.7,
		MaxEvaluations: 10000,
		StopFitness:    1e-3,
		Seed:           1,
	}
}

func (g Genetic) Name() string { return AlgorithmGenetic }

// Validate checks the configuration ranges.
func (g Genetic) Validate() error {
	switch {
	case g.Population < 2:
		return fmt.Errorf("%w: genetic population must be at least 2, got %d", ErrInvalidConfig, g.Population)
	case g.Generations <= 0:
		return fmt.Errorf("%w: genetic generations must be positive, got %d", ErrInvalidConfig, g.Generations)
	case g.Tournament < 1 || g.Tournament > g.Population:
		return fmt.Errorf("%w: genetic tournament must be in [1, population], got %d", ErrInvalidConfig, g.Tournament)
	case g.MutationRate < 0 || g.MutationRate > 1:
		return fmt.Errorf("%w: genetic mutationRate must be in [0,1], got %g", ErrInvalidConfig, g.MutationRate)
	case g.CrossoverRate < 0 || g.CrossoverRate > 1:
		return fmt.Errorf("%w: genetic crossoverRate must be in [0,1], got %g", ErrInvalidConfig, g.CrossoverRate)
	case !(g.MutationSigma > 0):
		return fmt.Errorf("%w: genetic mutationSigma must be positive, got %g", ErrInvalidConfig, g.MutationSigma)
	case g.MaxEvaluations < 0:
		return fmt.Errorf("%w: maxEvaluations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// unitGenome is a point of the unit cube. All genomes of a run share the
// guarded objective.
type unitGenome struct {
	u     []float64
	sigma float64
	eval  func(u []float64) (float64, error)
}

func (x *unitGenome) Evaluate() (float64, error) { return x.eval(x.u) }

func (x *unitGenome) Mutate(rng *rand.Rand) {
	for i := range x.u {
		x.u[i] = clamp(x.u[i]+x.sigma*rng.NormFloat64(), 0, 1)
	}
}

func (x *unitGenome) Crossover(y eaopt.Genome, rng *rand.Rand) {
	eaopt.CrossUniformFloat64(x.u, y.(*unitGenome).u, rng)
}

func (x *unitGenome) Clone() eaopt.Genome {
	return &unitGenome{u: append([]float64(nil), x.u...), sigma: x.sigma, eval: x.eval}
}

func (g Genetic) Minimize(f func([]float64) float64, x0 []float64, bounds Bounds) (sol Solution, err error) {
	defer recoverFailure(g.Name(), &err)
	if err := g.Validate(); err != nil {
		return Solution{}, err
	}
	dim := len(x0)
	if err := bounds.Validate(dim); err != nil {
		return Solution{}, err
	}

	obj := guard(f, g.MaxEvaluations)
	eval := func(u []float64) (float64, error) {
		x := make([]float64, dim)
		for i := range x {
			x[i] = bounds.Lower[i] + u[i]*(bounds.Upper[i]-bounds.Lower[i])
		}
		v := obj.Eval(x)
		return v, obj.Err()
	}

	// The caller's starting point is the first member of the population.
	start := make([]float64, dim)
	for i, v := range bounds.Clamp(x0) {
		if width := bounds.Upper[i] - bounds.Lower[i]; width > 0 {
			start[i] = (v - bounds.Lower[i]) / width
		}
	}
	seeded := false
	newGenome := func(rng *rand.Rand) eaopt.Genome {
		u := start
		if seeded {
			u = eaopt.InitUnifFloat64(uint(dim), 0, 1, rng)
		}
		seeded = true
		return &unitGenome{u: append([]float64(nil), u...), sigma: g.MutationSigma, eval: eval}
	}

	config := eaopt.NewDefaultGAConfig()
	config.PopSize = uint(g.Population)
	config.NGenerations = uint(g.Generations)
	config.Model = eaopt.ModGenerational{
		Selector:  eaopt.SelTournament{NContestants: uint(g.Tournament)},
		MutRate:   g.MutationRate,
		CrossRate: g.CrossoverRate,
	}
	config.RNG = rand.New(rand.NewSource(g.Seed))
	config.EarlyStop = func(*eaopt.GA) bool {
		if g.MaxEvaluations > 0 && obj.Evaluations() >= g.MaxEvaluations {
			return true
		}
		_, best := obj.Best()
		return best <= g.StopFitness
	}

	ga, err := config.NewGA()
	if err != nil {
		return Solution{}, fmt.Errorf("%w: genetic: %v", ErrInvalidConfig, err)
	}
	runErr := ga.Minimize(newGenome)
	if err := obj.Err(); err != nil {
		return Solution{Evaluations: obj.Evaluations()}, err
	}
	if runErr != nil {
		return Solution{Evaluations: obj.Evaluations()}, fmt.Errorf("%w: genetic: %v", ErrMinimizerFailed, runErr)
	}

	x, fx := obj.Best()
	sol = Solution{X: x, F: fx, Evaluations: obj.Evaluations()}
	if sol.X == nil || math.IsNaN(sol.F) {
		return sol, fmt.Errorf("%w: genetic found no finite value", ErrMinimizerFailed)
	}
	sol.Converged = sol.F <= g.StopFitness

	slog.Debug("Genetic run complete",
		"dim", dim,
		"population", g.Population,
		"generations", ga.Generations,
		"evaluations", sol.Evaluations,
		"best", sol.F,
	)
	return sol, nil
}
