package opt

import "fmt"

// Names lists the strategies New accepts.
func Names() []string {
	return []string{AlgorithmMayfly, AlgorithmCMAES, AlgorithmNelderMead, AlgorithmRandom, AlgorithmGenetic, AlgorithmHybrid}
}

// New builds the named strategy from params. Missing keys take the
// algorithm's defaults, unknown keys are ignored and a value of the wrong
// type counts as missing. The resulting configuration is validated once here.
func New(name string, params Params) (Strategy, error) {
	var m Minimizer
	switch name {
	case AlgorithmMayfly:
		c := MayflyFromParams(params)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		m = c
	case AlgorithmCMAES:
		c := CMAESFromParams(params)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		m = c
	case AlgorithmNelderMead:
		c := NelderMeadFromParams(params)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		m = c
	case AlgorithmRandom:
		c := RandomSearchFromParams(params)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		m = c
	case AlgorithmGenetic:
		c := GeneticFromParams(params)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		m = c
	case AlgorithmHybrid:
		return HybridFromParams(params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return NewSingle(m), nil
}

// MayflyFromParams reads iterations, population, maxEvaluations,
// stopFitness and seed.
func MayflyFromParams(p Params) Mayfly {
	d := DefaultMayfly()
	return Mayfly{
		Iterations:     p.Int("iterations", d.Iterations),
		Population:     p.Int("population", d.Population),
		MaxEvaluations: p.Int("maxEvaluations", d.MaxEvaluations),
		StopFitness:    p.Float("stopFitness", d.StopFitness),
		Seed:           p.Int64("seed", d.Seed),
	}
}

// CMAESFromParams reads sigma, populationMultiplier, maxEvaluations,
// stopFitness, patience and seed.
func CMAESFromParams(p Params) CMAES {
	d := DefaultCMAES()
	return CMAES{
		Sigma:                p.Float("sigma", d.Sigma),
		PopulationMultiplier: p.Int("populationMultiplier", d.PopulationMultiplier),
		MaxEvaluations:       p.Int("maxEvaluations", d.MaxEvaluations),
		StopFitness:          p.Float("stopFitness", d.StopFitness),
		Patience:             p.Int("patience", d.Patience),
		Seed:                 p.Int64("seed", d.Seed),
	}
}

// NelderMeadFromParams reads stepSize, relativeThreshold, absoluteThreshold,
// patience and maxEvaluations.
func NelderMeadFromParams(p Params) NelderMead {
	d := DefaultNelderMead()
	return NelderMead{
		StepSize:          p.Float("stepSize", d.StepSize),
		RelativeThreshold: p.Float("relativeThreshold", d.RelativeThreshold),
		AbsoluteThreshold: p.Float("absoluteThreshold", d.AbsoluteThreshold),
		Patience:          p.Int("patience", d.Patience),
		MaxEvaluations:    p.Int("maxEvaluations", d.MaxEvaluations),
	}
}

// RandomSearchFromParams reads maxEvaluations, stopFitness and seed.
func RandomSearchFromParams(p Params) RandomSearch {
	d := DefaultRandomSearch()
	return RandomSearch{
		MaxEvaluations: p.Int("maxEvaluations", d.MaxEvaluations),
		StopFitness:    p.Float("stopFitness", d.StopFitness),
		Seed:           p.Int64("seed", d.Seed),
	}
}

// GeneticFromParams reads population, generations, tournament, mutationRate,
// mutationSigma, crossoverRate, maxEvaluations, stopFitness and seed.
func GeneticFromParams(p Params) Genetic {
	d := DefaultGenetic()
	return Genetic{
		Population:     p.Int("population", d.Population),
		Generations:    p.Int("generations", d.Generations),
		Tournament:     p.Int("tournament", d.Tournament),
		MutationRate:   p.Float("mutationRate", d.MutationRate),
		MutationSigma:  p.Float("mutationSigma", d.MutationSigma),
		CrossoverRate:  p.Float("crossoverRate", d.CrossoverRate),
		MaxEvaluations: p.Int("maxEvaluations", d.MaxEvaluations),
		StopFitness:    p.Float("stopFitness", d.StopFitness),
		Seed:           p.Int64("seed", d.Seed),
	}
}
