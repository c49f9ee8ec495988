package opt

import (
	"errors"
	"testing"
)

func TestGeneticOnShiftedSphere(t *testing.T) {
	g := DefaultGenetic()
	g.Seed = 42
	g.StopFitness = 0
	f := func(x []float64) float64 { return sphere([]float64{x[0] - 0.3, x[1] - 0.7}) }

	sol, err := g.Minimize(f, []float64{0.9, 0.1}, UnitBounds(2))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if sol.F > 0.01 {
		t.Errorf("Expected cost near 0, got %f at %v", sol.F, sol.X)
	}
	if sol.Evaluations == 0 || sol.Evaluations > g.MaxEvaluations {
		t.Errorf("Evaluations = %d, want 1..%d", sol.Evaluations, g.MaxEvaluations)
	}
}

func TestGeneticStartingPointCompetes(t *testing.T) {
	g := DefaultGenetic()
	g.Generations = 1
	g.Population = 4
	// The optimum sits exactly on the starting point.
	f := func(x []float64) float64 { return sphere([]float64{x[0] - 0.25, x[1] - 0.5}) }

	sol, err := g.Minimize(f, []float64{0.25, 0.5}, UnitBounds(2))
	if err != nil {
		t.Fatal(err)
	}
	if sol.F != 0 || !sol.Converged {
		t.Errorf("Expected the starting point to win, got %v at %v", sol.F, sol.X)
	}
}

func TestGeneticRespectsBounds(t *testing.T) {
	g := DefaultGenetic()
	g.Generations = 20
	f := func(x []float64) float64 { return (x[0] + 4) * (x[0] + 4) }

	sol, err := g.Minimize(f, []float64{1.5}, box(1, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if sol.X[0] < 1 || sol.X[0] > 2 {
		t.Errorf("Solution %v escaped the box", sol.X)
	}
}

func TestGeneticDeterministic(t *testing.T) {
	g := DefaultGenetic()
	g.Generations = 30
	g.Seed = 7

	sol1, err := g.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	sol2, err := g.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if sol1.F != sol2.F || sol1.Evaluations != sol2.Evaluations {
		t.Errorf("Non-deterministic: %v/%d vs %v/%d", sol1.F, sol1.Evaluations, sol2.F, sol2.Evaluations)
	}
}

func TestGeneticEvaluationBudget(t *testing.T) {
	g := DefaultGenetic()
	g.MaxEvaluations = 100
	g.StopFitness = 0

	sol, err := g.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if sol.Evaluations > 100 {
		t.Errorf("Expected at most 100 evaluations, got %d", sol.Evaluations)
	}
}

func TestGeneticValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Genetic)
	}{
		{"population", func(g *Genetic) { g.Population = 1 }},
		{"generations", func(g *Genetic) { g.Generations = 0 }},
		{"tournament", func(g *Genetic) { g.Tournament = g.Population + 1 }},
		{"mutation rate", func(g *Genetic) { g.MutationRate = 1.5 }},
		{"crossover rate", func(g *Genetic) { g.CrossoverRate = -0.1 }},
		{"mutation sigma", func(g *Genetic) { g.MutationSigma = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGenetic()
			tt.modify(&g)
			if err := g.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewGeneticFromParams(t *testing.T) {
	s, err := New(AlgorithmGenetic, Params{{Key: "population", Value: 12}, {Key: "maxEvaluations", Value: 200}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Optimize(sphereObjective{dim: 3}, []float64{0.2, 0.3, 0.5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Algorithm != AlgorithmGenetic || res.Evaluations > 200 {
		t.Errorf("Unexpected result %+v", res)
	}

	if _, err := New(AlgorithmGenetic, Params{{Key: "tournament", Value: 0}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
