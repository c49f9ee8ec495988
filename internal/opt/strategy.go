// Package opt provides the optimizer strategies that search for pigment
// weights: black-box minimizer backends (mayfly, gonum) behind one contract,
// a staged global-then-local hybrid, and a factory driven by named parameters.
package opt

import (
	"errors"
	"fmt"
	"log/slog"
)

// Algorithm names accepted by New.
const (
	AlgorithmMayfly     = "Mayfly"
	AlgorithmCMAES      = "CMA-ES"
	AlgorithmNelderMead = "Nelder-Mead"
	AlgorithmRandom     = "Random"
	AlgorithmGenetic    = "Genetic"
	AlgorithmHybrid     = "Hybrid"
)

// ErrUnknownStrategy is returned by New for unrecognized algorithm names.
var ErrUnknownStrategy = errors.New("unknown optimizer strategy")

// Objective is the scalar function a strategy minimizes. goal.Goal
// implements it.
type Objective interface {
	Evaluate(weights []float64) (float64, error)
	Dim() int
}

// Result is the outcome of one optimizer run.
type Result struct {
	Weights     []float64 `json:"weights"`
	Value       float64   `json:"value"`
	Evaluations int       `json:"evaluations"`
	Converged   bool      `json:"converged"`
	Algorithm   string    `json:"algorithm"`
}

// Strategy searches for the weights minimizing an objective. When bounds is
// nil every weight is bounded to [0,1]. On failure the returned Result still
// reports the evaluations spent.
type Strategy interface {
	Optimize(obj Objective, initial []float64, bounds *Bounds) (Result, error)
	Name() string
}

// Single runs one minimizer backend.
type Single struct {
	Minimizer Minimizer
}

// NewSingle wraps m as a strategy.
func NewSingle(m Minimizer) *Single {
	return &Single{Minimizer: m}
}

func (s *Single) Name() string { return s.Minimizer.Name() }

func (s *Single) Optimize(obj Objective, initial []float64, bounds *Bounds) (Result, error) {
	box, err := prepare(obj, initial, bounds)
	if err != nil {
		return Result{Algorithm: s.Name()}, err
	}

	f := func(w []float64) float64 {
		v, err := obj.Evaluate(w)
		if err != nil {
			panic(err)
		}
		return v
	}

	sol, err := s.Minimizer.Minimize(f, initial, box)
	res := Result{
		Weights:     sol.X,
		Value:       sol.F,
		Evaluations: sol.Evaluations,
		Converged:   sol.Converged,
		Algorithm:   s.Name(),
	}
	if err != nil {
		slog.Debug("Optimizer run failed", "algorithm", s.Name(), "evaluations", sol.Evaluations, "error", err)
		return res, fmt.Errorf("%s: %w", s.Name(), err)
	}

	slog.Debug("Optimizer run complete",
		"algorithm", s.Name(),
		"value", res.Value,
		"evaluations", res.Evaluations,
		"converged", res.Converged,
	)
	return res, nil
}

// prepare checks the starting point against the objective and resolves the
// default unit box.
func prepare(obj Objective, initial []float64, bounds *Bounds) (Bounds, error) {
	dim := obj.Dim()
	if len(initial) != dim {
		return Bounds{}, fmt.Errorf("%w: initial guess has %d weights, objective expects %d", ErrInvalidConfig, len(initial), dim)
	}
	if bounds == nil {
		return UnitBounds(dim), nil
	}
	if err := bounds.Validate(dim); err != nil {
		return Bounds{}, err
	}
	return *bounds, nil
}
