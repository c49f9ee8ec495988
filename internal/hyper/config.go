// Package hyper tunes the parameters of an optimizer strategy. Each candidate
// configuration is scored by running the strategy over a batch of training
// items and averaging the colour error, and an outer minimizer searches the
// configuration space.
package hyper

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/pigmentfit/internal/opt"
)

// ErrUnknownTransform is returned for unrecognized transform names.
var ErrUnknownTransform = errors.New("unknown parameter transform")

// Transform names.
const (
	TransformIdentity = "identity"
	TransformInt      = "int"
	TransformRound    = "round"
	TransformLog      = "log"
	TransformPow10    = "pow10"
)

// Transform maps a continuous search value to the value handed to the
// strategy.
type Transform func(x float64) any

var transforms = map[string]Transform{
	TransformIdentity: func(x float64) any { return x },
	TransformInt:      func(x float64) any { return int(math.Trunc(x)) },
	TransformRound:    func(x float64) any { return int(math.Round(x)) },
	TransformLog:      func(x float64) any { return math.Exp(x) },
	TransformPow10:    func(x float64) any { return math.Pow(10, x) },
}

// LookupTransform returns the named transform. An empty name is identity.
func LookupTransform(name string) (Transform, error) {
	if name == "" {
		name = TransformIdentity
	}
	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return t, nil
}

// Parameter describes one tuned strategy parameter. The search runs over
// [Lower, Upper] starting at Initial; Sigma is the initial exploration scale.
type Parameter struct {
	Name      string  `yaml:"name" json:"name"`
	Initial   float64 `yaml:"initial" json:"initial"`
	Sigma     float64 `yaml:"sigma" json:"sigma"`
	Lower     float64 `yaml:"lower" json:"lower"`
	Upper     float64 `yaml:"upper" json:"upper"`
	Transform string  `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// Validate checks the ranges and the transform name.
func (p Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter without a name", opt.ErrInvalidConfig)
	}
	if _, err := LookupTransform(p.Transform); err != nil {
		return fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	switch {
	case !(p.Lower <= p.Upper):
		return fmt.Errorf("%w: parameter %q has lower %g above upper %g", opt.ErrInvalidConfig, p.Name, p.Lower, p.Upper)
	case p.Initial < p.Lower || p.Initial > p.Upper:
		return fmt.Errorf("%w: parameter %q initial %g outside [%g,%g]", opt.ErrInvalidConfig, p.Name, p.Initial, p.Lower, p.Upper)
	case !(p.Sigma > 0):
		return fmt.Errorf("%w: parameter %q sigma must be positive, got %g", opt.ErrInvalidConfig, p.Name, p.Sigma)
	}
	return nil
}

// Resolve applies the transform to x.
func (p Parameter) Resolve(x float64) (any, error) {
	t, err := LookupTransform(p.Transform)
	if err != nil {
		return nil, err
	}
	return t(x), nil
}

// Sample is the outcome of one tuning run: the strategy, its best
// parameters and the mean error they achieved.
type Sample struct {
	Strategy  string     `json:"strategy"`
	Params    opt.Params `json:"params"`
	MeanError float64    `json:"mean_error"`
}

// Resolve builds the parameters for the continuous vector x on top of base,
// in the order of params.
func Resolve(params []Parameter, base opt.Params, x []float64) (opt.Params, error) {
	if len(x) != len(params) {
		return nil, fmt.Errorf("%w: %d values for %d parameters", opt.ErrInvalidConfig, len(x), len(params))
	}
	out := append(opt.Params(nil), base...)
	for i, p := range params {
		v, err := p.Resolve(x[i])
		if err != nil {
			return nil, err
		}
		out = out.Set(p.Name, v)
	}
	return out, nil
}

// DefaultParameters returns a starting configuration space for the named
// strategy, or nil when there is none.
func DefaultParameters(strategy string) []Parameter {
	switch strategy {
	case opt.AlgorithmCMAES:
		return []Parameter{
			{Name: "sigma", Initial: 0.3, Sigma: 0.1, Lower: 0.01, Upper: 1},
			{Name: "populationMultiplier", Initial: 5, Sigma: 2, Lower: 1, Upper: 20, Transform: TransformRound},
			{Name: "stopFitness", Initial: -3, Sigma: 1, Lower: -8, Upper: -1, Transform: TransformPow10},
		}
	case opt.AlgorithmNelderMead:
		return []Parameter{
			{Name: "stepSize", Initial: 0.1, Sigma: 0.05, Lower: 0.01, Upper: 0.5},
			{Name: "relativeThreshold", Initial: -6, Sigma: 1, Lower: -10, Upper: -2, Transform: TransformPow10},
			{Name: "absoluteThreshold", Initial: -6, Sigma: 1, Lower: -10, Upper: -2, Transform: TransformPow10},
		}
	case opt.AlgorithmMayfly:
		return []Parameter{
			{Name: "iterations", Initial: 100, Sigma: 30, Lower: 10, Upper: 500, Transform: TransformRound},
			{Name: "population", Initial: 20, Sigma: 10, Lower: 20, Upper: 100, Transform: TransformRound},
		}
	case opt.AlgorithmGenetic:
		return []Parameter{
			{Name: "population", Initial: 30, Sigma: 10, Lower: 10, Upper: 100, Transform: TransformRound},
			{Name: "mutationRate", Initial: 0.5, Sigma: 0.2, Lower: 0.05, Upper: 1},
			{Name: "mutationSigma", Initial: 0.1, Sigma: 0.05, Lower: 0.01, Upper: 0.5},
			{Name: "crossoverRate", Initial: 0.7, Sigma: 0.2, Lower: 0, Upper: 1},
		}
	case opt.AlgorithmRandom:
		return []Parameter{
			{Name: "maxEvaluations", Initial: 2000, Sigma: 500, Lower: 100, Upper: 10000, Transform: TransformRound},
		}
	}
	return nil
}
