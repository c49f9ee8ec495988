package goal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrUnknownNormalizer is returned by NewNormalizer for unrecognized names.
var ErrUnknownNormalizer = errors.New("unknown normalizer")

// Normalizer names accepted by NewNormalizer.
const (
	NormalizerProportions = "Proportions"
	NormalizerSoftmax     = "Softmax"
)

// Normalizer maps an arbitrary real vector onto the probability simplex.
// The input is never modified.
type Normalizer interface {
	Normalize(weights []float64) []float64
	Name() string
}

// NewNormalizer returns the normalizer registered under name.
func NewNormalizer(name string) (Normalizer, error) {
	switch name {
	case NormalizerProportions:
		return Proportions{}, nil
	case NormalizerSoftmax:
		return Softmax{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNormalizer, name)
	}
}

// Proportions clips negatives to zero and divides by the sum. A vector with
// nothing positive becomes uniform.
type Proportions struct{}

func (Proportions) Name() string { return NormalizerProportions }

func (Proportions) Normalize(weights []float64) []float64 {
	out := make([]float64, len(weights))
	if len(out) == 0 {
		return out
	}
	for i, w := range weights {
		if w > 0 {
			out[i] = w
		}
	}

	// Scaling by the largest entry first keeps the sum finite for huge inputs.
	m := floats.Max(out)
	if m == 0 || math.IsNaN(m) {
		return uniform(len(out))
	}
	for i := range out {
		out[i] /= m
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// Softmax maps w to exp(w_i - max) / Σ exp(w_j - max).
type Softmax struct{}

func (Softmax) Name() string { return NormalizerSoftmax }

func (Softmax) Normalize(weights []float64) []float64 {
	out := make([]float64, len(weights))
	if len(out) == 0 {
		return out
	}
	m := floats.Max(weights)
	for i, w := range weights {
		out[i] = math.Exp(w - m)
	}
	sum := floats.Sum(out)
	if !(sum > 0) || math.IsInf(sum, 0) {
		return uniform(len(out))
	}
	floats.Scale(1/sum, out)
	return out
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
