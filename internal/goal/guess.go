package goal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

// ErrUnknownInitialGuess is returned by NewInitialGuess for unrecognized names.
var ErrUnknownInitialGuess = errors.New("unknown initial guess generator")

// Initial guess generator names accepted by NewInitialGuess.
const (
	GuessUniform    = "Uniform"
	GuessRandom     = "Random"
	GuessSimilarity = "Similarity"
)

// InitialGuess produces the starting weight vector for an optimizer run.
type InitialGuess interface {
	Guess(dim int) []float64
	Name() string
}

// NewInitialGuess returns the generator registered under name. Similarity
// needs the palette and target; Random is seeded with seed.
func NewInitialGuess(name string, palette pigment.Palette, target colorspace.Lab, seed int64) (InitialGuess, error) {
	switch name {
	case GuessUniform:
		return Uniform{}, nil
	case GuessRandom:
		return NewRandom(seed), nil
	case GuessSimilarity:
		return Closest{Palette: palette, Target: target}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInitialGuess, name)
	}
}

// Uniform gives every pigment 1/dim.
type Uniform struct{}

func (Uniform) Name() string { return GuessUniform }

func (Uniform) Guess(dim int) []float64 { return uniform(dim) }

// Random draws each weight uniformly from [0,1) and normalizes the vector.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a Random generator with its own seeded source.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (*Random) Name() string { return GuessRandom }

func (r *Random) Guess(dim int) []float64 {
	w := make([]float64, dim)
	var sum float64
	for i := range w {
		w[i] = r.rng.Float64()
		sum += w[i]
	}
	if sum == 0 {
		return uniform(dim)
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Closest gives half the mass to the palette pigment nearest to Target
// (CIEDE2000) and shares the other half equally among the rest.
type Closest struct {
	Palette pigment.Palette
	Target  colorspace.Lab
}

func (Closest) Name() string { return GuessSimilarity }

func (c Closest) Guess(dim int) []float64 {
	if dim == 1 {
		return []float64{1}
	}
	nearest := c.nearest()
	if nearest < 0 || nearest >= dim {
		return uniform(dim)
	}

	const share = 0.5
	rest := (1 - share) / float64(dim-1)
	w := make([]float64, dim)
	for i := range w {
		w[i] = rest
	}
	w[nearest] = share
	return w
}

func (c Closest) nearest() int {
	metric := colorspace.NewDeltaE2000()
	best, bestDist := -1, math.Inf(1)
	for i, p := range c.Palette {
		if d := metric.Distance(p.Lab, c.Target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
