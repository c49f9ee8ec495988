// Package goal defines the scalar objective every optimizer minimizes:
// normalize the weights, mix them over the palette, measure the distance to
// the target and add the penalties.
package goal

import (
	"math"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

// Options selects the collaborators of a Goal. Nil fields fall back to
// CIEDE2000, the pigment mixer and the proportions normalizer.
type Options struct {
	Metric     colorspace.Metric
	Mixer      pigment.Mixer
	Normalizer Normalizer
	Penalties  []Penalty
}

// Goal is the objective for one target colour. It is immutable and safe to
// evaluate from several goroutines.
type Goal struct {
	palette    pigment.Palette
	target     colorspace.Lab
	metric     colorspace.Metric
	mixer      pigment.Mixer
	normalizer Normalizer
	penalties  []Penalty
}

// New assembles a goal for target over palette.
func New(palette pigment.Palette, target colorspace.Lab, opts Options) (*Goal, error) {
	if palette.Len() == 0 {
		return nil, pigment.ErrEmptyPalette
	}
	g := &Goal{
		palette:    palette,
		target:     target,
		metric:     opts.Metric,
		mixer:      opts.Mixer,
		normalizer: opts.Normalizer,
		penalties:  append([]Penalty(nil), opts.Penalties...),
	}
	if g.metric == nil {
		g.metric = colorspace.NewDeltaE2000()
	}
	if g.mixer == nil {
		g.mixer = pigment.NewPigmentMixer()
	}
	if g.normalizer == nil {
		g.normalizer = Proportions{}
	}
	return g, nil
}

// Evaluate returns mixing error plus penalties for weights. It fails only
// when weights is not aligned with the palette.
func (g *Goal) Evaluate(weights []float64) (float64, error) {
	if err := g.palette.CheckWeights(weights); err != nil {
		return 0, err
	}
	normalized := g.normalizer.Normalize(weights)
	mixed, err := g.mixer.Mix(normalized, g.palette)
	if err != nil {
		return 0, err
	}

	total := g.metric.Distance(mixed, g.target)
	for _, p := range g.penalties {
		total += p.Penalty(normalized)
	}
	return total, nil
}

// Objective adapts Evaluate to the plain function signature minimizers
// consume. Misaligned vectors evaluate to +Inf.
func (g *Goal) Objective() func([]float64) float64 {
	return func(w []float64) float64 {
		v, err := g.Evaluate(w)
		if err != nil {
			return math.Inf(1)
		}
		return v
	}
}

// Normalize applies the goal's normalizer.
func (g *Goal) Normalize(weights []float64) []float64 {
	return g.normalizer.Normalize(weights)
}

// Mix normalizes weights and mixes them with the goal's mixer.
func (g *Goal) Mix(weights []float64) (colorspace.Lab, error) {
	if err := g.palette.CheckWeights(weights); err != nil {
		return colorspace.Lab{}, err
	}
	return g.mixer.Mix(g.normalizer.Normalize(weights), g.palette)
}

// Dim is the length of every weight vector the goal accepts.
func (g *Goal) Dim() int { return g.palette.Len() }

func (g *Goal) Palette() pigment.Palette  { return g.palette }
func (g *Goal) Target() colorspace.Lab    { return g.target }
func (g *Goal) Metric() colorspace.Metric { return g.metric }
func (g *Goal) MixerName() string         { return g.mixer.Name() }
func (g *Goal) NormalizerName() string    { return g.normalizer.Name() }
func (g *Goal) PenaltyNames() []string    { return PenaltyNames(g.penalties) }
