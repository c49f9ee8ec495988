package pigment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
)

// ErrUnknownMixer is returned by NewMixer for unrecognized mixer names.
var ErrUnknownMixer = errors.New("unknown colour mixer")

// Mixer names accepted by NewMixer.
const (
	MixerPigment  = "Pigment"
	MixerLabBlend = "LabBlend"
)

// Mixer turns normalized weights over a palette into one Lab colour.
// Implementations are pure: the same input always gives the same colour.
type Mixer interface {
	Mix(weights []float64, palette Palette) (colorspace.Lab, error)
	Name() string
}

// NewMixer returns the mixer registered under name with its default settings.
func NewMixer(name string) (Mixer, error) {
	switch name {
	case MixerPigment:
		return NewPigmentMixer(), nil
	case MixerLabBlend:
		return LabBlendMixer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMixer, name)
	}
}

// DefaultPigmentThreshold is the weight at or below which a pigment is left
// out of a PigmentMixer blend.
const DefaultPigmentThreshold = 0.1

// PigmentMixer blends the contributing pigments pairwise, heaviest first:
// the running mixture starts as the heaviest pigment and each following
// pigment is blended in with fraction w/(total+w). The order matters because
// the blend primitive is not associative.
type PigmentMixer struct {
	Blender   Blender
	Threshold float64
}

// NewPigmentMixer returns a Kubelka–Munk mixer with the default threshold.
func NewPigmentMixer() PigmentMixer {
	return PigmentMixer{Blender: KubelkaMunk{}, Threshold: DefaultPigmentThreshold}
}

func (PigmentMixer) Name() string { return MixerPigment }

type contribution struct {
	lab    colorspace.Lab
	weight float64
}

func (m PigmentMixer) Mix(weights []float64, palette Palette) (colorspace.Lab, error) {
	if err := palette.CheckWeights(weights); err != nil {
		return colorspace.Lab{}, err
	}

	active := make([]contribution, 0, len(weights))
	for i, w := range weights {
		if w > m.Threshold {
			active = append(active, contribution{lab: palette[i].Lab, weight: w})
		}
	}

	switch len(active) {
	case 0:
		return colorspace.Gray(), nil
	case 1:
		return active[0].lab, nil
	}

	// Stable so equal weights keep palette order.
	sort.SliceStable(active, func(i, j int) bool { return active[i].weight > active[j].weight })

	blender := m.Blender
	if blender == nil {
		blender = KubelkaMunk{}
	}

	mixed := active[0].lab.Colorful()
	total := active[0].weight
	for _, next := range active[1:] {
		t := next.weight / (total + next.weight)
		mixed = blender.Blend(mixed, next.lab.Colorful(), t)
		total += next.weight
	}
	return colorspace.FromColorful(mixed), nil
}

// LabBlendMixer is the weighted average of the contributing pigments in Lab
// space. It ignores the non-linearity of real pigments and serves as a
// reference.
type LabBlendMixer struct{}

const labBlendThreshold = 1e-10

func (LabBlendMixer) Name() string { return MixerLabBlend }

func (LabBlendMixer) Mix(weights []float64, palette Palette) (colorspace.Lab, error) {
	if err := palette.CheckWeights(weights); err != nil {
		return colorspace.Lab{}, err
	}

	var sum colorspace.Lab
	var total float64
	for i, w := range weights {
		if w <= labBlendThreshold {
			continue
		}
		lab := palette[i].Lab
		sum.L += lab.L * w
		sum.A += lab.A * w
		sum.B += lab.B * w
		total += w
	}
	if total == 0 {
		return colorspace.Gray(), nil
	}
	return colorspace.Lab{L: sum.L / total, A: sum.A / total, B: sum.B / total}, nil
}
