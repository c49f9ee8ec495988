package pigment

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Blender is the pigment-blend primitive: it mixes b into a with fraction
// t in [0,1]. Implementations need not be commutative or associative.
type Blender interface {
	Blend(a, b colorful.Color, t float64) colorful.Color
}

// BlendFunc adapts a plain function to the Blender interface.
type BlendFunc func(a, b colorful.Color, t float64) colorful.Color

func (f BlendFunc) Blend(a, b colorful.Color, t float64) colorful.Color { return f(a, b, t) }

// DefaultMinReflectance keeps K/S finite for fully absorbing channels.
const DefaultMinReflectance = 1e-3

// KubelkaMunk blends per linear-RGB channel through the single-constant
// Kubelka–Munk model: each channel reflectance R is mapped to
// K/S = (1-R)²/(2R), the K/S values are interpolated linearly, and the
// result is mapped back with R = 1 + K/S - sqrt((K/S)² + 2·K/S).
type KubelkaMunk struct {
	MinReflectance float64
}

func (km KubelkaMunk) Blend(a, b colorful.Color, t float64) colorful.Color {
	t = math.Max(0, math.Min(1, t))
	minR := km.MinReflectance
	if minR <= 0 {
		minR = DefaultMinReflectance
	}

	ar, ag, ab := a.Clamped().LinearRgb()
	br, bg, bb := b.Clamped().LinearRgb()

	mix := func(x, y float64) float64 {
		ks := (1-t)*absorption(x, minR) + t*absorption(y, minR)
		return reflectance(ks)
	}
	return colorful.LinearRgb(mix(ar, br), mix(ag, bg), mix(ab, bb))
}

func absorption(r, minR float64) float64 {
	r = math.Max(minR, math.Min(1, r))
	return (1 - r) * (1 - r) / (2 * r)
}

func reflectance(ks float64) float64 {
	return 1 + ks - math.Sqrt(ks*ks+2*ks)
}
