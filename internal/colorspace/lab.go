// Package colorspace converts between sRGB and CIE L*a*b* (D65) and measures
// perceptual distance between Lab colours.
package colorspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidHex is returned when a hex colour string cannot be parsed.
var ErrInvalidHex = errors.New("invalid hex colour")

// Lab is a CIE L*a*b* colour relative to the D65 white point.
// L is in [0,100]; a and b are unbounded but typically within [-128,128].
type Lab struct {
	L float64 `json:"l" yaml:"l"`
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// go-colorful keeps Lab in a 1/100 scale.
const colorfulLabScale = 100.0

// Gray is the neutral sentinel returned by mixers that have nothing to mix.
func Gray() Lab {
	return FromRGB(128, 128, 128)
}

// FromRGB converts 8-bit sRGB components to Lab.
func FromRGB(r, g, b uint8) Lab {
	c := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	return FromColorful(c)
}

// FromColorful converts a go-colorful sRGB colour to Lab.
func FromColorful(c colorful.Color) Lab {
	l, a, b := c.Lab()
	return Lab{L: l * colorfulLabScale, A: a * colorfulLabScale, B: b * colorfulLabScale}
}

// FromHex parses "#RRGGBB", "RRGGBB", "#AARRGGBB" or "AARRGGBB" and converts
// it to Lab. The alpha channel is ignored.
func FromHex(s string) (Lab, error) {
	r, g, b, err := ParseHex(s)
	if err != nil {
		return Lab{}, err
	}
	return FromRGB(r, g, b), nil
}

// ParseHex parses a hex colour string into 8-bit sRGB components.
func ParseHex(s string) (r, g, b uint8, err error) {
	clean := strings.TrimPrefix(strings.TrimSpace(s), "#")

	var offset int
	switch len(clean) {
	case 6:
		offset = 0
	case 8:
		offset = 2 // AARRGGBB
	default:
		return 0, 0, 0, fmt.Errorf("%w: %q must have 6 or 8 digits after the '#'", ErrInvalidHex, s)
	}

	channels := [3]uint8{}
	for i := range channels {
		start := offset + 2*i
		v, perr := strconv.ParseUint(clean[start:start+2], 16, 8)
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidHex, s, perr)
		}
		channels[i] = uint8(v)
	}
	return channels[0], channels[1], channels[2], nil
}

// Colorful converts the colour to go-colorful's sRGB representation. The
// result may lie outside the sRGB gamut; call Clamped before quantizing.
func (c Lab) Colorful() colorful.Color {
	return colorful.Lab(c.L/colorfulLabScale, c.A/colorfulLabScale, c.B/colorfulLabScale)
}

// RGB converts the colour to 8-bit sRGB, clamping out-of-gamut values.
func (c Lab) RGB() (r, g, b uint8) {
	return c.Colorful().Clamped().RGB255()
}

// Hex formats the colour as "#rrggbb", clamping out-of-gamut values.
func (c Lab) Hex() string {
	return c.Colorful().Clamped().Hex()
}

// Quantize round-trips the colour through 8-bit sRGB.
func (c Lab) Quantize() Lab {
	return FromRGB(c.RGB())
}

func (c Lab) String() string {
	return fmt.Sprintf("Lab(%.3f, %.3f, %.3f)", c.L, c.A, c.B)
}
