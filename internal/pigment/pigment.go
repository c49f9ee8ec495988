// Package pigment holds the immutable palette facts and the mixers that turn
// a weight vector over a palette into one colour.
package pigment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
)

var (
	// ErrSizeMismatch is returned when a weight vector and a palette differ in length.
	ErrSizeMismatch = errors.New("weights size does not match palette size")

	// ErrEmptyPalette is returned when a palette with no pigments is loaded.
	ErrEmptyPalette = errors.New("palette has no pigments")
)

// Pigment is a named palette colour. Pigments are created once when the
// palette is loaded and never mutated. Two pigments are the same pigment
// when their hex strings match, regardless of ID.
type Pigment struct {
	ID       int            `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Hex      string         `json:"hex" yaml:"hex"`
	RGB      [3]uint8       `json:"rgb" yaml:"-"`
	Lab      colorspace.Lab `json:"lab" yaml:"lab"`
	Favorite bool           `json:"favorite,omitempty" yaml:"favorite,omitempty"`
}

// NewPigment builds a pigment whose Lab coordinates are derived from hex.
func NewPigment(id int, title, hex string) (Pigment, error) {
	r, g, b, err := colorspace.ParseHex(hex)
	if err != nil {
		return Pigment{}, fmt.Errorf("pigment %q: %w", title, err)
	}
	return Pigment{
		ID:    id,
		Title: title,
		Hex:   hex,
		RGB:   [3]uint8{r, g, b},
		Lab:   colorspace.FromRGB(r, g, b),
	}, nil
}

// SameAs reports whether p and other denote the same pigment.
func (p Pigment) SameAs(other Pigment) bool {
	return normalizeHex(p.Hex) == normalizeHex(other.Hex)
}

func (p Pigment) String() string {
	return fmt.Sprintf("%s (%s)", p.Title, p.Hex)
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// Palette is an ordered set of pigments. Its order defines the index
// alignment of every weight vector; reordering a palette invalidates weight
// vectors computed against it.
type Palette []Pigment

// Len returns the number of pigments.
func (p Palette) Len() int { return len(p) }

// Validate checks that the palette is non-empty and that no pigment appears twice.
func (p Palette) Validate() error {
	if len(p) == 0 {
		return ErrEmptyPalette
	}
	seen := make(map[string]int, len(p))
	for i, pig := range p {
		if _, _, _, err := colorspace.ParseHex(pig.Hex); err != nil {
			return fmt.Errorf("pigment %d (%s): %w", i, pig.Title, err)
		}
		key := normalizeHex(pig.Hex)
		if j, dup := seen[key]; dup {
			return fmt.Errorf("pigment %d (%s) duplicates pigment %d (%s)", i, pig.Title, j, p[j].Title)
		}
		seen[key] = i
	}
	return nil
}

// CheckWeights returns ErrSizeMismatch if weights is not aligned with the palette.
func (p Palette) CheckWeights(weights []float64) error {
	if len(weights) != len(p) {
		return fmt.Errorf("%w: %d weights for %d pigments", ErrSizeMismatch, len(weights), len(p))
	}
	return nil
}

// Labs returns the Lab coordinates in palette order.
func (p Palette) Labs() []colorspace.Lab {
	labs := make([]colorspace.Lab, len(p))
	for i, pig := range p {
		labs[i] = pig.Lab
	}
	return labs
}

// IndexOfHex returns the index of the pigment with the given hex, or -1.
func (p Palette) IndexOfHex(hex string) int {
	key := normalizeHex(hex)
	for i, pig := range p {
		if normalizeHex(pig.Hex) == key {
			return i
		}
	}
	return -1
}

// IndexOfTitle returns the index of the pigment with the given title
// (case-insensitive), or -1.
func (p Palette) IndexOfTitle(title string) int {
	for i, pig := range p {
		if strings.EqualFold(pig.Title, title) {
			return i
		}
	}
	return -1
}

// Favorites returns the favourite pigments, preserving order.
func (p Palette) Favorites() Palette {
	var out Palette
	for _, pig := range p {
		if pig.Favorite {
			out = append(out, pig)
		}
	}
	return out
}

// SimilarPairs returns every index pair (i < j) whose CIEDE2000 distance is
// below maxDeltaE.
func (p Palette) SimilarPairs(maxDeltaE float64) [][2]int {
	metric := colorspace.NewDeltaE2000()
	var pairs [][2]int
	for i := range p {
		for j := i + 1; j < len(p); j++ {
			if metric.Distance(p[i].Lab, p[j].Lab) < maxDeltaE {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}
