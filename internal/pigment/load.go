package pigment

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
)

// File is the on-disk palette description.
//
//	pigments:
//	  - title: Yellow Ochre
//	    hex: "#CC7722"
//	    lab: {l: 67.139, a: 8.734, b: 70.894} # optional, derived from hex when absent
//	    favorite: true
//	similarityPairs: [[1, 4]]
type File struct {
	Pigments        []FileEntry `yaml:"pigments"`
	SimilarityPairs [][2]int    `yaml:"similarityPairs,omitempty"`
}

// FileEntry is one pigment in a palette file.
type FileEntry struct {
	ID       int             `yaml:"id,omitempty"`
	Title    string          `yaml:"title"`
	Hex      string          `yaml:"hex"`
	Lab      *colorspace.Lab `yaml:"lab,omitempty"`
	Favorite bool            `yaml:"favorite,omitempty"`
}

// LoadPalette reads a YAML palette file.
func LoadPalette(path string) (Palette, [][2]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read palette: %w", err)
	}
	return ParsePalette(data)
}

// ParsePalette decodes a YAML palette document. Unknown keys are rejected.
func ParsePalette(data []byte) (Palette, [][2]int, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse palette: %w", err)
	}

	palette := make(Palette, 0, len(f.Pigments))
	for i, e := range f.Pigments {
		id := e.ID
		if id == 0 {
			id = i + 1
		}
		p, err := NewPigment(id, e.Title, e.Hex)
		if err != nil {
			return nil, nil, err
		}
		if e.Lab != nil {
			p.Lab = *e.Lab
		}
		p.Favorite = e.Favorite
		palette = append(palette, p)
	}

	if err := palette.Validate(); err != nil {
		return nil, nil, err
	}
	for _, pair := range f.SimilarityPairs {
		if pair[0] < 0 || pair[1] < 0 || pair[0] >= len(palette) || pair[1] >= len(palette) {
			return nil, nil, fmt.Errorf("similarity pair %v out of range for %d pigments", pair, len(palette))
		}
	}
	return palette, f.SimilarityPairs, nil
}

// MarshalPalette encodes a palette and its similarity pairs as YAML.
func MarshalPalette(palette Palette, pairs [][2]int) ([]byte, error) {
	f := File{SimilarityPairs: pairs}
	for _, p := range palette {
		lab := p.Lab
		f.Pigments = append(f.Pigments, FileEntry{
			ID:       p.ID,
			Title:    p.Title,
			Hex:      p.Hex,
			Lab:      &lab,
			Favorite: p.Favorite,
		})
	}
	return yaml.Marshal(&f)
}
