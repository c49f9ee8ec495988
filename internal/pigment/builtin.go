package pigment

import "github.com/cwbudde/pigmentfit/internal/colorspace"

// DefaultPalette returns the built-in artist palette. Lab values are measured
// from physical swatches and do not always match the nominal hex.
func DefaultPalette() Palette {
	return Palette{
		{ID: 1, Title: "Yellow Ochre", Hex: "#CC7722", RGB: [3]uint8{203, 157, 6}, Lab: colorspace.Lab{L: 67.139, A: 8.734, B: 70.894}, Favorite: true},
		{ID: 2, Title: "Vermilion Red", Hex: "#FF0000", RGB: [3]uint8{227, 66, 52}, Lab: colorspace.Lab{L: 52.411, A: 61.319, B: 44.474}, Favorite: true},
		{ID: 3, Title: "Lemon Yellow", Hex: "#FFF44F", RGB: [3]uint8{255, 244, 79}, Lab: colorspace.Lab{L: 94.217, A: -7.812, B: 89.702}},
		{ID: 4, Title: "Ultramarine Blue", Hex: "#3F00FF", RGB: [3]uint8{18, 10, 143}, Lab: colorspace.Lab{L: 32.108, A: 55.441, B: -81.671}, Favorite: true},
		{ID: 5, Title: "Rouge Carmine Red", Hex: "#C41E3A", RGB: [3]uint8{155, 35, 33}, Lab: colorspace.Lab{L: 40.368, A: 54.982, B: 33.108}, Favorite: true},
		{ID: 6, Title: "Brown Ochre", Hex: "#8A4B16", RGB: [3]uint8{138, 75, 22}, Lab: colorspace.Lab{L: 45.739, A: 19.935, B: 46.822}},
		{ID: 7, Title: "Transparent Orange", Hex: "#FF7F00", RGB: [3]uint8{255, 127, 0}, Lab: colorspace.Lab{L: 70.709, A: 49.811, B: 79.531}},
		{ID: 8, Title: "Titanium White", Hex: "#FFFFFF", RGB: [3]uint8{255, 255, 255}, Lab: colorspace.Lab{L: 100.0, A: 0.005, B: -0.010}, Favorite: true},
		{ID: 9, Title: "Phthalo Blue", Hex: "#000f89", RGB: [3]uint8{0, 15, 137}, Lab: colorspace.Lab{L: 16.243, A: 44.354, B: -64.942}},
		{ID: 10, Title: "Black", Hex: "#000000", RGB: [3]uint8{0, 0, 0}, Lab: colorspace.Lab{L: 0, A: 0, B: 0}, Favorite: true},
		{ID: 11, Title: "Prussian Blue", Hex: "#003153", RGB: [3]uint8{0, 49, 83}, Lab: colorspace.Lab{L: 19.3131, A: -0.4149, B: -24.8864}},
	}
}

// similarTitles lists pigments in the built-in palette that should not be
// used together.
var similarTitles = [][2]string{
	{"Vermilion Red", "Rouge Carmine Red"},
	{"Phthalo Blue", "Prussian Blue"},
}

// DefaultSimilarityPairs returns the known near-duplicate pairs present in
// palette. Pairs whose pigments are missing are skipped.
func DefaultSimilarityPairs(palette Palette) [][2]int {
	var pairs [][2]int
	for _, titles := range similarTitles {
		i, j := palette.IndexOfTitle(titles[0]), palette.IndexOfTitle(titles[1])
		if i >= 0 && j >= 0 {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}
