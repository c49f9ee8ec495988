package pigment

import (
	"fmt"
	"math"
	"strings"
)

// DefaultSignificance is the weight a pigment needs to appear in a recipe.
const DefaultSignificance = 0.05

// Ingredient is one pigment of a recipe with its share in integer parts.
type Ingredient struct {
	Pigment Pigment `json:"pigment"`
	Weight  float64 `json:"weight"`
	Parts   int     `json:"parts"`
}

// Recipe expresses a weight vector as small integer ratios
// ("2 parts Yellow Ochre, 1 part Vermilion Red").
type Recipe struct {
	Ingredients []Ingredient `json:"ingredients"`
}

// NewRecipe keeps the weights above significance, expresses each relative to
// the smallest of them rounded to whole parts, and reduces the parts by their
// greatest common divisor.
func NewRecipe(weights []float64, palette Palette, significance float64) (Recipe, error) {
	if err := palette.CheckWeights(weights); err != nil {
		return Recipe{}, err
	}

	smallest := math.Inf(1)
	for _, w := range weights {
		if w > significance && w < smallest {
			smallest = w
		}
	}
	if math.IsInf(smallest, 1) {
		return Recipe{}, nil
	}

	var ingredients []Ingredient
	var parts []int
	for i, w := range weights {
		if w <= significance {
			continue
		}
		n := int(math.Round(w / smallest))
		if n < 1 {
			continue
		}
		ingredients = append(ingredients, Ingredient{Pigment: palette[i], Weight: w})
		parts = append(parts, n)
	}

	for i, n := range SimplifyRatio(parts) {
		ingredients[i].Parts = n
	}
	return Recipe{Ingredients: ingredients}, nil
}

// Empty reports whether no pigment was significant.
func (r Recipe) Empty() bool { return len(r.Ingredients) == 0 }

// Lines returns one "N parts Title" entry per ingredient.
func (r Recipe) Lines() []string {
	lines := make([]string, 0, len(r.Ingredients))
	for _, in := range r.Ingredients {
		unit := "parts"
		if in.Parts == 1 {
			unit = "part"
		}
		lines = append(lines, fmt.Sprintf("%d %s %s", in.Parts, unit, in.Pigment.Title))
	}
	return lines
}

func (r Recipe) String() string {
	if r.Empty() {
		return "No significant colors"
	}
	return strings.Join(r.Lines(), ", ")
}

// SimplifyRatio divides all parts by their greatest common divisor.
// [4 2 6] becomes [2 1 3].
func SimplifyRatio(parts []int) []int {
	g := 0
	for _, p := range parts {
		g = gcd(g, p)
	}
	if g <= 1 {
		return parts
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i] = p / g
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// FormatPercentages renders each weight as a percentage with one decimal.
func FormatPercentages(weights []float64) []string {
	out := make([]string, len(weights))
	for i, w := range weights {
		out[i] = fmt.Sprintf("%.1f%%", w*100)
	}
	return out
}
