package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/pigmentfit/internal/pigment"
)

// Creator generates training items by mixing known weight vectors.
type Creator struct {
	Palette pigment.Palette
	Mixer   pigment.Mixer
}

// NewCreator returns a creator over palette. A nil mixer means the pigment
// mixer.
func NewCreator(palette pigment.Palette, mixer pigment.Mixer) *Creator {
	if mixer == nil {
		mixer = pigment.NewPigmentMixer()
	}
	return &Creator{Palette: palette, Mixer: mixer}
}

func (c *Creator) item(weights []float64) (TrainingItem, error) {
	lab, err := c.Mixer.Mix(weights, c.Palette)
	if err != nil {
		return TrainingItem{}, err
	}
	return TrainingItem{Target: lab, Weights: weights}, nil
}

// Pairwise mixes every ordered pair of distinct pigments at 1%..99%.
func (c *Creator) Pairwise(emit func(TrainingItem) error) (int, error) {
	n := c.Palette.Len()
	count := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			for k := 1; k <= 99; k++ {
				w := make([]float64, n)
				w[i] = float64(k) / 100
				w[j] = 1 - float64(k)/100
				item, err := c.item(w)
				if err != nil {
					return count, err
				}
				if err := emit(item); err != nil {
					return count, err
				}
				count++
			}
		}
	}
	return count, nil
}

// KColor mixes every combination of k pigments with every weight split on a
// grid of the given step whose entries sum to one.
func (c *Creator) KColor(k int, step float64, emit func(TrainingItem) error) (int, error) {
	n := c.Palette.Len()
	if k < 1 || k > n {
		return 0, fmt.Errorf("k must be in [1,%d], got %d", n, k)
	}
	if !(step > 0) || step > 1 {
		return 0, fmt.Errorf("step must be in (0,1], got %g", step)
	}

	splits := WeightGrid(k, step)
	count := 0
	for _, combo := range Combinations(n, k) {
		for _, split := range splits {
			w := make([]float64, n)
			for i, idx := range combo {
				w[idx] = split[i]
			}
			item, err := c.item(w)
			if err != nil {
				return count, err
			}
			if err := emit(item); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// Random3 produces max items, each mixing three distinct pigments drawn at
// random with random weights summing to one.
func (c *Creator) Random3(max int, seed int64, emit func(TrainingItem) error) (int, error) {
	n := c.Palette.Len()
	if n < 3 {
		return 0, fmt.Errorf("random 3-colour mixes need at least 3 pigments, palette has %d", n)
	}
	rng := rand.New(rand.NewSource(seed))
	count := 0
	for count < max {
		idx := rng.Perm(n)[:3]
		raw := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		sum := raw[0] + raw[1] + raw[2]
		if sum == 0 {
			continue
		}
		w := make([]float64, n)
		for i, p := range idx {
			w[p] = raw[i] / sum
		}
		item, err := c.item(w)
		if err != nil {
			return count, err
		}
		if err := emit(item); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Combinations lists the k-element index subsets of 0..n-1 in
// lexicographic order.
func Combinations(n, k int) [][]int {
	var out [][]int
	cur := make([]int, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(cur) == k {
			out = append(out, append([]int(nil), cur...))
			return
		}
		for i := start; i < n; i++ {
			cur = append(cur, i)
			rec(i + 1)
			cur = cur[:len(cur)-1]
		}
	}
	rec(0)
	return out
}

// WeightGrid lists every k-vector with entries on the step grid summing to
// one. The last entry takes the remainder. Values are rounded to four
// decimals to keep the grid exact.
func WeightGrid(k int, step float64) [][]float64 {
	var out [][]float64
	cur := make([]float64, k)
	var rec func(index int, remaining float64)
	rec = func(index int, remaining float64) {
		if index == k-1 {
			cur[index] = math.Max(0, round4(remaining))
			out = append(out, append([]float64(nil), cur...))
			return
		}
		for w := 0.0; w <= remaining+1e-9; w = round4(w + step) {
			cur[index] = w
			rec(index+1, round4(remaining-w))
		}
	}
	rec(0, 1)
	return out
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
