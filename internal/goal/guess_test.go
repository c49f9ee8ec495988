package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

func TestUniformGuess(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, Uniform{}.Guess(4))
}

func TestRandomGuessSeeded(t *testing.T) {
	a := NewRandom(7).Guess(5)
	b := NewRandom(7).Guess(5)
	c := NewRandom(8).Guess(5)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestSimilarityGuess(t *testing.T) {
	palette := pigment.DefaultPalette()
	target := colorspace.Lab{L: 18, A: 1, B: -25} // close to Prussian Blue

	g, err := NewInitialGuess(GuessSimilarity, palette, target, 0)
	require.NoError(t, err)
	w := g.Guess(palette.Len())

	assert.Equal(t, 0.5, w[10])
	for i, v := range w {
		if i != 10 {
			assert.InDelta(t, 0.05, v, 1e-12)
		}
	}
}

func TestSimilarityGuessSinglePigment(t *testing.T) {
	palette := pigment.DefaultPalette()[:1]
	assert.Equal(t, []float64{1}, Closest{Palette: palette, Target: colorspace.Gray()}.Guess(1))
}

func TestNewInitialGuess(t *testing.T) {
	for _, name := range []string{GuessUniform, GuessRandom, GuessSimilarity} {
		g, err := NewInitialGuess(name, pigment.DefaultPalette(), colorspace.Gray(), 1)
		require.NoError(t, err)
		assert.Equal(t, name, g.Name())
	}

	_, err := NewInitialGuess("Zero", nil, colorspace.Gray(), 1)
	assert.ErrorIs(t, err, ErrUnknownInitialGuess)
}
