package colorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHex(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want Lab
	}{
		{"white", "#ffffff", Lab{100, 0, 0}},
		{"black", "#000000", Lab{0, 0, 0}},
		{"no marker", "FFFFFF", Lab{100, 0, 0}},
		{"alpha prefix ignored", "#80000000", Lab{0, 0, 0}},
		{"surrounding space", "  #ffffff ", Lab{100, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromHex(tt.hex)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.L, got.L, 0.02)
			assert.InDelta(t, tt.want.A, got.A, 0.02)
			assert.InDelta(t, tt.want.B, got.B, 0.02)
		})
	}
}

func TestFromHexPaletteColours(t *testing.T) {
	// Reference Lab values for sRGB primaries under D65.
	red, err := FromHex("#FF0000")
	require.NoError(t, err)
	assert.InDelta(t, 53.24, red.L, 0.05)
	assert.InDelta(t, 80.09, red.A, 0.05)
	assert.InDelta(t, 67.20, red.B, 0.05)

	blue, err := FromHex("#0000ff")
	require.NoError(t, err)
	assert.InDelta(t, 32.30, blue.L, 0.05)
	assert.InDelta(t, 79.19, blue.A, 0.05)
	assert.InDelta(t, -107.86, blue.B, 0.05)
}

func TestParseHexErrors(t *testing.T) {
	for _, bad := range []string{"", "#", "#fff", "#fffffff", "#fffffffff", "#gggggg"} {
		_, _, _, err := ParseHex(bad)
		assert.ErrorIs(t, err, ErrInvalidHex, "input %q", bad)

		_, err = FromHex(bad)
		assert.ErrorIs(t, err, ErrInvalidHex, "input %q", bad)
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, hex := range []string{"#cc7722", "#ff0000", "#fff44f", "#3f00ff", "#000f89", "#003153", "#ffffff", "#000000"} {
		c, err := FromHex(hex)
		require.NoError(t, err)
		assert.Equal(t, hex, c.Hex())

		q := c.Quantize()
		assert.InDelta(t, c.L, q.L, 1e-9)
		assert.InDelta(t, c.A, q.A, 1e-9)
		assert.InDelta(t, c.B, q.B, 1e-9)
	}
}

func TestHexClampsOutOfGamut(t *testing.T) {
	// Far outside sRGB; conversion must still produce a valid hex string.
	c := Lab{L: 50, A: 120, B: -120}
	hex := c.Hex()
	assert.Len(t, hex, 7)

	_, err := FromHex(hex)
	assert.NoError(t, err)
}

func TestGray(t *testing.T) {
	g := Gray()
	r, gg, b := g.RGB()
	assert.Equal(t, [3]uint8{128, 128, 128}, [3]uint8{r, gg, b})
	assert.InDelta(t, 53.585, g.L, 1e-3)
	assert.InDelta(t, 0, g.A, 0.02)
	assert.InDelta(t, 0, g.B, 0.02)
}
