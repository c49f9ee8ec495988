package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

func TestParseTrainingItem(t *testing.T) {
	item, err := ParseTrainingItem("53.24;80.09;67.2,0.25;0;0.75")
	require.NoError(t, err)
	assert.Equal(t, colorspace.Lab{L: 53.24, A: 80.09, B: 67.2}, item.Target)
	assert.Equal(t, []float64{0.25, 0, 0.75}, item.Weights)

	for _, bad := range []string{"", "53;80;67", "53;80,0.5", "a;b;c,0.5", "1;2;3,x"} {
		_, err := ParseTrainingItem(bad)
		assert.True(t, errors.Is(err, ErrInvalidRecord), "input %q", bad)
	}
}

func TestTrainingItemString(t *testing.T) {
	item := TrainingItem{
		Target:  colorspace.Lab{L: 50.123456, A: -1.5, B: 2},
		Weights: []float64{0.333333, 0.666667, 0},
	}
	assert.Equal(t, "50.123456;-1.5;2,0.33;0.67;0", item.String())
}

func TestTrainingRoundTrip(t *testing.T) {
	items := []TrainingItem{
		{Target: colorspace.Lab{L: 10, A: 20, B: -30}, Weights: []float64{0.5, 0.5}},
		{Target: colorspace.Lab{L: 99.5, A: 0.25, B: 0}, Weights: []float64{1, 0}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTraining(&buf, items))
	assert.True(t, strings.HasPrefix(buf.String(), "target_lab,target_weights\n"))

	got, err := ReadTraining(&buf)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestReadTrainingSkipsBlankLines(t *testing.T) {
	src := "target_lab,target_weights\n1;2;3,0.5;0.5\n\n4;5;6,1;0\n"
	got, err := ReadTraining(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadTrainingReportsLine(t *testing.T) {
	src := "target_lab,target_weights\n1;2;3,0.5;0.5\n1;2,0.5\n"
	_, err := ReadTraining(strings.NewReader(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadTraining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte("target_lab,target_weights\n1;2;3,1\n"), 0o644))

	items, err := LoadTraining(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []float64{1}, items[0].Weights)

	_, err = LoadTraining(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {1, 2}}, Combinations(3, 2))
	assert.Len(t, Combinations(11, 3), 165)
}

func TestWeightGrid(t *testing.T) {
	grid := WeightGrid(2, 0.5)
	assert.Equal(t, [][]float64{{0, 1}, {0.5, 0.5}, {1, 0}}, grid)

	grid = WeightGrid(3, 0.2)
	assert.Len(t, grid, 21)
	for _, w := range grid {
		assert.InDelta(t, 1.0, w[0]+w[1]+w[2], 1e-9)
		for _, x := range w {
			assert.GreaterOrEqual(t, x, 0.0)
		}
	}
}

func collect(items *[]TrainingItem) func(TrainingItem) error {
	return func(it TrainingItem) error {
		*items = append(*items, it)
		return nil
	}
}

func TestCreatorPairwise(t *testing.T) {
	palette := pigment.DefaultPalette()[:3]
	c := NewCreator(palette, nil)

	var items []TrainingItem
	n, err := c.Pairwise(collect(&items))
	require.NoError(t, err)
	assert.Equal(t, 3*2*99, n)
	require.Len(t, items, n)

	first := items[0]
	assert.Equal(t, []float64{0.01, 0.99, 0}, first.Weights)
	mixed, err := c.Mixer.Mix(first.Weights, palette)
	require.NoError(t, err)
	assert.Equal(t, mixed, first.Target)
}

func TestCreatorKColor(t *testing.T) {
	palette := pigment.DefaultPalette()[:4]
	c := NewCreator(palette, pigment.LabBlendMixer{})

	var items []TrainingItem
	n, err := c.KColor(2, 0.25, collect(&items))
	require.NoError(t, err)
	assert.Equal(t, 6*5, n)
	for _, it := range items {
		assert.Len(t, it.Weights, 4)
	}

	_, err = c.KColor(5, 0.25, collect(&items))
	assert.Error(t, err)
	_, err = c.KColor(2, 0, collect(&items))
	assert.Error(t, err)
}

func TestCreatorRandom3(t *testing.T) {
	palette := pigment.DefaultPalette()
	c := NewCreator(palette, nil)

	var a, b []TrainingItem
	n, err := c.Random3(20, 7, collect(&a))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	_, err = c.Random3(20, 7, collect(&b))
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must give the same items")

	for _, it := range a {
		active := 0
		sum := 0.0
		for _, w := range it.Weights {
			if w > 0 {
				active++
			}
			sum += w
		}
		assert.Equal(t, 3, active)
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	_, err = NewCreator(palette[:2], nil).Random3(1, 1, collect(&a))
	assert.Error(t, err)
}

func TestCreatorStopsOnEmitError(t *testing.T) {
	c := NewCreator(pigment.DefaultPalette()[:3], nil)
	stop := errors.New("disk full")
	calls := 0
	n, err := c.Pairwise(func(TrainingItem) error {
		calls++
		if calls == 5 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 4, n)
}

func sampleResult() Result {
	return Result{
		TargetLab:      colorspace.Lab{L: 50, A: 10, B: -10},
		ResultLab:      colorspace.Lab{L: 51, A: 10, B: -10},
		InitialLab:     colorspace.Lab{L: 60, A: 0, B: 0},
		TargetWeights:  []float64{0.5, 0.5},
		ResultWeights:  []float64{0.4, 0.6},
		InitialWeights: []float64{0.5, 0.5},
		Optimizer:      "CMA-ES",
		Evaluations:    420,
		MixingError:    "DeltaE2000",
		Penalties:      []string{"Sparsity", "L2"},
		Normalizer:     "Proportions",
		InitialGuess:   "Uniform",
		Runtime:        1500 * time.Millisecond,
		Converged:      true,
		Params: opt.Params{
			{Key: "sigma", Value: 0.25},
			{Key: "maxEvaluations", Value: 500},
		},
	}
}

func TestResultWriterHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	rw, err := NewResultWriter(&buf, []string{"sigma", "maxEvaluations"})
	require.NoError(t, err)
	require.NoError(t, rw.Write(sampleResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(ResultHeader, ",")+",sigma,maxEvaluations", lines[0])
	assert.Equal(t,
		"50;10;-10,51;10;-10,60;0;0,0.5;0.5,0.4;0.6,0.5;0.5,CMA-ES,420,DeltaE2000,Sparsity;L2,Proportions,Uniform,1500,true,0.25,500",
		lines[1])
}

func TestResultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rw, err := NewResultWriter(&buf, []string{"sigma", "maxEvaluations"})
	require.NoError(t, err)
	want := sampleResult()
	require.NoError(t, rw.Write(want))
	require.NoError(t, rw.Write(want))

	got, err := ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want, got[0])
}

func TestReadResultsRequiresLabColumns(t *testing.T) {
	_, err := ReadResults(strings.NewReader("optimizer,numberOfEvaluations\nCMA-ES,1\n"))
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ReadResults(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSummarize(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	b.ResultLab = b.TargetLab

	s, err := Summarize([]Result{a, b}, colorspace.DeltaE76{})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, "CMA-ES", s.Optimizer)
	assert.InDelta(t, 0.5, s.MeanError, 1e-12)
	assert.Equal(t, 0.25, s.Params.Float("sigma", 0))

	_, err = Summarize(nil, colorspace.DeltaE76{})
	assert.Error(t, err)
}
