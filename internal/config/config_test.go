package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/goal"
	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, colorspace.MetricDeltaE2000, cfg.Goal.Metric)
	assert.Equal(t, opt.AlgorithmCMAES, cfg.Strategy.Name)
	require.NotNil(t, cfg.Goal.Penalties.Sparsity)
	assert.Equal(t, goal.NewSparsity(), *cfg.Goal.Penalties.Sparsity)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
goal:
  metric: DeltaE76
  normalizer: Softmax
strategy:
  name: Nelder-Mead
  params:
    stepSize: 0.2
    maxEvaluations: 500
hyper:
  backend: Simplex
  samples: 5
`))
	require.NoError(t, err)

	assert.Equal(t, colorspace.MetricDeltaE76, cfg.Goal.Metric)
	assert.Equal(t, goal.NormalizerSoftmax, cfg.Goal.Normalizer)
	assert.Equal(t, pigment.MixerPigment, cfg.Goal.Mixer, "untouched keys keep their default")
	assert.Equal(t, []string{"stepSize", "maxEvaluations"}, cfg.Strategy.Params.Keys())
	assert.Equal(t, 500, cfg.Strategy.Params.Int("maxEvaluations", 0))
	assert.Equal(t, hyper.BackendSimplex, cfg.Hyper.Backend)
	assert.Equal(t, hyper.DefaultMaxEvaluations, cfg.Hyper.MaxEvaluations)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("goal:\n  metrics: DeltaE76\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("goal:\n  penalties:\n    entropy: {}\n"))
	assert.ErrorContains(t, err, `unknown penalty "entropy"`)
}

func TestValidateNamesTheKey(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
		want error
	}{
		{"metric", "goal: {metric: DeltaE94}", "goal.metric", colorspace.ErrUnknownMetric},
		{"normalizer", "goal: {normalizer: Sigmoid}", "goal.normalizer", goal.ErrUnknownNormalizer},
		{"mixer", "goal: {mixer: Spectral}", "goal.mixer", pigment.ErrUnknownMixer},
		{"guess", "goal: {initialGuess: Closest}", "goal.initialGuess", goal.ErrUnknownInitialGuess},
		{"negative penalty", "goal: {penalties: {l2: {lambda: -1}}}", "goal.penalties.l2.lambda", opt.ErrInvalidConfig},
		{"negatives factor", "goal: {penalties: {negatives: {factor: -0.5}}}", "goal.penalties.negatives.factor", opt.ErrInvalidConfig},
		{"strategy", "strategy: {name: Powell}", "strategy", opt.ErrUnknownStrategy},
		{"strategy params", "strategy: {name: Mayfly, params: {population: 5}}", "strategy", opt.ErrInvalidConfig},
		{"backend", "hyper: {backend: Annealing}", "hyper.backend", hyper.ErrUnknownBackend},
		{"samples", "hyper: {samples: 0}", "hyper.samples", opt.ErrInvalidConfig},
		{"parameter", "hyper: {parameters: [{name: sigma, initial: 2, sigma: 0.1, lower: 0, upper: 1}]}", "hyper.parameters[0]", opt.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, tt.key+":")
		})
	}
}

func TestPartialPenaltiesStartFromDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
goal:
  penalties:
    sparsity: {threshold: 0.05}
    similarity: {autoPairsBelow: 5}
    l1: {}
`))
	require.NoError(t, err)
	p := cfg.Goal.Penalties

	require.NotNil(t, p.Sparsity)
	assert.Equal(t, 0.05, p.Sparsity.Threshold)
	assert.Equal(t, 1.0, p.Sparsity.PerColor)

	require.NotNil(t, p.Similarity)
	assert.Equal(t, goal.NewSimilarity(nil).Threshold, p.Similarity.Threshold)
	assert.Equal(t, 1.0, p.Similarity.PerPair)
	assert.Equal(t, 5.0, p.Similarity.AutoPairsBelow)

	require.NotNil(t, p.L1)
	assert.Equal(t, goal.DefaultLambda, p.L1.Lambda)
	assert.Nil(t, p.L2)
}

func TestNegativesPenaltyIsWired(t *testing.T) {
	cfg, err := Parse([]byte("goal:\n  penalties:\n    negatives: {}\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Goal.Penalties.Negatives)
	assert.Equal(t, goal.NewNegatives(), *cfg.Goal.Penalties.Negatives)

	palette, pairs, err := cfg.LoadPalette()
	require.NoError(t, err)
	opts, err := cfg.Goal.Options(palette, pairs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sparsity", "Negatives"}, goal.PenaltyNames(opts.Penalties))
}

func TestNullDisablesSparsity(t *testing.T) {
	cfg, err := Parse([]byte("goal:\n  penalties:\n    sparsity: null\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Goal.Penalties.Sparsity)
}

func TestOptionsUsesPalettePairs(t *testing.T) {
	cfg, err := Parse([]byte("goal:\n  penalties:\n    similarity: {}\n"))
	require.NoError(t, err)

	palette, pairs, err := cfg.LoadPalette()
	require.NoError(t, err)
	require.NotEmpty(t, pairs)

	opts, err := cfg.Goal.Options(palette, pairs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sparsity", "Similarity"}, goal.PenaltyNames(opts.Penalties))

	sim, ok := opts.Penalties[1].(goal.Similarity)
	require.True(t, ok)
	assert.Equal(t, pairs, sim.Pairs)
	assert.Empty(t, cfg.Goal.Penalties.Similarity.Pairs, "config must not be mutated")
}

func TestLoadWithPaletteFile(t *testing.T) {
	dir := t.TempDir()
	palettePath := filepath.Join(dir, "palette.yaml")
	require.NoError(t, os.WriteFile(palettePath, []byte(`
pigments:
  - title: White
    hex: "#FFFFFF"
  - title: Black
    hex: "#000000"
`), 0o644))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("palette: "+palettePath+"\ngoal: {mixer: LabBlend}\n"), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	p, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, 2, p.Palette().Len())
	assert.Equal(t, opt.AlgorithmCMAES, p.Strategy().Name())
	assert.Equal(t, colorspace.MetricDeltaE2000, p.Metric().Name())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSearchUsesDefaultSpaceAndSamples(t *testing.T) {
	cfg, err := Parse([]byte(`
strategy:
  name: Nelder-Mead
  params: {maxEvaluations: 50}
hyper:
  backend: Swarm
  maxEvaluations: 40
  samples: 2
`))
	require.NoError(t, err)

	palette := pigment.DefaultPalette()
	items := make([]dataset.TrainingItem, 5)
	for i := range items {
		w := make([]float64, palette.Len())
		w[i] = 1
		items[i] = dataset.TrainingItem{Target: palette[i].Lab, Weights: w}
	}

	s, err := cfg.Search(items)
	require.NoError(t, err)
	assert.Len(t, s.Items, 2)
	assert.Equal(t, hyper.DefaultParameters(opt.AlgorithmNelderMead), s.Parameters)
	assert.Equal(t, hyper.BackendSwarm, s.Backend)
	assert.Equal(t, 40, s.MaxEvaluations)
	assert.Equal(t, 50, s.Base.Int("maxEvaluations", 0))
	require.NoError(t, s.Validate())

	cfg.Strategy = StrategyConfig{Name: opt.AlgorithmHybrid}
	_, err = cfg.Search(items)
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Params = opt.Params{{Key: "sigma", Value: 0.25}, {Key: "seed", Value: 7}}

	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
