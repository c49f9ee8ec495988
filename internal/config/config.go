// Package config loads the YAML run configuration and turns it into a
// pipeline and a hyperparameter search.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/fit"
	"github.com/cwbudde/pigmentfit/internal/goal"
	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

// Config is the run configuration.
type Config struct {
	// Palette is a YAML palette file; empty means the built-in palette.
	Palette  string         `yaml:"palette,omitempty"`
	Goal     GoalConfig     `yaml:"goal"`
	Strategy StrategyConfig `yaml:"strategy"`
	Hyper    HyperConfig    `yaml:"hyper"`
}

// GoalConfig selects the objective's collaborators.
type GoalConfig struct {
	Metric       string        `yaml:"metric"`
	Normalizer   string        `yaml:"normalizer"`
	Mixer        string        `yaml:"mixer"`
	InitialGuess string        `yaml:"initialGuess"`
	Seed         int64         `yaml:"seed"`
	Penalties    PenaltyConfig `yaml:"penalties"`
}

// PenaltyConfig enables penalties. A nil entry is disabled; `sparsity: null`
// turns off the default sparsity penalty.
type PenaltyConfig struct {
	Sparsity   *goal.Sparsity    `yaml:"sparsity,omitempty"`
	Similarity *SimilarityConfig `yaml:"similarity,omitempty"`
	L1         *goal.L1          `yaml:"l1,omitempty"`
	L2         *goal.L2          `yaml:"l2,omitempty"`
	Negatives  *goal.Negatives   `yaml:"negatives,omitempty"`
}

// SimilarityConfig is the similarity penalty. Without explicit pairs the
// palette's pairs are used; AutoPairsBelow adds every pigment pair closer
// than that CIEDE2000 distance.
type SimilarityConfig struct {
	goal.Similarity `yaml:",inline"`
	AutoPairsBelow  float64 `yaml:"autoPairsBelow,omitempty"`
}

// UnmarshalYAML starts every penalty named in the mapping from its defaults,
// so a partial entry only overrides the keys it gives.
func (p *PenaltyConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: penalties must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		switch key.Value {
		case "sparsity":
			if p.Sparsity == nil {
				s := goal.NewSparsity()
				p.Sparsity = &s
			}
		case "similarity":
			if p.Similarity == nil {
				p.Similarity = &SimilarityConfig{Similarity: goal.NewSimilarity(nil)}
			}
		case "l1":
			if p.L1 == nil {
				p.L1 = &goal.L1{Lambda: goal.DefaultLambda}
			}
		case "l2":
			if p.L2 == nil {
				p.L2 = &goal.L2{Lambda: goal.DefaultLambda}
			}
		case "negatives":
			if p.Negatives == nil {
				n := goal.NewNegatives()
				p.Negatives = &n
			}
		default:
			return fmt.Errorf("line %d: unknown penalty %q", key.Line, key.Value)
		}
	}
	type plain PenaltyConfig
	return node.Decode((*plain)(p))
}

// StrategyConfig names the inner strategy and its parameters.
type StrategyConfig struct {
	Name   string     `yaml:"name"`
	Params opt.Params `yaml:"params,omitempty"`
}

// HyperConfig configures the hyperparameter search.
type HyperConfig struct {
	Backend        string            `yaml:"backend"`
	MaxEvaluations int               `yaml:"maxEvaluations"`
	Population     int               `yaml:"population"`
	Seed           int64             `yaml:"seed"`
	Samples        int               `yaml:"samples"`
	Parameters     []hyper.Parameter `yaml:"parameters,omitempty"`
}

// Default returns the configuration used when no file is given: CIEDE2000,
// proportions, the pigment mixer, a uniform start, the sparsity penalty and
// CMA-ES.
func Default() *Config {
	sparsity := goal.NewSparsity()
	return &Config{
		Goal: GoalConfig{
			Metric:       colorspace.MetricDeltaE2000,
			Normalizer:   goal.NormalizerProportions,
			Mixer:        pigment.MixerPigment,
			InitialGuess: goal.GuessUniform,
			Seed:         1,
			Penalties:    PenaltyConfig{Sparsity: &sparsity},
		},
		Strategy: StrategyConfig{Name: opt.AlgorithmCMAES},
		Hyper: HyperConfig{
			Backend:        hyper.BackendGlobal,
			MaxEvaluations: hyper.DefaultMaxEvaluations,
			Population:     hyper.DefaultPopulation,
			Seed:           1,
			Samples:        100,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every name and range, naming the offending key.
func (c *Config) Validate() error {
	if _, err := colorspace.NewMetric(c.Goal.Metric); err != nil {
		return fmt.Errorf("goal.metric: %w", err)
	}
	if _, err := goal.NewNormalizer(c.Goal.Normalizer); err != nil {
		return fmt.Errorf("goal.normalizer: %w", err)
	}
	if _, err := pigment.NewMixer(c.Goal.Mixer); err != nil {
		return fmt.Errorf("goal.mixer: %w", err)
	}
	if _, err := goal.NewInitialGuess(c.Goal.InitialGuess, nil, colorspace.Lab{}, 0); err != nil {
		return fmt.Errorf("goal.initialGuess: %w", err)
	}
	p := c.Goal.Penalties
	if p.Sparsity != nil && p.Sparsity.PerColor < 0 {
		return fmt.Errorf("goal.penalties.sparsity.penaltyPerColor: %w: must not be negative", opt.ErrInvalidConfig)
	}
	if p.Similarity != nil && p.Similarity.PerPair < 0 {
		return fmt.Errorf("goal.penalties.similarity.penaltyPerPair: %w: must not be negative", opt.ErrInvalidConfig)
	}
	if p.L1 != nil && p.L1.Lambda < 0 {
		return fmt.Errorf("goal.penalties.l1.lambda: %w: must not be negative", opt.ErrInvalidConfig)
	}
	if p.L2 != nil && p.L2.Lambda < 0 {
		return fmt.Errorf("goal.penalties.l2.lambda: %w: must not be negative", opt.ErrInvalidConfig)
	}
	if p.Negatives != nil && p.Negatives.Factor < 0 {
		return fmt.Errorf("goal.penalties.negatives.factor: %w: must not be negative", opt.ErrInvalidConfig)
	}
	if _, err := opt.New(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	h := c.Hyper
	switch h.Backend {
	case hyper.BackendGlobal, hyper.BackendSwarm, hyper.BackendSimplex:
	default:
		return fmt.Errorf("hyper.backend: %w: %q", hyper.ErrUnknownBackend, h.Backend)
	}
	if h.MaxEvaluations <= 0 {
		return fmt.Errorf("hyper.maxEvaluations: %w: must be positive", opt.ErrInvalidConfig)
	}
	if h.Samples <= 0 {
		return fmt.Errorf("hyper.samples: %w: must be positive", opt.ErrInvalidConfig)
	}
	for i, param := range h.Parameters {
		if err := param.Validate(); err != nil {
			return fmt.Errorf("hyper.parameters[%d]: %w", i, err)
		}
	}
	return nil
}

// LoadPalette returns the configured palette and its similarity pairs.
func (c *Config) LoadPalette() (pigment.Palette, [][2]int, error) {
	if c.Palette == "" {
		palette := pigment.DefaultPalette()
		return palette, pigment.DefaultSimilarityPairs(palette), nil
	}
	return pigment.LoadPalette(c.Palette)
}

// Options builds the goal options for palette. pairs are the palette's own
// similarity pairs.
func (g GoalConfig) Options(palette pigment.Palette, pairs [][2]int) (goal.Options, error) {
	var opts goal.Options
	var err error
	if opts.Metric, err = colorspace.NewMetric(g.Metric); err != nil {
		return opts, err
	}
	if opts.Normalizer, err = goal.NewNormalizer(g.Normalizer); err != nil {
		return opts, err
	}
	if opts.Mixer, err = pigment.NewMixer(g.Mixer); err != nil {
		return opts, err
	}

	p := g.Penalties
	if p.Sparsity != nil {
		opts.Penalties = append(opts.Penalties, *p.Sparsity)
	}
	if p.Similarity != nil {
		sim := p.Similarity.Similarity
		if len(sim.Pairs) == 0 {
			sim.Pairs = append(sim.Pairs, pairs...)
		}
		if p.Similarity.AutoPairsBelow > 0 {
			sim.Pairs = append(sim.Pairs, palette.SimilarPairs(p.Similarity.AutoPairsBelow)...)
		}
		opts.Penalties = append(opts.Penalties, sim)
	}
	if p.L1 != nil {
		opts.Penalties = append(opts.Penalties, *p.L1)
	}
	if p.L2 != nil {
		opts.Penalties = append(opts.Penalties, *p.L2)
	}
	if p.Negatives != nil {
		opts.Penalties = append(opts.Penalties, *p.Negatives)
	}
	return opts, nil
}

// Pipeline builds the palette, goal options and strategy into a pipeline.
func (c *Config) Pipeline() (*fit.Pipeline, error) {
	palette, pairs, err := c.LoadPalette()
	if err != nil {
		return nil, err
	}
	opts, err := c.Goal.Options(palette, pairs)
	if err != nil {
		return nil, err
	}
	strategy, err := opt.New(c.Strategy.Name, c.Strategy.Params)
	if err != nil {
		return nil, err
	}
	return fit.NewPipeline(palette, opts, c.Goal.InitialGuess, c.Goal.Seed, strategy)
}

// Search builds the hyperparameter search for the configured strategy over
// the first Samples items. Without configured parameters the strategy's
// default search space is used.
func (c *Config) Search(items []dataset.TrainingItem) (*hyper.Search, error) {
	pipeline, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	params := c.Hyper.Parameters
	if len(params) == 0 {
		params = hyper.DefaultParameters(c.Strategy.Name)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no hyper.parameters given and no default search space for %q", opt.ErrInvalidConfig, c.Strategy.Name)
	}
	if len(items) > c.Hyper.Samples {
		items = items[:c.Hyper.Samples]
	}

	s := hyper.NewSearch(c.Strategy.Name, params, pipeline, items)
	s.Base = c.Strategy.Params
	s.Backend = c.Hyper.Backend
	s.MaxEvaluations = c.Hyper.MaxEvaluations
	s.Population = c.Hyper.Population
	s.Seed = c.Hyper.Seed
	return s, nil
}
