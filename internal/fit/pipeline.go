// Package fit runs optimizer strategies against target colours: one target
// at a time for interactive prediction, or a batch of training items.
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/goal"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
)

// Pipeline holds everything but the target: palette, goal composition,
// initial guess and strategy. It is immutable once built.
type Pipeline struct {
	palette  pigment.Palette
	options  goal.Options
	guess    string
	seed     int64
	strategy opt.Strategy
}

// NewPipeline validates palette and the initial guess name.
func NewPipeline(palette pigment.Palette, options goal.Options, guess string, seed int64, strategy opt.Strategy) (*Pipeline, error) {
	if err := palette.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: no strategy", opt.ErrInvalidConfig)
	}
	if guess == "" {
		guess = goal.GuessUniform
	}
	if _, err := goal.NewInitialGuess(guess, palette, colorspace.Lab{}, seed); err != nil {
		return nil, err
	}
	if options.Metric == nil {
		options.Metric = colorspace.NewDeltaE2000()
	}
	if options.Mixer == nil {
		options.Mixer = pigment.NewPigmentMixer()
	}
	if options.Normalizer == nil {
		options.Normalizer = goal.Proportions{}
	}
	return &Pipeline{
		palette:  palette,
		options:  options,
		guess:    guess,
		seed:     seed,
		strategy: strategy,
	}, nil
}

// WithStrategy returns a copy of p that runs s.
func (p *Pipeline) WithStrategy(s opt.Strategy) *Pipeline {
	c := *p
	c.strategy = s
	return &c
}

func (p *Pipeline) Palette() pigment.Palette  { return p.palette }
func (p *Pipeline) Strategy() opt.Strategy    { return p.strategy }
func (p *Pipeline) Metric() colorspace.Metric { return p.options.Metric }
func (p *Pipeline) InitialGuessName() string  { return p.guess }

// Goal builds the objective for target.
func (p *Pipeline) Goal(target colorspace.Lab) (*goal.Goal, error) {
	return goal.New(p.palette, target, p.options)
}

// InitialGuess returns the starting weights for target. Random guesses are
// seeded with the pipeline seed plus offset.
func (p *Pipeline) InitialGuess(target colorspace.Lab, offset int64) ([]float64, error) {
	g, err := goal.NewInitialGuess(p.guess, p.palette, target, p.seed+offset)
	if err != nil {
		return nil, err
	}
	return g.Guess(p.palette.Len()), nil
}

// Prediction is the outcome of fitting one target.
type Prediction struct {
	Target         colorspace.Lab
	InitialWeights []float64
	InitialMix     colorspace.Lab
	// Weights are normalized.
	Weights     []float64
	Mixed       colorspace.Lab
	Error       float64 // metric distance between Mixed and Target
	Value       float64 // objective value, including penalties
	Evaluations int
	Converged   bool
	Algorithm   string
	Runtime     time.Duration
	// Degraded is set when the optimizer failed and the initial guess was
	// returned instead.
	Degraded bool
}

// Solve fits target from initial and reports the optimizer's failure as an
// error. The prediction returned with an error carries the evaluations
// spent.
func (p *Pipeline) Solve(target colorspace.Lab, initial []float64) (Prediction, error) {
	if err := p.palette.CheckWeights(initial); err != nil {
		return Prediction{}, err
	}
	g, err := p.Goal(target)
	if err != nil {
		return Prediction{}, err
	}
	initialMix, err := g.Mix(initial)
	if err != nil {
		return Prediction{}, err
	}
	pred := Prediction{
		Target:         target,
		InitialWeights: append([]float64(nil), initial...),
		InitialMix:     initialMix,
		Algorithm:      p.strategy.Name(),
	}

	start := time.Now()
	res, err := p.strategy.Optimize(g, initial, nil)
	pred.Runtime = time.Since(start)
	pred.Evaluations = res.Evaluations
	if res.Algorithm != "" {
		pred.Algorithm = res.Algorithm
	}
	if err != nil {
		return pred, err
	}

	if err := p.settle(g, &pred, res.Weights); err != nil {
		return pred, err
	}
	pred.Value = res.Value
	pred.Converged = res.Converged
	return pred, nil
}

// settle fills the weights, mix and error of pred from raw weights.
func (p *Pipeline) settle(g *goal.Goal, pred *Prediction, weights []float64) error {
	mixed, err := g.Mix(weights)
	if err != nil {
		return err
	}
	pred.Weights = g.Normalize(weights)
	pred.Mixed = mixed
	pred.Error = p.options.Metric.Distance(mixed, pred.Target)
	return nil
}

// Predict fits a single target. When the optimizer fails the initial guess
// is returned with Degraded set; configuration errors are still returned.
func (p *Pipeline) Predict(target colorspace.Lab) (Prediction, error) {
	initial, err := p.InitialGuess(target, 0)
	if err != nil {
		return Prediction{}, err
	}
	pred, err := p.Solve(target, initial)
	if err == nil {
		return pred, nil
	}
	if !errors.Is(err, opt.ErrMinimizerFailed) {
		return pred, err
	}

	slog.Warn("Optimizer failed, returning initial guess", "algorithm", pred.Algorithm, "error", err)
	g, gerr := p.Goal(target)
	if gerr != nil {
		return pred, gerr
	}
	if serr := p.settle(g, &pred, initial); serr != nil {
		return pred, serr
	}
	pred.Value, _ = g.Evaluate(initial)
	pred.Degraded = true
	return pred, nil
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Predictions []Prediction
	MeanError   float64
	Evaluations int
}

// ItemError reports the batch item whose run failed.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// RunBatch fits every item in order. All items are checked against the
// palette before any run starts. The first failing run aborts the batch with
// an *ItemError; the partial result still counts the evaluations spent.
func (p *Pipeline) RunBatch(items []dataset.TrainingItem) (BatchResult, error) {
	return p.Each(items, nil)
}

// Each is RunBatch with a callback invoked after every successful item. An
// error from the callback aborts the batch.
func (p *Pipeline) Each(items []dataset.TrainingItem, onItem func(i int, pred Prediction) error) (BatchResult, error) {
	for i, item := range items {
		if err := p.palette.CheckWeights(item.Weights); err != nil {
			return BatchResult{}, &ItemError{Index: i, Err: err}
		}
	}

	var batch BatchResult
	var sum float64
	for i, item := range items {
		initial, err := p.InitialGuess(item.Target, int64(i))
		if err != nil {
			return batch, err
		}
		pred, err := p.Solve(item.Target, initial)
		batch.Evaluations += pred.Evaluations
		if err != nil {
			return batch, &ItemError{Index: i, Err: err}
		}
		batch.Predictions = append(batch.Predictions, pred)
		sum += pred.Error
		if onItem != nil {
			if err := onItem(i, pred); err != nil {
				return batch, err
			}
		}

		slog.Debug("Batch item complete",
			"index", i,
			"error", pred.Error,
			"evaluations", pred.Evaluations,
		)
	}
	if len(items) > 0 {
		batch.MeanError = sum / float64(len(items))
	}

	slog.Info("Batch complete",
		"items", len(items),
		"algorithm", p.strategy.Name(),
		"mean_error", batch.MeanError,
		"evaluations", batch.Evaluations,
	)
	return batch, nil
}

// Record converts a prediction of item into a result record.
func (p *Pipeline) Record(item dataset.TrainingItem, pred Prediction, params opt.Params) dataset.Result {
	return dataset.Result{
		TargetLab:      item.Target,
		ResultLab:      pred.Mixed,
		InitialLab:     pred.InitialMix,
		TargetWeights:  item.Weights,
		ResultWeights:  pred.Weights,
		InitialWeights: pred.InitialWeights,
		Optimizer:      pred.Algorithm,
		Evaluations:    pred.Evaluations,
		MixingError:    p.options.Metric.Name(),
		Penalties:      goal.PenaltyNames(p.options.Penalties),
		Normalizer:     p.options.Normalizer.Name(),
		InitialGuess:   p.guess,
		Runtime:        pred.Runtime,
		Converged:      pred.Converged,
		Params:         params,
	}
}
