package hyper

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/fit"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

// Outer search backends.
const (
	// BackendGlobal is CMA-ES over the parameter box, started with each
	// parameter's sigma.
	BackendGlobal = "Global"
	// BackendSwarm is the mayfly swarm over the parameter box.
	BackendSwarm = "Swarm"
	// BackendSimplex is Nelder-Mead. It does not know the box: candidates
	// outside it score InfeasibleValue without running the batch.
	BackendSimplex = "Simplex"
)

var (
	// ErrUnknownBackend is returned for unrecognized backend names.
	ErrUnknownBackend = errors.New("unknown search backend")
	// ErrNoFeasible is returned when every evaluated candidate was infeasible.
	ErrNoFeasible = errors.New("no feasible configuration evaluated")
)

// InfeasibleValue is the score of a candidate that is not evaluated.
const InfeasibleValue = math.MaxFloat64 / 2

// Search defaults.
const (
	DefaultMaxEvaluations = 300
	DefaultPopulation     = 20
	simplexStep           = 0.1
	simplexPatience       = 10
	globalPatience        = 50
)

// Backends lists the accepted backend names.
func Backends() []string { return []string{BackendGlobal, BackendSwarm, BackendSimplex} }

// Evaluation describes one outer evaluation.
type Evaluation struct {
	Index            int        `json:"index"`
	X                []float64  `json:"x"`
	Params           opt.Params `json:"params,omitempty"`
	MeanError        float64    `json:"mean_error"`
	InnerEvaluations int        `json:"inner_evaluations"`
	Feasible         bool       `json:"feasible"`
}

// Observer is called after every outer evaluation. Returning an error aborts
// the search.
type Observer func(Evaluation) error

// StrategyFactory builds the inner strategy for a candidate.
type StrategyFactory func(name string, params opt.Params) (opt.Strategy, error)

// Search tunes the parameters of one inner strategy.
type Search struct {
	Strategy   string
	Base       opt.Params // fixed inner parameters
	Parameters []Parameter
	Pipeline   *fit.Pipeline
	Items      []dataset.TrainingItem

	Backend        string
	MaxEvaluations int
	Population     int
	Seed           int64

	Observer Observer
	Factory  StrategyFactory
}

// NewSearch returns a search with the Global backend and default budget.
func NewSearch(strategy string, params []Parameter, pipeline *fit.Pipeline, items []dataset.TrainingItem) *Search {
	return &Search{
		Strategy:       strategy,
		Parameters:     params,
		Pipeline:       pipeline,
		Items:          items,
		Backend:        BackendGlobal,
		MaxEvaluations: DefaultMaxEvaluations,
		Population:     DefaultPopulation,
		Seed:           1,
		Factory:        opt.New,
	}
}

// Report is the outcome of a search.
type Report struct {
	Sample           Sample        `json:"sample"`
	Backend          string        `json:"backend"`
	Best             []float64     `json:"best"`
	OuterEvaluations int           `json:"outer_evaluations"`
	InnerEvaluations int           `json:"inner_evaluations"`
	Infeasible       int           `json:"infeasible"`
	BatchSize        int           `json:"batch_size"`
	Runtime          time.Duration `json:"runtime"`
}

// Validate checks the search configuration, including that the inner
// strategy can be built from the initial parameter values.
func (s *Search) Validate() error {
	switch {
	case len(s.Parameters) == 0:
		return fmt.Errorf("%w: no parameters to tune", opt.ErrInvalidConfig)
	case s.Pipeline == nil:
		return fmt.Errorf("%w: no pipeline", opt.ErrInvalidConfig)
	case len(s.Items) == 0:
		return fmt.Errorf("%w: empty training batch", opt.ErrInvalidConfig)
	case s.MaxEvaluations <= 0:
		return fmt.Errorf("%w: maxEvaluations must be positive, got %d", opt.ErrInvalidConfig, s.MaxEvaluations)
	}
	switch s.Backend {
	case BackendGlobal, BackendSwarm, BackendSimplex:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
	seen := make(map[string]bool, len(s.Parameters))
	for _, p := range s.Parameters {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: parameter %q listed twice", opt.ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
	}
	params, err := Resolve(s.Parameters, s.Base, s.initial())
	if err != nil {
		return err
	}
	if _, err := s.factory()(s.Strategy, params); err != nil {
		return fmt.Errorf("initial configuration: %w", err)
	}
	return nil
}

func (s *Search) factory() StrategyFactory {
	if s.Factory == nil {
		return opt.New
	}
	return s.Factory
}

func (s *Search) initial() []float64 {
	x := make([]float64, len(s.Parameters))
	for i, p := range s.Parameters {
		x[i] = p.Initial
	}
	return x
}

func (s *Search) bounds() opt.Bounds {
	b := opt.Bounds{Lower: make([]float64, len(s.Parameters)), Upper: make([]float64, len(s.Parameters))}
	for i, p := range s.Parameters {
		b.Lower[i] = p.Lower
		b.Upper[i] = p.Upper
	}
	return b
}

// run carries the accounting of one search.
type run struct {
	s        *Search
	box      opt.Bounds
	outer    int
	inner    int
	feasible int
	skipped  int
}

// evaluate scores candidate x. Failures abort the search by panicking; the
// minimizer adapters turn the panic into an error.
func (r *run) evaluate(x []float64) float64 {
	index := r.outer
	r.outer++
	ev := Evaluation{Index: index, X: append([]float64(nil), x...)}

	if !r.box.Contains(x) {
		r.skipped++
		ev.MeanError = InfeasibleValue
		r.observe(ev)
		return InfeasibleValue
	}

	params, err := Resolve(r.s.Parameters, r.s.Base, x)
	if err != nil {
		panic(err)
	}
	ev.Params = params

	strategy, err := r.s.factory()(r.s.Strategy, params)
	if err != nil {
		if !errors.Is(err, opt.ErrInvalidConfig) {
			panic(err)
		}
		slog.Debug("Candidate configuration rejected", "index", index, "error", err)
		r.skipped++
		ev.MeanError = InfeasibleValue
		r.observe(ev)
		return InfeasibleValue
	}

	batch, err := r.s.Pipeline.WithStrategy(strategy).RunBatch(r.s.Items)
	r.inner += batch.Evaluations
	ev.InnerEvaluations = batch.Evaluations
	if err != nil {
		panic(fmt.Errorf("candidate %d: %w", index, err))
	}
	r.feasible++
	ev.Feasible = true
	ev.MeanError = batch.MeanError

	slog.Debug("Outer evaluation complete",
		"index", index,
		"mean_error", batch.MeanError,
		"inner_evaluations", batch.Evaluations,
	)
	r.observe(ev)
	return batch.MeanError
}

func (r *run) observe(ev Evaluation) {
	if r.s.Observer == nil {
		return
	}
	if err := r.s.Observer(ev); err != nil {
		panic(err)
	}
}

// Run performs the search. On failure the returned report still carries the
// evaluation counts reached.
func (s *Search) Run() (Report, error) {
	if err := s.Validate(); err != nil {
		return Report{}, err
	}

	dim := len(s.Parameters)
	population := s.Population
	if population <= 0 {
		population = DefaultPopulation
	}
	r := &run{s: s, box: s.bounds()}
	report := Report{Backend: s.Backend, BatchSize: len(s.Items)}

	slog.Info("Starting hyperparameter search",
		"strategy", s.Strategy,
		"backend", s.Backend,
		"parameters", dim,
		"batch_size", len(s.Items),
		"max_evaluations", s.MaxEvaluations,
	)
	start := time.Now()

	var (
		sol opt.Solution
		err error
	)
	switch s.Backend {
	case BackendGlobal:
		sigmas := make([]float64, dim)
		for i, p := range s.Parameters {
			sigmas[i] = p.Sigma
		}
		cmaes := opt.CMAES{
			Sigmas:               sigmas,
			PopulationMultiplier: int(math.Ceil(float64(population) / float64(dim))),
			MaxEvaluations:       s.MaxEvaluations,
			StopFitness:          0,
			Patience:             globalPatience,
			Seed:                 s.Seed,
		}
		sol, err = cmaes.Minimize(r.evaluate, s.initial(), r.box)

	case BackendSwarm:
		swarm := max(population, opt.DefaultMayfly().Population)
		m := opt.Mayfly{
			Iterations:     s.MaxEvaluations/swarm + 1,
			Population:     swarm,
			MaxEvaluations: s.MaxEvaluations,
			Seed:           s.Seed,
		}
		sol, err = m.Minimize(r.evaluate, s.initial(), r.box)

	case BackendSimplex:
		// The simplex works in offsets from the initial point scaled by each
		// parameter's range, so one step is 10% of every range.
		initial := s.initial()
		toX := func(z []float64) []float64 {
			x := make([]float64, dim)
			for i := range x {
				x[i] = initial[i] + z[i]*(r.box.Upper[i]-r.box.Lower[i])
			}
			return x
		}
		nm := opt.NelderMead{
			StepSize:          simplexStep,
			RelativeThreshold: 1e-6,
			AbsoluteThreshold: 1e-6,
			Patience:          simplexPatience,
			MaxEvaluations:    s.MaxEvaluations,
		}
		sol, err = nm.Minimize(func(z []float64) float64 { return r.evaluate(toX(z)) }, make([]float64, dim), unbounded(dim))
		if sol.X != nil {
			sol.X = toX(sol.X)
		}
	}

	report.OuterEvaluations = r.outer
	report.InnerEvaluations = r.inner
	report.Infeasible = r.skipped
	report.Runtime = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("hyperparameter search: %w", err)
	}
	if r.feasible == 0 || sol.F >= InfeasibleValue {
		return report, ErrNoFeasible
	}

	best := r.box.Clamp(sol.X)
	params, err := Resolve(s.Parameters, s.Base, best)
	if err != nil {
		return report, err
	}
	report.Best = best
	report.Sample = Sample{Strategy: s.Strategy, Params: params, MeanError: sol.F}

	slog.Info("Hyperparameter search complete",
		"strategy", s.Strategy,
		"mean_error", sol.F,
		"outer_evaluations", r.outer,
		"inner_evaluations", r.inner,
		"infeasible", r.skipped,
		"duration", report.Runtime,
	)
	return report, nil
}

func unbounded(dim int) opt.Bounds {
	b := opt.Bounds{Lower: make([]float64, dim), Upper: make([]float64, dim)}
	for i := 0; i < dim; i++ {
		b.Lower[i] = math.Inf(-1)
		b.Upper[i] = math.Inf(1)
	}
	return b
}
