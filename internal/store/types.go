package store

import (
	"time"

	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

// Run is a finished hyperparameter search: the tuned strategy, the best
// configuration found and the evaluation accounting of the search.
type Run struct {
	// ID is the unique identifier of the run
	ID string `json:"id"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`

	// Strategy is the tuned inner strategy
	Strategy string `json:"strategy"`

	// Backend is the outer search backend
	Backend string `json:"backend"`

	// Dataset is the training file the batch was drawn from, if any
	Dataset string `json:"dataset,omitempty"`

	// Params is the resolved best configuration
	Params opt.Params `json:"params"`

	// Best is the continuous search vector behind Params
	Best []float64 `json:"best,omitempty"`

	// MeanError is the mean colour error Params achieved over the batch
	MeanError float64 `json:"meanError"`

	OuterEvaluations int `json:"outerEvaluations"`
	InnerEvaluations int `json:"innerEvaluations"`
	Infeasible       int `json:"infeasible"`
	BatchSize        int `json:"batchSize"`

	// RuntimeMs is the wall time of the search
	RuntimeMs int64 `json:"runtimeMs"`
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Strategy         string    `json:"strategy"`
	Backend          string    `json:"backend"`
	MeanError        float64   `json:"meanError"`
	OuterEvaluations int       `json:"outerEvaluations"`
	BatchSize        int       `json:"batchSize"`
}

// NewRun creates a run from a search report.
func NewRun(id string, report hyper.Report, dataset string) *Run {
	return &Run{
		ID:               id,
		Timestamp:        time.Now(),
		Strategy:         report.Sample.Strategy,
		Backend:          report.Backend,
		Dataset:          dataset,
		Params:           report.Sample.Params,
		Best:             report.Best,
		MeanError:        report.Sample.MeanError,
		OuterEvaluations: report.OuterEvaluations,
		InnerEvaluations: report.InnerEvaluations,
		Infeasible:       report.Infeasible,
		BatchSize:        report.BatchSize,
		RuntimeMs:        report.Runtime.Milliseconds(),
	}
}

// Sample returns the run as a hyperparameter sample.
func (r *Run) Sample() hyper.Sample {
	return hyper.Sample{Strategy: r.Strategy, Params: r.Params, MeanError: r.MeanError}
}

// ToInfo converts a full Run to RunInfo.
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		Strategy:         r.Strategy,
		Backend:          r.Backend,
		MeanError:        r.MeanError,
		OuterEvaluations: r.OuterEvaluations,
		BatchSize:        r.BatchSize,
	}
}

// Validate checks that the run is complete and its counters are consistent.
func (r *Run) Validate() error {
	switch {
	case r.ID == "":
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	case r.Strategy == "":
		return &ValidationError{Field: "Strategy", Reason: "cannot be empty"}
	case r.Backend == "":
		return &ValidationError{Field: "Backend", Reason: "cannot be empty"}
	case r.Timestamp.IsZero():
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	case len(r.Params) == 0:
		return &ValidationError{Field: "Params", Reason: "cannot be empty"}
	case r.MeanError < 0:
		return &ValidationError{Field: "MeanError", Reason: "cannot be negative"}
	case r.BatchSize <= 0:
		return &ValidationError{Field: "BatchSize", Reason: "must be positive"}
	case r.OuterEvaluations <= 0:
		return &ValidationError{Field: "OuterEvaluations", Reason: "must be positive"}
	case r.Infeasible < 0 || r.Infeasible >= r.OuterEvaluations:
		return &ValidationError{Field: "Infeasible", Reason: "must leave at least one feasible evaluation"}
	case r.InnerEvaluations < 0:
		return &ValidationError{Field: "InnerEvaluations", Reason: "cannot be negative"}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
