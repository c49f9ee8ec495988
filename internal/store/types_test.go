package store

import (
	"errors"
	"testing"
	"time"

	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

func TestNewRunFromReport(t *testing.T) {
	report := hyper.Report{
		Sample: hyper.Sample{
			Strategy:  opt.AlgorithmNelderMead,
			Params:    opt.Params{{Key: "stepSize", Value: 0.12}},
			MeanError: 2.5,
		},
		Backend:          hyper.BackendSimplex,
		Best:             []float64{0.12},
		OuterEvaluations: 40,
		InnerEvaluations: 3000,
		Infeasible:       4,
		BatchSize:        25,
		Runtime:          1500 * time.Millisecond,
	}

	run := NewRun("abc", report, "train.csv")
	if err := run.Validate(); err != nil {
		t.Fatalf("Run from report should be valid: %v", err)
	}
	if run.RuntimeMs != 1500 || run.Backend != hyper.BackendSimplex || run.Dataset != "train.csv" {
		t.Errorf("Unexpected run %+v", run)
	}

	sample := run.Sample()
	if sample.Strategy != opt.AlgorithmNelderMead || sample.MeanError != 2.5 || sample.Params.Float("stepSize", 0) != 0.12 {
		t.Errorf("Sample = %+v", sample)
	}

	info := run.ToInfo()
	if info.ID != "abc" || info.OuterEvaluations != 40 || info.BatchSize != 25 {
		t.Errorf("Info = %+v", info)
	}
}

func TestRunValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Run)
		field  string
	}{
		{"empty id", func(r *Run) { r.ID = "" }, "ID"},
		{"empty strategy", func(r *Run) { r.Strategy = "" }, "Strategy"},
		{"empty backend", func(r *Run) { r.Backend = "" }, "Backend"},
		{"zero timestamp", func(r *Run) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"no params", func(r *Run) { r.Params = opt.Params{} }, "Params"},
		{"negative error", func(r *Run) { r.MeanError = -1 }, "MeanError"},
		{"empty batch", func(r *Run) { r.BatchSize = 0 }, "BatchSize"},
		{"no evaluations", func(r *Run) { r.OuterEvaluations = 0 }, "OuterEvaluations"},
		{"all infeasible", func(r *Run) { r.Infeasible = r.OuterEvaluations }, "Infeasible"},
		{"negative inner", func(r *Run) { r.InnerEvaluations = -1 }, "InnerEvaluations"},
	}

	if err := createTestRun("ok").Validate(); err != nil {
		t.Fatalf("Valid run rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := createTestRun("run")
			tt.mutate(run)
			err := run.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{ID: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "run not found: x" {
		t.Errorf("Error() = %q", err.Error())
	}
	if ErrNotFound.Error() != "run not found" {
		t.Errorf("ErrNotFound.Error() = %q", ErrNotFound.Error())
	}
}
