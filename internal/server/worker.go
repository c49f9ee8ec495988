package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pigmentfit/internal/config"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/store"
)

// jobRunConfig applies the job's overrides to base.
func jobRunConfig(base *config.Config, jc JobConfig) (*config.Config, error) {
	cfg := *base
	if jc.Strategy != "" {
		cfg.Strategy = config.StrategyConfig{Name: jc.Strategy, Params: jc.Params}
	} else if jc.Params != nil {
		cfg.Strategy.Params = jc.Params
	}
	if jc.Backend != "" {
		cfg.Hyper.Backend = jc.Backend
	}
	if jc.Samples > 0 {
		cfg.Hyper.Samples = jc.Samples
	}
	if jc.MaxEvaluations > 0 {
		cfg.Hyper.MaxEvaluations = jc.MaxEvaluations
	}
	if jc.Population > 0 {
		cfg.Hyper.Population = jc.Population
	}
	if jc.Seed != 0 {
		cfg.Hyper.Seed = jc.Seed
	}
	if jc.Parameters != nil {
		cfg.Hyper.Parameters = jc.Parameters
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runJob executes a tuning job. The search itself is synchronous; ctx is
// checked between outer evaluations. When runs is not nil the trace is
// written next to the stored run.
func runJob(ctx context.Context, jm *JobManager, base *config.Config, runs *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "dataset", job.Config.Dataset)

	cfg, err := jobRunConfig(base, job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	items, err := dataset.LoadTraining(job.Config.Dataset)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	search, err := cfg.Search(items)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	jm.UpdateJob(jobID, func(j *Job) { j.BatchSize = len(search.Items) })

	var trace *store.TraceWriter
	if runs != nil {
		trace, err = store.NewTraceWriter(runs.BaseDir(), jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer trace.Close()
	}

	search.Observer = func(ev hyper.Evaluation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if trace != nil {
			if err := trace.Write(store.NewTraceEntry(ev)); err != nil {
				return err
			}
		}
		var snapshot Job
		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations++
			j.InnerEvaluations += ev.InnerEvaluations
			if !ev.Feasible {
				j.Infeasible++
			} else if j.BestError == 0 || ev.MeanError < j.BestError {
				j.BestError = ev.MeanError
			}
			snapshot = *j
		})
		event := progressOf(snapshot)
		event.LastError = ev.MeanError
		event.Feasible = ev.Feasible
		jm.broadcaster.Broadcast(event)
		return nil
	}

	report, err := search.Run()
	if trace != nil {
		if ferr := trace.Flush(); ferr != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", ferr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	if runs != nil {
		if err := runs.SaveRun(store.NewRun(jobID, report, job.Config.Dataset)); err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to save run: %w", err))
			return err
		}
	}

	endTime := time.Now()
	sample := report.Sample
	var snapshot Job
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = &sample
		j.BestError = sample.MeanError
		j.Evaluations = report.OuterEvaluations
		j.InnerEvaluations = report.InnerEvaluations
		j.Infeasible = report.Infeasible
		j.EndTime = &endTime
		snapshot = *j
	})
	jm.broadcaster.Broadcast(progressOf(snapshot))

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", report.Runtime,
		"mean_error", sample.MeanError,
		"outer_evaluations", report.OuterEvaluations,
		"inner_evaluations", report.InnerEvaluations,
	)
	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	finishJob(jm, jobID, StateFailed, err.Error())
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	finishJob(jm, jobID, StateCancelled, "")
	slog.Info("Job cancelled", "job_id", jobID)
}

func finishJob(jm *JobManager, jobID string, state JobState, msg string) {
	endTime := time.Now()
	var snapshot Job
	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Error = msg
		j.EndTime = &endTime
		snapshot = *j
	})
	if err == nil {
		jm.broadcaster.Broadcast(progressOf(snapshot))
	}
}
