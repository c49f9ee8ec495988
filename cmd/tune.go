package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	tuneIn       string
	tuneStrategy string
	tuneBackend  string
	tuneSamples  int
	tuneMaxEvals int
	tuneDataDir  string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tune strategy hyperparameters on a training set",
	Long: `Searches the configured hyperparameter space of the strategy. Every
candidate configuration is scored by the mean colour error of a full batch
run over the first --samples training items. The best configuration is
stored as a run under --data-dir together with a trace of every outer
evaluation.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneIn, "in", "", "Training file (required)")
	tuneCmd.Flags().StringVar(&tuneStrategy, "strategy", "", "Strategy to tune (overrides the configuration)")
	tuneCmd.Flags().StringVar(&tuneBackend, "backend", "", "Outer search backend: Global, Swarm, Simplex")
	tuneCmd.Flags().IntVar(&tuneSamples, "samples", 0, "Batch size N (0 = configured)")
	tuneCmd.Flags().IntVar(&tuneMaxEvals, "max-evals", 0, "Outer evaluation budget (0 = configured)")
	tuneCmd.Flags().StringVar(&tuneDataDir, "data-dir", "./data", "Base directory for stored runs")

	tuneCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tuneStrategy != "" && tuneStrategy != cfg.Strategy.Name {
		cfg.Strategy.Name = tuneStrategy
		cfg.Strategy.Params = nil
		cfg.Hyper.Parameters = nil
	}
	if tuneBackend != "" {
		cfg.Hyper.Backend = tuneBackend
	}
	if tuneSamples > 0 {
		cfg.Hyper.Samples = tuneSamples
	}
	if tuneMaxEvals > 0 {
		cfg.Hyper.MaxEvaluations = tuneMaxEvals
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	items, err := dataset.LoadTraining(tuneIn)
	if err != nil {
		return err
	}
	search, err := cfg.Search(items)
	if err != nil {
		return err
	}

	runs, err := store.NewFSStore(tuneDataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	id := uuid.New().String()
	trace, err := store.NewTraceWriter(runs.BaseDir(), id, false)
	if err != nil {
		return err
	}
	defer trace.Close()
	search.Observer = trace.Observer()

	report, err := search.Run()
	if err != nil {
		return err
	}
	if err := trace.Flush(); err != nil {
		return err
	}
	run := store.NewRun(id, report, tuneIn)
	if err := runs.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	slog.Info("Run saved", "run_id", id, "trace", trace.Path())

	fmt.Printf("Run %s\n", id)
	fmt.Printf("Strategy: %s (backend %s)\n", run.Strategy, run.Backend)
	fmt.Printf("Mean error: %.4f over %d item(s)\n", run.MeanError, run.BatchSize)
	fmt.Printf("Outer evaluations: %d (%d infeasible), inner evaluations: %d\n",
		run.OuterEvaluations, run.Infeasible, run.InnerEvaluations)
	fmt.Println("Best parameters:")
	for _, p := range run.Params {
		fmt.Printf("  %s = %v\n", p.Key, p.Value)
	}
	return nil
}
