package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/fit"
	"github.com/spf13/cobra"
)

var (
	samplesIn       string
	samplesOut      string
	samplesStrategy string
	samplesParams   []string
	samplesCount    int
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Run the optimizer over a training set",
	Long: `Fits every target of a training set with the configured strategy and
writes one result record per item. The first failing item aborts the run;
records written before it are kept.`,
	RunE: runSamples,
}

func init() {
	samplesCmd.Flags().StringVar(&samplesIn, "in", "", "Training file (required)")
	samplesCmd.Flags().StringVar(&samplesOut, "out", "", "Result file (required)")
	samplesCmd.Flags().StringVar(&samplesStrategy, "strategy", "", "Optimizer strategy (overrides the configuration)")
	samplesCmd.Flags().StringArrayVar(&samplesParams, "param", nil, "Strategy parameter key=value (repeatable)")
	samplesCmd.Flags().IntVar(&samplesCount, "samples", 0, "Use only the first N items (0 = all)")

	samplesCmd.MarkFlagRequired("in")
	samplesCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(samplesCmd)
}

func runSamples(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyStrategyFlags(cfg, samplesStrategy, samplesParams); err != nil {
		return err
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	items, err := dataset.LoadTraining(samplesIn)
	if err != nil {
		return err
	}
	if samplesCount > 0 && samplesCount < len(items) {
		items = items[:samplesCount]
	}

	f, err := os.Create(samplesOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	params := cfg.Strategy.Params
	rw, err := dataset.NewResultWriter(f, params.Keys())
	if err != nil {
		return err
	}

	slog.Info("Starting batch", "items", len(items), "strategy", cfg.Strategy.Name)
	start := time.Now()
	batch, err := pipeline.Each(items, func(i int, pred fit.Prediction) error {
		return rw.Write(pipeline.Record(items[i], pred, params))
	})
	if err != nil {
		return fmt.Errorf("batch aborted after %d item(s): %w", len(batch.Predictions), err)
	}

	elapsed := time.Since(start)
	fmt.Printf("Wrote %d results to %s (mean %s %.4f, %d evaluations, %s)\n",
		len(batch.Predictions), samplesOut, pipeline.Metric().Name(), batch.MeanError, batch.Evaluations, elapsed.Round(time.Millisecond))
	return nil
}
