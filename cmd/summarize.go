package main

import (
	"fmt"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	summarizeIn     string
	summarizeMetric string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Condense a result file into one sample",
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeIn, "in", "", "Result file written by samples (required)")
	summarizeCmd.Flags().StringVar(&summarizeMetric, "metric", colorspace.MetricDeltaE2000, "Distance between target and result colours")

	summarizeCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	metric, err := colorspace.NewMetric(summarizeMetric)
	if err != nil {
		return err
	}
	results, err := dataset.LoadResults(summarizeIn)
	if err != nil {
		return err
	}
	summary, err := dataset.Summarize(results, metric)
	if err != nil {
		return err
	}

	fmt.Printf("Optimizer: %s\n", summary.Optimizer)
	fmt.Printf("Records:   %d\n", summary.Count)
	fmt.Printf("Mean %s: %.4f\n", metric.Name(), summary.MeanError)
	for _, p := range summary.Params {
		fmt.Printf("  %s = %v\n", p.Key, p.Value)
	}
	return nil
}
