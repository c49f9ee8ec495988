package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/pigment"
	"github.com/spf13/cobra"
)

var (
	datasetOut  string
	datasetMode string
	datasetK    int
	datasetStep float64
	datasetMax  int
	datasetSeed int64
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Create a training set of known mixes",
	Long: `Mixes known weight vectors over the configured palette and writes one
training record (target Lab, weights) per mix.

Modes:
  pairwise  every ordered pigment pair at 1%..99%
  kcolor    every k-pigment combination on a weight grid of --step
  random    --max random three-pigment mixes`,
	RunE: runDataset,
}

func init() {
	datasetCmd.Flags().StringVar(&datasetOut, "out", "", "Output training file (required)")
	datasetCmd.Flags().StringVar(&datasetMode, "mode", "pairwise", "Creation mode: pairwise, kcolor, random")
	datasetCmd.Flags().IntVar(&datasetK, "k", 2, "Pigments per mix (kcolor)")
	datasetCmd.Flags().Float64Var(&datasetStep, "step", 0.1, "Weight grid step (kcolor)")
	datasetCmd.Flags().IntVar(&datasetMax, "max", 100, "Number of mixes (random)")
	datasetCmd.Flags().Int64Var(&datasetSeed, "seed", 1, "Random seed (random)")

	datasetCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(datasetCmd)
}

func runDataset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	palette, _, err := cfg.LoadPalette()
	if err != nil {
		return err
	}
	mixer, err := pigment.NewMixer(cfg.Goal.Mixer)
	if err != nil {
		return err
	}
	creator := dataset.NewCreator(palette, mixer)

	f, err := os.Create(datasetOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	buf := bufio.NewWriter(f)
	tw, err := dataset.NewTrainingWriter(buf)
	if err != nil {
		return err
	}

	slog.Info("Creating training set", "mode", datasetMode, "pigments", palette.Len(), "mixer", mixer.Name())
	var count int
	switch datasetMode {
	case "pairwise":
		count, err = creator.Pairwise(tw.Write)
	case "kcolor":
		count, err = creator.KColor(datasetK, datasetStep, tw.Write)
	case "random":
		count, err = creator.Random3(datasetMax, datasetSeed, tw.Write)
	default:
		return fmt.Errorf("unknown mode: %s", datasetMode)
	}
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}

	slog.Info("Training set written", "path", datasetOut, "items", count)
	fmt.Printf("Wrote %d training items to %s\n", count, datasetOut)
	return nil
}
