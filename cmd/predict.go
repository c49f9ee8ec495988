package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/config"
	"github.com/cwbudde/pigmentfit/internal/dataset"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
	"github.com/spf13/cobra"
)

var (
	predictHex      string
	predictLab      string
	predictStrategy string
	predictParams   []string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Find the pigment mix for a target colour",
	Long: `Optimizes the pigment weights whose mix is closest to the target colour
and prints the weights, a recipe in whole parts and the resulting colour.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictHex, "hex", "", "Target colour as #rrggbb")
	predictCmd.Flags().StringVar(&predictLab, "lab", "", "Target colour as L,a,b")
	predictCmd.Flags().StringVar(&predictStrategy, "strategy", "", "Optimizer strategy (overrides the configuration)")
	predictCmd.Flags().StringArrayVar(&predictParams, "param", nil, "Strategy parameter key=value (repeatable)")
	predictCmd.MarkFlagsMutuallyExclusive("hex", "lab")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(predictHex, predictLab)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyStrategyFlags(cfg, predictStrategy, predictParams); err != nil {
		return err
	}

	pipeline, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	slog.Info("Predicting mix", "target", target.String(), "strategy", cfg.Strategy.Name)

	pred, err := pipeline.Predict(target)
	if err != nil {
		return err
	}
	recipe, err := pigment.NewRecipe(pred.Weights, pipeline.Palette(), pigment.DefaultSignificance)
	if err != nil {
		return err
	}

	fmt.Printf("Target: %s (%s)\n", target.Hex(), target)
	fmt.Printf("Mixed:  %s (%s)\n", pred.Mixed.Hex(), pred.Mixed)
	fmt.Printf("%s: %.4f after %d evaluations (%s)\n", pipeline.Metric().Name(), pred.Error, pred.Evaluations, pred.Algorithm)
	if pred.Degraded {
		fmt.Println("Optimizer failed; showing the initial guess")
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PIGMENT\tWEIGHT")
	percentages := pigment.FormatPercentages(pred.Weights)
	for i, p := range pipeline.Palette() {
		if pred.Weights[i] == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", p.Title, percentages[i])
	}
	w.Flush()

	if !recipe.Empty() {
		fmt.Println()
		fmt.Println("Recipe:")
		for _, line := range recipe.Lines() {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

// parseTarget reads the target from exactly one of hex and lab.
func parseTarget(hex, lab string) (colorspace.Lab, error) {
	switch {
	case hex != "" && lab != "":
		return colorspace.Lab{}, errors.New("give either --hex or --lab, not both")
	case hex != "":
		return colorspace.FromHex(hex)
	case lab != "":
		return dataset.ParseLab(strings.ReplaceAll(lab, ",", ";"))
	default:
		return colorspace.Lab{}, errors.New("a target colour is required (--hex or --lab)")
	}
}

// applyStrategyFlags overrides the configured strategy. A new strategy name
// starts from empty parameters; --param entries are set on top.
func applyStrategyFlags(cfg *config.Config, strategy string, params []string) error {
	if strategy != "" && strategy != cfg.Strategy.Name {
		cfg.Strategy = config.StrategyConfig{Name: strategy}
	}
	for _, s := range params {
		p, err := opt.ParseParam(s)
		if err != nil {
			return err
		}
		cfg.Strategy.Params = cfg.Strategy.Params.Set(p.Key, p.Value)
	}
	return cfg.Validate()
}
