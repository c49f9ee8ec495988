package opt

import (
	"fmt"
	"log/slog"
)

// Hybrid defaults.
const (
	DefaultConvergedThreshold = 1.0
	DefaultRefineThreshold    = 50.0
)

// Hybrid runs a global strategy and, when its result is worth refining but
// not yet good enough, a local strategy started from the global result.
// The better of the two is returned.
type Hybrid struct {
	Global Strategy
	Local  Strategy

	// ConvergedThreshold: a global value at or below it is returned as is.
	ConvergedThreshold float64
	// RefineThreshold: the local stage only runs for global values below it.
	RefineThreshold float64
}

// NewHybrid combines global and local with the default thresholds.
func NewHybrid(global, local Strategy) *Hybrid {
	return &Hybrid{
		Global:             global,
		Local:              local,
		ConvergedThreshold: DefaultConvergedThreshold,
		RefineThreshold:    DefaultRefineThreshold,
	}
}

// HybridFromParams reads "global" and "local" strategy names (CMA-ES and
// Nelder-Mead by default), convergedThreshold and refineThreshold. Stage
// parameters are given with a "global." or "local." prefix.
func HybridFromParams(p Params) (*Hybrid, error) {
	stage := func(key, def string) (Strategy, error) {
		name := p.String(key, def)
		if name == AlgorithmHybrid {
			return nil, fmt.Errorf("%w: hybrid %s stage cannot be a hybrid", ErrInvalidConfig, key)
		}
		return New(name, p.Prefixed(key))
	}
	global, err := stage("global", AlgorithmCMAES)
	if err != nil {
		return nil, fmt.Errorf("hybrid global stage: %w", err)
	}
	local, err := stage("local", AlgorithmNelderMead)
	if err != nil {
		return nil, fmt.Errorf("hybrid local stage: %w", err)
	}
	h := NewHybrid(global, local)
	h.ConvergedThreshold = p.Float("convergedThreshold", h.ConvergedThreshold)
	h.RefineThreshold = p.Float("refineThreshold", h.RefineThreshold)
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks that both stages are set and the thresholds are ordered.
func (h *Hybrid) Validate() error {
	switch {
	case h.Global == nil || h.Local == nil:
		return fmt.Errorf("%w: hybrid needs a global and a local stage", ErrInvalidConfig)
	case h.ConvergedThreshold < 0:
		return fmt.Errorf("%w: hybrid convergedThreshold must not be negative", ErrInvalidConfig)
	case h.RefineThreshold < h.ConvergedThreshold:
		return fmt.Errorf("%w: hybrid refineThreshold %g is below convergedThreshold %g",
			ErrInvalidConfig, h.RefineThreshold, h.ConvergedThreshold)
	}
	return nil
}

func (h *Hybrid) Name() string { return AlgorithmHybrid }

// label names the stages that ran. When both ran, the stage whose result
// is returned carries a "*".
func (h *Hybrid) label(localRan, localWon bool) string {
	if !localRan {
		return AlgorithmHybrid + "(" + h.Global.Name() + ")"
	}
	if localWon {
		return AlgorithmHybrid + "(" + h.Global.Name() + "+" + h.Local.Name() + "*)"
	}
	return AlgorithmHybrid + "(" + h.Global.Name() + "*+" + h.Local.Name() + ")"
}

// Optimize runs the stages. The evaluation count is the sum over the stages
// that ran, including a failed local stage.
func (h *Hybrid) Optimize(obj Objective, initial []float64, bounds *Bounds) (Result, error) {
	if err := h.Validate(); err != nil {
		return Result{Algorithm: h.Name()}, err
	}

	global, err := h.Global.Optimize(obj, initial, bounds)
	if err != nil {
		global.Algorithm = h.label(false, false)
		return global, fmt.Errorf("hybrid global stage: %w", err)
	}
	global.Algorithm = h.label(false, false)

	if global.Value <= h.ConvergedThreshold {
		global.Converged = true
		slog.Debug("Hybrid global stage converged", "value", global.Value, "evaluations", global.Evaluations)
		return global, nil
	}
	if global.Value >= h.RefineThreshold {
		slog.Debug("Hybrid skipping local stage", "value", global.Value, "refine_threshold", h.RefineThreshold)
		return global, nil
	}

	local, err := h.Local.Optimize(obj, global.Weights, bounds)
	total := global.Evaluations + local.Evaluations
	if err != nil {
		slog.Debug("Hybrid local stage failed, keeping global result", "error", err)
		global.Evaluations = total
		global.Algorithm = h.label(true, false)
		return global, nil
	}

	best := global
	if local.Value < global.Value {
		best = local
	}
	best.Algorithm = h.label(true, local.Value < global.Value)
	best.Evaluations = total
	best.Converged = best.Converged || best.Value <= h.ConvergedThreshold

	slog.Debug("Hybrid run complete",
		"algorithm", best.Algorithm,
		"global_value", global.Value,
		"local_value", local.Value,
		"evaluations", total,
	)
	return best, nil
}
