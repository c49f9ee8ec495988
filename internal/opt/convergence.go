package opt

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Tracker detects convergence from the history of best objective values. It
// implements optimize.Converger so gonum backends stop on it.
//
// A run is converged once the value drops below StopFitness, or once
// Patience consecutive updates fail to improve on the last significant value
// by at least Threshold (relative).
type Tracker struct {
	Patience    int
	Threshold   float64
	StopFitness float64 // disabled when NaN or -Inf

	history         []float64
	best            float64
	lastSignificant float64
	stale           int
}

var _ optimize.Converger = (*Tracker)(nil)

// NewTracker creates a tracker. A zero patience disables the stall check.
func NewTracker(patience int, threshold, stopFitness float64) *Tracker {
	t := &Tracker{Patience: patience, Threshold: threshold, StopFitness: stopFitness}
	t.Reset()
	return t
}

// Init resets the tracker at the start of a gonum run.
func (t *Tracker) Init(dim int) { t.Reset() }

// Converged reports the gonum status for the latest major iteration.
func (t *Tracker) Converged(loc *optimize.Location) optimize.Status {
	if loc.F < t.StopFitness {
		return optimize.FunctionThreshold
	}
	if t.Update(loc.F) {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}

// Update records a new value and returns true when the run has stalled.
func (t *Tracker) Update(cost float64) bool {
	t.history = append(t.history, cost)
	if cost < t.best {
		t.best = cost
	}

	if len(t.history) == 1 {
		t.lastSignificant = cost
		return false
	}
	if t.Patience <= 0 {
		return false
	}

	improvement := t.lastSignificant - cost
	if t.lastSignificant != 0 {
		improvement /= math.Abs(t.lastSignificant)
	}
	if improvement >= t.Threshold && improvement > 0 {
		t.lastSignificant = cost
		t.stale = 0
		return false
	}

	t.stale++
	if t.stale >= t.Patience {
		slog.Debug("Optimization stalled",
			"stale", t.stale,
			"patience", t.Patience,
			"best", t.best,
		)
		return true
	}
	return false
}

// Best returns the best value seen.
func (t *Tracker) Best() float64 { return t.best }

// History returns a copy of all recorded values.
func (t *Tracker) History() []float64 { return append([]float64(nil), t.history...) }

// Stale returns the number of updates since the last significant improvement.
func (t *Tracker) Stale() int { return t.stale }

// Reset clears all state.
func (t *Tracker) Reset() {
	t.history = t.history[:0]
	t.best = math.Inf(1)
	t.lastSignificant = math.Inf(1)
	t.stale = 0
}
