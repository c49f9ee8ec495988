// Package store persists finished tuning runs and the trace of their outer
// evaluations.
package store

// Store persists tuning runs. Implementations must be safe for concurrent
// use.
//
// Load and Delete return ErrNotFound for unknown run IDs.
type Store interface {
	// SaveRun atomically writes run, replacing any run with the same ID.
	SaveRun(run *Run) error

	// LoadRun returns the run with the given ID.
	LoadRun(id string) (*Run, error)

	// ListRuns returns metadata for every stored run, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run and its trace.
	DeleteRun(id string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
