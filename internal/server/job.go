package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Done reports whether the state is final.
func (s JobState) Done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig describes a tuning job. Zero fields fall back to the server's
// run configuration.
type JobConfig struct {
	// Dataset is the training file the batch is drawn from.
	Dataset        string            `json:"dataset"`
	Strategy       string            `json:"strategy,omitempty"`
	Params         opt.Params        `json:"params,omitempty"`
	Backend        string            `json:"backend,omitempty"`
	Samples        int               `json:"samples,omitempty"`
	MaxEvaluations int               `json:"maxEvaluations,omitempty"`
	Population     int               `json:"population,omitempty"`
	Seed           int64             `json:"seed,omitempty"`
	Parameters     []hyper.Parameter `json:"parameters,omitempty"`
}

// Job is a tuning job and its progress.
type Job struct {
	ID     string    `json:"id"`
	State  JobState  `json:"state"`
	Config JobConfig `json:"config"`

	// Progress of the outer search.
	Evaluations      int     `json:"evaluations"`
	InnerEvaluations int     `json:"innerEvaluations"`
	Infeasible       int     `json:"infeasible"`
	BestError        float64 `json:"bestError,omitempty"`
	BatchSize        int     `json:"batchSize,omitempty"`

	// Result is set once the search completes.
	Result *hyper.Sample `json:"result,omitempty"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`

	cancel context.CancelFunc
}

// Elapsed returns the job's run time so far.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs. Getters return copies, so
// callers never share a Job with the worker updating it.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job. cancel stops its search.
func (jm *JobManager) CreateJob(config JobConfig, cancel context.CancelFunc) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		cancel:    cancel,
	}
	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a copy of the job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns copies of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartTime.Before(jobs[k].StartTime) })
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	updateFn(job)
	return nil
}

// CancelJob asks a running job to stop after its current outer evaluation.
// It returns false for unknown or finished jobs.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	job, exists := jm.jobs[id]
	var cancel context.CancelFunc
	if exists && !job.State.Done() {
		cancel = job.cancel
	}
	jm.mu.RUnlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, *job)
		}
	}
	return running
}
