// Package server exposes colour prediction and background tuning jobs over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/pigmentfit/internal/colorspace"
	"github.com/cwbudde/pigmentfit/internal/config"
	"github.com/cwbudde/pigmentfit/internal/opt"
	"github.com/cwbudde/pigmentfit/internal/pigment"
	"github.com/cwbudde/pigmentfit/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	config     *config.Config
	runs       *store.FSStore
	addr       string
	server     *http.Server

	// jobs is cancelled on Shutdown and parents every job context.
	jobs       context.Context
	cancelJobs context.CancelFunc
}

// NewServer creates a server using cfg for predictions and as the base of
// every job. runs may be nil, in which case finished jobs are not persisted.
func NewServer(addr string, cfg *config.Config, runs *store.FSStore) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		config:     cfg,
		runs:       runs,
		addr:       addr,
		jobs:       ctx,
		cancelJobs: cancel,
	}
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/predict", s.handlePredict)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunWithID)
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.cancelJobs()
	for _, job := range s.jobManager.ListJobs() {
		s.jobManager.broadcaster.CleanupJob(job.ID)
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// PredictRequest asks for the mix matching one colour. Exactly one of Hex
// and Lab is given.
type PredictRequest struct {
	Hex      string     `json:"hex,omitempty"`
	Lab      []float64  `json:"lab,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
	Params   opt.Params `json:"params,omitempty"`
}

// PredictResponse is the predicted mix.
type PredictResponse struct {
	Target      colorspace.Lab `json:"target"`
	Weights     []float64      `json:"weights"`
	Percentages []string       `json:"percentages"`
	Recipe      []string       `json:"recipe"`
	Mixed       colorspace.Lab `json:"mixed"`
	MixedHex    string         `json:"mixedHex"`
	Error       float64        `json:"error"`
	Evaluations int            `json:"evaluations"`
	Algorithm   string         `json:"algorithm"`
	Degraded    bool           `json:"degraded"`
	RuntimeMs   int64          `json:"runtimeMs"`
}

func (req PredictRequest) target() (colorspace.Lab, error) {
	switch {
	case req.Hex != "" && req.Lab != nil:
		return colorspace.Lab{}, errors.New("give either hex or lab, not both")
	case req.Hex != "":
		return colorspace.FromHex(req.Hex)
	case len(req.Lab) == 3:
		return colorspace.Lab{L: req.Lab[0], A: req.Lab[1], B: req.Lab[2]}, nil
	case req.Lab != nil:
		return colorspace.Lab{}, fmt.Errorf("lab needs 3 components, got %d", len(req.Lab))
	}
	return colorspace.Lab{}, errors.New("hex or lab is required")
}

// handlePredict handles POST /api/v1/predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	target, err := req.target()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := *s.config
	if req.Strategy != "" {
		cfg.Strategy = config.StrategyConfig{Name: req.Strategy, Params: req.Params}
	} else if req.Params != nil {
		cfg.Strategy.Params = req.Params
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	pred, err := pipeline.Predict(target)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	palette := pipeline.Palette()
	recipe, err := pigment.NewRecipe(pred.Weights, palette, pigment.DefaultSignificance)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		Target:      target,
		Weights:     pred.Weights,
		Percentages: pigment.FormatPercentages(pred.Weights),
		Recipe:      recipe.Lines(),
		Mixed:       pred.Mixed,
		MixedHex:    pred.Mixed.Hex(),
		Error:       pred.Error,
		Evaluations: pred.Evaluations,
		Algorithm:   pred.Algorithm,
		Degraded:    pred.Degraded,
		RuntimeMs:   pred.Runtime.Milliseconds(),
	})
}

// statusOf maps configuration errors to 400 and everything else to 500.
func statusOf(err error) int {
	for _, target := range []error{
		opt.ErrInvalidConfig, opt.ErrUnknownStrategy,
		colorspace.ErrInvalidHex, colorspace.ErrUnknownMetric,
		pigment.ErrSizeMismatch, pigment.ErrUnknownMixer,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1 || parts[1] == "status":
		if r.Method == http.MethodDelete {
			s.handleCancelJob(w, jobID)
			return
		}
		s.handleGetJobStatus(w, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "cancel" && r.Method == http.MethodPost:
		s.handleCancelJob(w, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var jc JobConfig
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jc); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if jc.Dataset == "" {
		http.Error(w, "dataset is required", http.StatusBadRequest)
		return
	}
	if _, err := jobRunConfig(s.config, jc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(s.jobs)
	job := s.jobManager.CreateJob(jc, cancel)
	go func() {
		defer cancel()
		runJob(ctx, s.jobManager, s.config, s.runs, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// JobStatus is the status view of a job.
type JobStatus struct {
	Job
	Elapsed float64 `json:"elapsed"`
	// EvalsPerSecond counts inner evaluations.
	EvalsPerSecond float64 `json:"evalsPerSecond"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	elapsed := job.Elapsed().Seconds()
	status := JobStatus{Job: job, Elapsed: elapsed}
	if elapsed > 0 {
		status.EvalsPerSecond = float64(job.InnerEvaluations) / elapsed
	}
	writeJSON(w, http.StatusOK, status)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id and POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []store.RunInfo{})
		return
	}
	infos, err := s.runs.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleRunWithID handles GET /api/v1/runs/:id and /api/v1/runs/:id/trace
func (s *Server) handleRunWithID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")

	var (
		body any
		err  error
	)
	switch {
	case len(parts) == 1:
		body, err = s.runs.LoadRun(parts[0])
	case len(parts) == 2 && parts[1] == "trace":
		body, err = store.LoadTrace(s.runs.BaseDir(), parts[0])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
