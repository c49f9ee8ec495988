package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/pigmentfit/internal/store"
)

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// waitForJob polls until the job reaches a final state.
func waitForJob(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.jobManager.GetJob(id)
		if !ok {
			t.Fatalf("Job %s disappeared", id)
		}
		if job.State.Done() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return Job{}
}

func TestServer_Predict(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/predict", PredictRequest{Hex: "#FFF44F", Strategy: "CMA-ES"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp PredictResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Weights) != 3 || len(resp.Percentages) != 3 {
		t.Fatalf("Expected one weight per pigment, got %v", resp.Weights)
	}
	if resp.Error > 5 {
		t.Errorf("A palette colour should be matched closely, error %f", resp.Error)
	}
	if resp.Weights[1] < 0.5 {
		t.Errorf("Yellow should dominate, got %v", resp.Weights)
	}
	if len(resp.Recipe) == 0 || !strings.HasPrefix(resp.MixedHex, "#") {
		t.Errorf("Recipe %v, hex %q", resp.Recipe, resp.MixedHex)
	}
	if resp.Evaluations == 0 || resp.Algorithm == "" {
		t.Errorf("Missing run metadata: %+v", resp)
	}
}

func TestServer_PredictWithLabAndStrategy(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)

	w := do(t, s.Handler(), http.MethodPost, "/api/v1/predict",
		`{"lab": [50, 10, -20], "strategy": "Nelder-Mead", "params": {"maxEvaluations": 200}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PredictResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Algorithm != "Nelder-Mead" {
		t.Errorf("Algorithm = %q, want Nelder-Mead", resp.Algorithm)
	}
	if resp.Evaluations > 200 {
		t.Errorf("Evaluations %d exceed the requested budget", resp.Evaluations)
	}
}

func TestServer_PredictRejectsBadInput(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	h := s.Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"no colour", `{}`, http.StatusBadRequest},
		{"both colours", `{"hex": "#000000", "lab": [0, 0, 0]}`, http.StatusBadRequest},
		{"short lab", `{"lab": [50, 0]}`, http.StatusBadRequest},
		{"bad hex", `{"hex": "#12"}`, http.StatusBadRequest},
		{"unknown strategy", `{"hex": "#000000", "strategy": "Powell"}`, http.StatusBadRequest},
		{"invalid params", `{"hex": "#000000", "strategy": "Mayfly", "params": {"population": 2}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/predict", tt.body)
			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}

	if w := do(t, h, http.MethodGet, "/api/v1/predict", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestServer_CreateJobRunsToCompletion(t *testing.T) {
	cfg := testConfig(t)
	path := writeTrainingFile(t, cfg)
	runs, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":0", cfg, runs)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/jobs", JobConfig{Dataset: path})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}

	final := waitForJob(t, s, job.ID)
	if final.State != StateCompleted {
		t.Fatalf("Job should complete, got %s (%s)", final.State, final.Error)
	}

	w = do(t, h, http.MethodGet, "/api/v1/jobs/"+job.ID+"/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var status JobStatus
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Result == nil || status.Elapsed <= 0 {
		t.Errorf("Unexpected status %+v", status)
	}

	w = do(t, h, http.MethodGet, "/api/v1/jobs", nil)
	var jobs []Job
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs", nil)
	var infos []store.RunInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != job.ID {
		t.Errorf("Expected the finished job as a run, got %+v", infos)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+job.ID+"/trace", nil)
	var trace []store.TraceEntry
	if err := json.NewDecoder(w.Body).Decode(&trace); err != nil {
		t.Fatal(err)
	}
	if len(trace) != final.Evaluations {
		t.Errorf("Trace has %d entries, want %d", len(trace), final.Evaluations)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", nil); w.Code != http.StatusConflict {
		t.Errorf("Cancelling a finished job: expected 409, got %d", w.Code)
	}
}

func TestServer_CreateJobValidation(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing dataset", `{"strategy": "CMA-ES"}`},
		{"unknown field", `{"dataset": "a.csv", "refPath": "x.png"}`},
		{"unknown backend", `{"dataset": "a.csv", "backend": "Annealing"}`},
		{"unknown strategy", `{"dataset": "a.csv", "strategy": "BOBYQA"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/jobs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if n := len(s.jobManager.ListJobs()); n != 0 {
		t.Errorf("Rejected requests must not create jobs, got %d", n)
	}
}

func TestServer_JobNotFound(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	h := s.Handler()

	for _, path := range []string{"/api/v1/jobs/missing", "/api/v1/jobs/missing/status", "/api/v1/jobs/missing/stream", "/api/v1/runs/missing"} {
		if w := do(t, h, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, w.Code)
		}
	}
	if w := do(t, h, http.MethodDelete, "/api/v1/jobs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("DELETE: expected 404, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/jobs/", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Missing ID: expected 400, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/api/v1/jobs", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: expected 405, got %d", w.Code)
	}
}

func TestServer_StreamFinishedJob(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	job := s.jobManager.CreateJob(JobConfig{Dataset: "a.csv"}, nil)
	s.jobManager.UpdateJob(job.ID, func(j *Job) {
		j.State = StateCompleted
		j.Evaluations = 12
	})

	w := do(t, s.Handler(), http.MethodGet, "/api/v1/jobs/"+job.ID+"/stream", nil)
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(w.Body)
	var events []ProgressEvent
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				t.Fatal(err)
			}
			events = append(events, ev)
		}
	}
	if len(events) != 1 || events[0].Evaluations != 12 || events[0].State != StateCompleted {
		t.Errorf("Expected a single final event, got %+v", events)
	}
}

func TestServer_StreamFollowsProgress(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	job := s.jobManager.CreateJob(JobConfig{Dataset: "a.csv"}, nil)
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.State = StateRunning })

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/jobs/"+job.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	next := func() ProgressEvent {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("Stream ended early: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var ev ProgressEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					t.Fatal(err)
				}
				return ev
			}
		}
	}

	if ev := next(); ev.State != StateRunning {
		t.Fatalf("First event should be the current state, got %+v", ev)
	}

	// The subscription is registered after the first event is flushed.
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.jobManager.broadcaster.mu.Lock()
		subscribed := len(s.jobManager.broadcaster.clients[job.ID]) > 0
		s.jobManager.broadcaster.mu.Unlock()
		if subscribed || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.jobManager.broadcaster.Broadcast(ProgressEvent{JobID: job.ID, State: StateRunning, Evaluations: 3, LastError: 2.5, Feasible: true})
	if ev := next(); ev.Evaluations != 3 || ev.LastError != 2.5 {
		t.Errorf("Unexpected progress event %+v", ev)
	}

	s.jobManager.broadcaster.Broadcast(ProgressEvent{JobID: job.ID, State: StateCompleted, Evaluations: 4})
	if ev := next(); ev.State != StateCompleted {
		t.Errorf("Expected the final event, got %+v", ev)
	}
}

func TestServer_CORS(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	w := do(t, s.Handler(), http.MethodOptions, "/api/v1/jobs", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestServer_ShutdownCancelsJobs(t *testing.T) {
	s := NewServer(":0", testConfig(t), nil)
	ctx, cancel := context.WithCancel(s.jobs)
	defer cancel()
	s.jobManager.CreateJob(JobConfig{Dataset: "a.csv"}, cancel)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() == nil {
		t.Error("Shutdown should cancel job contexts")
	}
}
