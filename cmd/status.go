package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/pigmentfit/internal/server"
	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for tuning job status.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimSuffix(serverURL, "/")
	if len(args) == 0 {
		return listJobs(base + "/api/v1/jobs")
	}
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", base, args[0]), args[0])
}

// getJSON decodes a 200 response from url into v.
func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Dataset: %s\n", job.Config.Dataset)
		if job.Config.Strategy != "" {
			fmt.Printf("  Strategy: %s\n", job.Config.Strategy)
		}
		fmt.Printf("  Evaluations: %d\n", job.Evaluations)
		if job.BestError > 0 {
			fmt.Printf("  Best error: %.4f\n", job.BestError)
		}
		fmt.Println()
	}
	return nil
}

func getJobStatus(url, jobID string) error {
	var status server.JobStatus
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	cfg := status.Config
	fmt.Println("Configuration:")
	fmt.Printf("  Dataset: %s\n", cfg.Dataset)
	if cfg.Strategy != "" {
		fmt.Printf("  Strategy: %s\n", cfg.Strategy)
	}
	if cfg.Backend != "" {
		fmt.Printf("  Backend: %s\n", cfg.Backend)
	}
	if cfg.MaxEvaluations > 0 {
		fmt.Printf("  Max evaluations: %d\n", cfg.MaxEvaluations)
	}
	if status.BatchSize > 0 {
		fmt.Printf("  Batch size: %d\n", status.BatchSize)
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Outer evaluations: %d (%d infeasible)\n", status.Evaluations, status.Infeasible)
	fmt.Printf("  Inner evaluations: %d\n", status.InnerEvaluations)
	if status.BestError > 0 {
		fmt.Printf("  Best error: %.4f\n", status.BestError)
	}
	fmt.Printf("  Elapsed: %s\n", time.Duration(status.Elapsed*float64(time.Second)).Round(time.Millisecond))
	if status.EvalsPerSecond > 0 {
		fmt.Printf("  Throughput: %.0f evaluations/sec\n", status.EvalsPerSecond)
	}

	if status.Result != nil {
		fmt.Println()
		fmt.Printf("Result (%s, mean error %.4f):\n", status.Result.Strategy, status.Result.MeanError)
		for _, p := range status.Result.Params {
			fmt.Printf("  %s = %v\n", p.Key, p.Value)
		}
	}
	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}
	return nil
}
