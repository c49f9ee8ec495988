package store

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/cwbudde/pigmentfit/internal/hyper"
	"github.com/cwbudde/pigmentfit/internal/opt"
)

func TestTraceWriteAndRead(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	observe := tw.Observer()
	evals := []hyper.Evaluation{
		{Index: 0, X: []float64{0.3}, Params: opt.Params{{Key: "sigma", Value: 0.3}}, MeanError: 4.2, InnerEvaluations: 500, Feasible: true},
		{Index: 1, X: []float64{1.7}, MeanError: hyper.InfeasibleValue},
		{Index: 2, X: []float64{0.2}, Params: opt.Params{{Key: "sigma", Value: 0.2}}, MeanError: 3.9, InnerEvaluations: 480, Feasible: true},
	}
	for _, ev := range evals {
		if err := observe(ev); err != nil {
			t.Fatalf("Observer failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := LoadTrace(tempDir, "run-1")
	if err != nil {
		t.Fatalf("LoadTrace failed: %v", err)
	}
	if len(entries) != len(evals) {
		t.Fatalf("Expected %d entries, got %d", len(evals), len(entries))
	}
	for i, e := range entries {
		if e.Index != evals[i].Index || e.MeanError != evals[i].MeanError || e.Feasible != evals[i].Feasible {
			t.Errorf("Entry %d = %+v, want %+v", i, e, evals[i])
		}
		if e.Timestamp.IsZero() {
			t.Errorf("Entry %d has no timestamp", i)
		}
	}
	if entries[1].Params != nil {
		t.Errorf("Infeasible entry should carry no params, got %v", entries[1].Params)
	}
	if entries[2].Params.Float("sigma", 0) != 0.2 {
		t.Errorf("Params = %v", entries[2].Params)
	}
}

func TestTraceAppend(t *testing.T) {
	tempDir := t.TempDir()

	for round := 0; round < 2; round++ {
		tw, err := NewTraceWriter(tempDir, "run-1", round > 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := tw.Write(TraceEntry{Index: round}); err != nil {
			t.Fatal(err)
		}
		if err := tw.Flush(); err != nil {
			t.Fatal(err)
		}
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := LoadTrace(tempDir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Index != 1 {
		t.Errorf("Expected two appended entries, got %+v", entries)
	}

	// Without append the trace starts over.
	tw, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err = LoadTrace(tempDir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected truncated trace, got %d entries", len(entries))
	}
}

func TestTraceConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	tw, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatal(err)
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := tw.Write(TraceEntry{Index: w*perWriter + i, X: []float64{float64(i)}}); err != nil {
					t.Errorf("Write failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadTrace(tempDir, "run-1")
	if err != nil {
		t.Fatalf("Trace should contain only whole lines: %v", err)
	}
	if len(entries) != writers*perWriter {
		t.Errorf("Expected %d entries, got %d", writers*perWriter, len(entries))
	}
}

func TestTraceReaderErrors(t *testing.T) {
	tempDir := t.TempDir()

	if _, err := NewTraceReader(tempDir, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := NewTraceWriter(tempDir, "../escape", false); err == nil {
		t.Error("Expected error for invalid run ID")
	}

	tw, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	tr, err := NewTraceReader(tempDir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if _, err := tr.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF on empty trace, got %v", err)
	}
}
