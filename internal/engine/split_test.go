package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/segment"
)

type concurrencyRunner struct {
	mu      sync.Mutex
	active  int32
	peak    int32
	outputs []string
	failOn  string
}

func (r *concurrencyRunner) Run(ctx context.Context, spec ExecSpec) ExecResult {
	current := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		peak := atomic.LoadInt32(&r.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&r.peak, peak, current) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	output := spec.Args[len(spec.Args)-1]
	r.mu.Lock()
	r.outputs = append(r.outputs, output)
	r.mu.Unlock()

	if r.failOn != "" && strings.HasSuffix(output, r.failOn) {
		return ExecResult{ExitCode: 1, StderrTail: "Invalid data found when processing input\n"}
	}
	return ExecResult{Duration: time.Millisecond}
}

func splitJobs(dir string, count int) []segment.Job {
	jobs := make([]segment.Job, 0, count)
	for i := 1; i <= count; i++ {
		jobs = append(jobs, segment.Job{
			Ordinal: i,
			Start:   float64(i-1) * 10,
			End:     float64(i)*10 - 0.05,
			Source:  filepath.Join(dir, "abc.mp3"),
			Output:  segment.TrackPath(dir, "abc", i, ".mp3"),
		})
	}
	return jobs
}

func TestSplitExecutorRunsEveryJobWithinLimit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "abc")
	runner := &concurrencyRunner{}
	executor := &SplitExecutor{Runner: runner, Transcoder: fakeTranscoder{}, Threads: 2}

	results, err := executor.Execute(context.Background(), splitJobs(dir, 5))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, result := range results {
		if result.Job.Ordinal != i+1 {
			t.Fatalf("results must keep job order, got %+v", results)
		}
	}
	if peak := atomic.LoadInt32(&runner.peak); peak > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, got %d", peak)
	}
}

func TestSplitExecutorDefaultsToOneThread(t *testing.T) {
	runner := &concurrencyRunner{}
	executor := &SplitExecutor{Runner: runner, Transcoder: fakeTranscoder{}}

	if _, err := executor.Execute(context.Background(), splitJobs(t.TempDir(), 3)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if peak := atomic.LoadInt32(&runner.peak); peak != 1 {
		t.Fatalf("expected sequential jobs, got peak %d", peak)
	}
}

func TestSplitExecutorReportsFailingTrack(t *testing.T) {
	runner := &concurrencyRunner{failOn: "002-abc.mp3"}
	executor := &SplitExecutor{Runner: runner, Transcoder: fakeTranscoder{}, Threads: 1}

	_, err := executor.Execute(context.Background(), splitJobs(t.TempDir(), 3))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "split track 002") || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("unexpected error: %v", err)
	}
}
