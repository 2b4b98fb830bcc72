package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmassuchetto/beets-ydl/internal/segment"
)

// SplitExecutor runs segment jobs through the transcoder. Jobs write
// disjoint files and only read the shared source, so they run in parallel up
// to Threads at a time.
type SplitExecutor struct {
	Runner     ExecRunner
	Transcoder Transcoder
	Threads    int
	Timeout    time.Duration
}

type JobResult struct {
	Job      segment.Job
	Duration time.Duration
}

func (e *SplitExecutor) Execute(ctx context.Context, jobs []segment.Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	limit := e.Threads
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
				return fmt.Errorf("create output directory for track %03d: %w", job.Ordinal, err)
			}

			spec, err := e.Transcoder.SegmentSpec(job, e.Timeout)
			if err != nil {
				return fmt.Errorf("build split command for track %03d: %w", job.Ordinal, err)
			}

			result := e.Runner.Run(gctx, spec)
			if result.Interrupted {
				return ErrInterrupted
			}
			if result.ExitCode != 0 {
				if result.TimedOut {
					return fmt.Errorf("split track %03d timed out after %s", job.Ordinal, e.Timeout)
				}
				return fmt.Errorf("split track %03d: %s exited with code %d: %s", job.Ordinal, e.Transcoder.Binary(), result.ExitCode, lastLine(result.StderrTail))
			}

			results[i] = JobResult{Job: job, Duration: result.Duration}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
