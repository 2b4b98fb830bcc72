package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

// ProbeChapterSource runs the configured Prober through an ExecRunner so the
// track builder only ever sees chapter records.
type ProbeChapterSource struct {
	Prober  Prober
	Runner  ExecRunner
	Timeout time.Duration
}

func (s *ProbeChapterSource) Chapters(ctx context.Context, path string) ([]tracks.ChapterRecord, error) {
	spec := s.Prober.ChaptersSpec(path, s.Timeout)
	result := s.Runner.Run(ctx, spec)
	if result.Interrupted {
		return nil, ErrInterrupted
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s", s.Prober.Binary(), result.ExitCode, lastLine(result.StderrTail))
	}
	return s.Prober.ParseChapters(result)
}
