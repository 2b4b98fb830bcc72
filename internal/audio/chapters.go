package audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/simonhull/audiometa"

	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

// Chapter is one embedded chapter marker as read from the container.
type Chapter struct {
	Index int
	Title string
	Start time.Duration
	End   time.Duration
}

// ChapterList holds the chapters of a file and the file's duration, used to
// close a last chapter that has no end.
type ChapterList struct {
	Chapters []Chapter
	Duration time.Duration
}

// ChapterReader reads chapter markers in process, without running ffprobe.
// It understands the containers audiometa parses (mp3 CHAP frames, m4a/m4b
// chapter tracks, FLAC cue sheets and Vorbis CHAPTER comments).
type ChapterReader struct {
	Load func(ctx context.Context, path string) (ChapterList, error)
}

func NewChapterReader() *ChapterReader {
	return &ChapterReader{Load: loadChapters}
}

func loadChapters(ctx context.Context, path string) (ChapterList, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return ChapterList{}, err
	}
	defer file.Close()

	list := ChapterList{Duration: file.Audio.Duration}
	for _, chapter := range file.Chapters {
		list.Chapters = append(list.Chapters, Chapter{
			Index: chapter.Index,
			Title: chapter.Title,
			Start: chapter.StartTime,
			End:   chapter.EndTime,
		})
	}
	return list, nil
}

// Chapters implements tracks.ChapterSource.
func (r *ChapterReader) Chapters(ctx context.Context, path string) ([]tracks.ChapterRecord, error) {
	load := r.Load
	if load == nil {
		load = loadChapters
	}

	list, err := load(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read chapters of %s: %v", tracks.ErrMalformedProbeOutput, filepath.Base(path), err)
	}

	records := make([]tracks.ChapterRecord, 0, len(list.Chapters))
	for i, chapter := range list.Chapters {
		end := chapter.End
		if end <= chapter.Start {
			switch {
			case i+1 < len(list.Chapters):
				end = list.Chapters[i+1].Start
			case list.Duration > 0:
				end = list.Duration
			}
		}

		record := tracks.ChapterRecord{
			Ordinal: chapter.Index,
			Start:   chapter.Start.Seconds(),
			End:     end.Seconds(),
			Tags:    map[string]string{},
		}
		if chapter.Title != "" {
			record.Tags["title"] = chapter.Title
		}
		records = append(records, record)
	}
	return records, nil
}
