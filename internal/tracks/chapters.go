package tracks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmassuchetto/beets-ydl/internal/text"
)

// ChapterSource returns the chapter markers embedded in a local media file.
// No chapters is a valid answer and must not be reported as an error.
type ChapterSource interface {
	Chapters(ctx context.Context, path string) ([]ChapterRecord, error)
}

// FromChapters turns probe records into tracks numbered 1..n in source
// order. Metadata keys and values are normalized; "title" becomes the track
// title and every other key is kept in Track.Tags.
func FromChapters(records []ChapterRecord) ([]Track, []Diagnostic) {
	result := []Track{}
	skipped := []Diagnostic{}
	for i, record := range records {
		if record.Start < 0 || record.End <= record.Start {
			skipped = append(skipped, Diagnostic{
				Err:     ErrInvalidBoundary,
				Message: fmt.Sprintf("skipping chapter %d: start %.2f, end %.2f", i+1, record.Start, record.End),
			})
			continue
		}

		track := Track{
			Ordinal: len(result) + 1,
			Start:   record.Start,
			End:     record.End,
		}
		for key, value := range record.Tags {
			normalizedKey := strings.ToLower(text.Normalize(key))
			if normalizedKey == "" {
				continue
			}
			if normalizedKey == "title" {
				track.Title = text.Normalize(value)
				continue
			}
			if track.Tags == nil {
				track.Tags = map[string]string{}
			}
			track.Tags[normalizedKey] = text.Normalize(value)
		}
		result = append(result, track)
	}
	return result, skipped
}

var (
	probeChapterHeader = regexp.MustCompile(`^\s*Chapter\s+#([0-9:]+).*?start\s+(-?[0-9.]+).*?end\s+(-?[0-9.]+)`)
	probeChapterToken  = regexp.MustCompile(`(?m)^\s*Chapter\s+#`)
	probeMetadataLine  = regexp.MustCompile(`^\s*Metadata:\s*$`)
	probeKeyValue      = regexp.MustCompile(`^\s*(\S+)\s*:\s?(.*)$`)
)

// ParseProbeText reads the chapter blocks of an ffprobe diagnostic dump:
//
//	Chapter #0:0: start 0.000000, end 120.000000
//	  Metadata:
//	    title           : Intro
func ParseProbeText(dump string) ([]ChapterRecord, error) {
	if !probeChapterToken.MatchString(dump) {
		return nil, nil
	}

	records := []ChapterRecord{}
	var current *ChapterRecord
	metadataIndent := -1

	flush := func() {
		if current != nil {
			records = append(records, *current)
		}
		current = nil
		metadataIndent = -1
	}

	scanner := bufio.NewScanner(strings.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if header := probeChapterHeader.FindStringSubmatch(line); header != nil {
			flush()
			record, err := chapterFromHeader(header)
			if err != nil {
				return nil, err
			}
			current = &record
			continue
		}
		if current == nil {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if metadataIndent < 0 {
			if probeMetadataLine.MatchString(line) {
				metadataIndent = indent
				continue
			}
			flush()
			continue
		}

		if indent <= metadataIndent {
			flush()
			continue
		}
		pair := probeKeyValue.FindStringSubmatch(line)
		if pair == nil {
			flush()
			continue
		}
		if current.Tags == nil {
			current.Tags = map[string]string{}
		}
		current.Tags[pair[1]] = strings.TrimSpace(pair[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProbeOutput, err)
	}
	flush()

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: chapter markers present but no chapter header could be parsed", ErrMalformedProbeOutput)
	}
	return records, nil
}

func chapterFromHeader(header []string) (ChapterRecord, error) {
	start, err := strconv.ParseFloat(header[2], 64)
	if err != nil {
		return ChapterRecord{}, fmt.Errorf("%w: chapter start %q: %v", ErrMalformedProbeOutput, header[2], err)
	}
	end, err := strconv.ParseFloat(header[3], 64)
	if err != nil {
		return ChapterRecord{}, fmt.Errorf("%w: chapter end %q: %v", ErrMalformedProbeOutput, header[3], err)
	}

	ordinal := 0
	id := header[1]
	if idx := strings.LastIndex(id, ":"); idx >= 0 {
		id = id[idx+1:]
	}
	if parsed, err := strconv.Atoi(id); err == nil {
		ordinal = parsed
	}

	return ChapterRecord{Ordinal: ordinal, Start: start, End: end}, nil
}

type probeJSONOutput struct {
	Chapters []probeJSONChapter `json:"chapters"`
}

type probeJSONChapter struct {
	ID        int               `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// ParseProbeJSON decodes `ffprobe -print_format json -show_chapters` output.
func ParseProbeJSON(payload []byte) ([]ChapterRecord, error) {
	if strings.TrimSpace(string(payload)) == "" {
		return nil, nil
	}

	var decoded probeJSONOutput
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProbeOutput, err)
	}

	records := make([]ChapterRecord, 0, len(decoded.Chapters))
	for _, chapter := range decoded.Chapters {
		start, err := strconv.ParseFloat(chapter.StartTime, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d start_time %q", ErrMalformedProbeOutput, chapter.ID, chapter.StartTime)
		}
		end, err := strconv.ParseFloat(chapter.EndTime, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d end_time %q", ErrMalformedProbeOutput, chapter.ID, chapter.EndTime)
		}
		records = append(records, ChapterRecord{
			Ordinal: chapter.ID,
			Start:   start,
			End:     end,
			Tags:    chapter.Tags,
		})
	}
	return records, nil
}
