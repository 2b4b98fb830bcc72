package tracks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vmassuchetto/beets-ydl/internal/text"
)

// A timestamp may sit anywhere on the line; the first one wins.
var timestampLine = regexp.MustCompile(`(?m)^(.*?)([0-9]?[0-9]?:?[0-5]?[0-9]:[0-5][0-9])(.*)$`)

type descriptionCandidate struct {
	start float64
	title string
}

// FromDescription infers tracks from clock times written in free text.
//
// Each candidate ends GuardGap before the next one starts and the last one
// ends at duration. No end ever goes past duration. Candidates that would
// end before they start are dropped and returned as diagnostics, overlaps
// left behind by a drop are trimmed, and survivors are renumbered from 1.
func FromDescription(description string, duration float64) ([]Track, []Diagnostic) {
	candidates := scanDescription(description)

	result := []Track{}
	skipped := []Diagnostic{}
	for i, candidate := range candidates {
		end := duration
		if i < len(candidates)-1 {
			end = min(candidates[i+1].start-GuardGap, duration)
		}

		if candidate.start > end {
			skipped = append(skipped, Diagnostic{
				Err:     ErrInvalidBoundary,
				Message: fmt.Sprintf("skipping candidate %d %q: start %.2f is after end %.2f", i+1, candidate.title, candidate.start, end),
			})
			continue
		}

		result = append(result, Track{
			Start: candidate.start,
			End:   end,
			Title: candidate.title,
		})
	}

	result, trimmed := resolveOverlaps(result)
	skipped = append(skipped, trimmed...)
	for i := range result {
		result[i].Ordinal = i + 1
	}
	return result, skipped
}

// resolveOverlaps trims every track that runs past the start of its
// successor. Dropping a candidate above can leave its neighbours computed
// against a timestamp that no longer exists, so this repeats until stable.
// Tracks trimmed to nothing are dropped.
func resolveOverlaps(set []Track) ([]Track, []Diagnostic) {
	dropped := []Diagnostic{}
	for {
		changed := false
		kept := make([]Track, 0, len(set))
		for i, track := range set {
			if i+1 < len(set) && track.End > set[i+1].Start {
				track.End = set[i+1].Start - GuardGap
				changed = true
			}
			if track.End <= track.Start {
				dropped = append(dropped, Diagnostic{
					Err:     ErrInvalidBoundary,
					Message: fmt.Sprintf("dropping %q: overlaps the following track", track.Title),
				})
				changed = true
				continue
			}
			kept = append(kept, track)
		}
		set = kept
		if !changed {
			return set, dropped
		}
	}
}

func scanDescription(description string) []descriptionCandidate {
	matches := timestampLine.FindAllStringSubmatch(description, -1)
	candidates := make([]descriptionCandidate, 0, len(matches))
	for _, match := range matches {
		seconds, err := text.ToSeconds(strings.TrimLeft(match[2], ":"))
		if err != nil {
			continue
		}
		candidates = append(candidates, descriptionCandidate{
			start: float64(seconds),
			title: text.Normalize(match[1] + " " + match[3]),
		})
	}
	return candidates
}
