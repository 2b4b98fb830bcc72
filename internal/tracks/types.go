// Package tracks infers per-track boundaries inside a single media item.
//
// Boundaries come from embedded chapter markers first and from timestamps
// written in the item description second. The Builder merges the result with
// metadata derived from the item title and classifies the set as a singleton
// or an album.
package tracks

import (
	"errors"
	"fmt"
)

// GuardGap is subtracted from an inferred end so a track never runs into the
// first audible frame of the next one.
const GuardGap = 0.05

type Classification string

const (
	Singleton Classification = "singleton"
	Album     Classification = "album"
)

// MediaItem is the read-only description of one downloaded entry.
type MediaItem struct {
	ID          string
	Title       string `validate:"required"`
	Description string
	Duration    float64 `validate:"required,gt=0"`
	AudioPath   string
	WebpageURL  string
}

type Track struct {
	Ordinal int
	Start   float64
	End     float64
	Title   string
	Artist  string
	Album   string
	Year    string
	// Tags holds any extra normalized metadata reported by the media probe.
	Tags map[string]string
}

type TrackSet struct {
	Tracks         []Track
	Classification Classification
}

func (s TrackSet) IsAlbum() bool {
	return s.Classification == Album
}

func (s TrackSet) Empty() bool {
	return len(s.Tracks) == 0
}

type CommonMetadata struct {
	Artist string
	Album  string
	Year   string
}

// ChapterRecord is one chapter as reported by a media probe, before any
// normalization. Ordinal is whatever numbering the probe used.
type ChapterRecord struct {
	Ordinal int
	Start   float64
	End     float64
	Tags    map[string]string
}

var (
	// ErrExtractionEmpty means neither chapters nor the description produced a track.
	ErrExtractionEmpty = errors.New("no tracks found")
	// ErrInvalidBoundary marks a description candidate whose start exceeds its end.
	ErrInvalidBoundary = errors.New("invalid track boundary")
	// ErrMissingAudioFile means chapter extraction had no local file to probe.
	ErrMissingAudioFile = errors.New("audio file not found")
	// ErrMalformedProbeOutput means the probe output could not be parsed as chapters.
	ErrMalformedProbeOutput = errors.New("malformed probe output")
	// ErrInvalidMediaItem is the only hard failure: title or duration are missing.
	ErrInvalidMediaItem = errors.New("invalid media item")
)

// Diagnostic is a recovered extraction problem worth reporting.
type Diagnostic struct {
	Err     error
	Message string
}

func (d Diagnostic) Error() string {
	if d.Message == "" {
		return d.Err.Error()
	}
	return fmt.Sprintf("%s: %s", d.Err, d.Message)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}
