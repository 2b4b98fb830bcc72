package tracks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vmassuchetto/beets-ydl/internal/text"
)

type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyChapters    Strategy = "chapters"
	StrategyDescription Strategy = "description"
)

// Report describes how a TrackSet was obtained. Everything in Diagnostics
// was recovered locally and is only meant to be logged.
type Report struct {
	// WorkingTitle is the item title with album marker and leading year removed.
	WorkingTitle string
	AlbumMarker  bool
	Strategy     Strategy
	Common       CommonMetadata
	Diagnostics  []Diagnostic
}

// Skipped counts candidates dropped for having an invalid boundary.
func (r Report) Skipped() int {
	count := 0
	for _, diagnostic := range r.Diagnostics {
		if errors.Is(diagnostic, ErrInvalidBoundary) {
			count++
		}
	}
	return count
}

type Builder struct {
	Chapters ChapterSource
	Stat     func(string) (os.FileInfo, error)
	// Fold, when set, rewrites the title, the description and chapter tag
	// values before anything is normalized.
	Fold func(string) string

	validate *validator.Validate
}

func NewBuilder(chapters ChapterSource) *Builder {
	return &Builder{
		Chapters: chapters,
		Stat:     os.Stat,
		validate: validator.New(),
	}
}

// Build extracts the track set of item. An empty set is returned as is so
// callers can tell "nothing found" apart from a real single track; use
// Synthesize to turn it into a full-length track.
func (b *Builder) Build(ctx context.Context, item MediaItem) (TrackSet, Report, error) {
	if err := b.validateItem(item); err != nil {
		return TrackSet{}, Report{}, err
	}

	if b.Fold != nil {
		item.Title = b.Fold(item.Title)
		item.Description = b.Fold(item.Description)
	}

	report := Report{Strategy: StrategyNone}
	title, marker := text.StripAlbumMarker(item.Title)
	report.AlbumMarker = marker

	extracted := b.fromChapters(ctx, item, &report)
	if len(extracted) > 0 {
		report.Strategy = StrategyChapters
	} else {
		var skipped []Diagnostic
		extracted, skipped = FromDescription(item.Description, item.Duration)
		report.Diagnostics = append(report.Diagnostics, skipped...)
		if len(extracted) > 0 {
			report.Strategy = StrategyDescription
		}
	}

	if len(extracted) == 0 {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Err:     ErrExtractionEmpty,
			Message: "neither chapters nor description contain track times",
		})
	} else {
		for i := range extracted {
			extracted[i].Title = text.StripLeadingOrdinal(extracted[i].Title)
		}
	}

	report.WorkingTitle, report.Common = commonMetadata(title)
	mergeCommonMetadata(extracted, report.Common)

	return TrackSet{
		Tracks:         extracted,
		Classification: Classify(marker, len(extracted)),
	}, report, nil
}

func (b *Builder) validateItem(item MediaItem) error {
	v := b.validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(item); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Field(), fieldErr.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidMediaItem, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidMediaItem, err)
	}
	return nil
}

func (b *Builder) fromChapters(ctx context.Context, item MediaItem, report *Report) []Track {
	if !b.audioFileExists(item.AudioPath) {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Err:     ErrMissingAudioFile,
			Message: fmt.Sprintf("won't look for chapters in %q", item.AudioPath),
		})
		return nil
	}
	if b.Chapters == nil {
		return nil
	}

	records, err := b.Chapters.Chapters(ctx, item.AudioPath)
	if err != nil {
		diagnostic := Diagnostic{Err: ErrMalformedProbeOutput, Message: err.Error()}
		if errors.Is(err, ErrMalformedProbeOutput) {
			diagnostic.Message = ""
			diagnostic.Err = err
		}
		report.Diagnostics = append(report.Diagnostics, diagnostic)
		return nil
	}

	if b.Fold != nil {
		folded := make([]ChapterRecord, len(records))
		for i, record := range records {
			tags := make(map[string]string, len(record.Tags))
			for key, value := range record.Tags {
				tags[key] = b.Fold(value)
			}
			record.Tags = tags
			folded[i] = record
		}
		records = folded
	}

	extracted, skipped := FromChapters(records)
	report.Diagnostics = append(report.Diagnostics, skipped...)
	return extracted
}

func (b *Builder) audioFileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	stat := b.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	return err == nil && !info.IsDir()
}

func commonMetadata(title string) (string, CommonMetadata) {
	working, year, _ := text.ExtractYear(title)
	artist, album := text.ParseTitle(working)
	return working, CommonMetadata{Artist: artist, Album: album, Year: year}
}

// mergeCommonMetadata applies common to every track but the last one.
// The last track is left out on purpose to keep the historical tagging
// behaviour; see DESIGN.md before changing it.
func mergeCommonMetadata(set []Track, common CommonMetadata) {
	for i := 0; i < len(set)-1; i++ {
		set[i].Artist = common.Artist
		set[i].Album = common.Album
		if common.Year != "" {
			set[i].Year = common.Year
		}
	}
}

// Classify reports an album when the title carried an album marker or more
// than one track was found.
func Classify(albumMarker bool, trackCount int) Classification {
	if albumMarker || trackCount > 1 {
		return Album
	}
	return Singleton
}

// Synthesize returns set unchanged unless it is empty, in which case it gets a
// single track spanning the whole item.
func Synthesize(set TrackSet, item MediaItem, report Report) TrackSet {
	if !set.Empty() {
		return set
	}
	return TrackSet{
		Tracks: []Track{{
			Ordinal: 1,
			Start:   0,
			End:     item.Duration,
			Title:   report.Common.Album,
			Artist:  report.Common.Artist,
			Album:   report.Common.Album,
			Year:    report.Common.Year,
		}},
		Classification: Classify(report.AlbumMarker, 1),
	}
}
