// Package segment turns a finalized track set into work for the transcoder:
// one extraction job per track for albums, or a single in-place tag plan for
// singletons.
package segment

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vmassuchetto/beets-ydl/internal/text"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

var (
	ErrEmptyTrackSet = errors.New("track set is empty")
	ErrInvalidTarget = errors.New("invalid segmentation target")
)

// Job extracts [Start, End) of Source into Output and tags it.
type Job struct {
	Ordinal int
	Start   float64
	End     float64
	Source  string
	Output  string
	Tags    map[string]string
}

// TagPlan rewrites the tags of Source in place. Start and End describe the
// span the tags refer to; nothing is cut.
type TagPlan struct {
	Source string
	Start  float64
	End    float64
	Tags   map[string]string
}

type Plan struct {
	Classification tracks.Classification
	Jobs           []Job
	TagPlan        *TagPlan
}

// Split reports whether the plan produces new files.
func (p Plan) Split() bool {
	return len(p.Jobs) > 0
}

// Target is everything the planner needs to know about the physical file.
type Target struct {
	ID        string
	Source    string
	OutputDir string
	Duration  float64
	// WorkingTitle is the item title after album marker and year removal.
	WorkingTitle string
	Year         string
}

type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

func (p *Planner) Plan(set tracks.TrackSet, target Target) (Plan, error) {
	if strings.TrimSpace(target.Source) == "" {
		return Plan{}, fmt.Errorf("%w: source path is empty", ErrInvalidTarget)
	}
	if set.Empty() {
		return Plan{}, ErrEmptyTrackSet
	}
	if set.IsAlbum() {
		return p.planAlbum(set, target)
	}
	return p.planSingleton(set, target)
}

func (p *Planner) planSingleton(set tracks.TrackSet, target Target) (Plan, error) {
	end := target.Duration - tracks.GuardGap
	if end <= 0 {
		return Plan{}, fmt.Errorf("%w: duration %.2f is too short", ErrInvalidTarget, target.Duration)
	}

	artist, title := text.ParseTitle(target.WorkingTitle)
	tags := map[string]string{
		"artist": artist,
		"title":  title,
	}
	if target.Year != "" {
		tags["year"] = target.Year
	}

	return Plan{
		Classification: set.Classification,
		TagPlan: &TagPlan{
			Source: target.Source,
			Start:  0,
			End:    end,
			Tags:   tags,
		},
	}, nil
}

func (p *Planner) planAlbum(set tracks.TrackSet, target Target) (Plan, error) {
	if strings.TrimSpace(target.OutputDir) == "" {
		return Plan{}, fmt.Errorf("%w: output directory is empty", ErrInvalidTarget)
	}

	ext := filepath.Ext(target.Source)
	jobs := make([]Job, 0, len(set.Tracks))
	for _, track := range set.Tracks {
		jobs = append(jobs, Job{
			Ordinal: track.Ordinal,
			Start:   track.Start,
			End:     track.End,
			Source:  target.Source,
			Output:  TrackPath(target.OutputDir, target.ID, track.Ordinal, ext),
			Tags:    trackTags(track),
		})
	}

	return Plan{Classification: set.Classification, Jobs: jobs}, nil
}

// TrackPath names the file of one album track: <dir>/<NNN>-<id><ext>.
func TrackPath(dir, id string, ordinal int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%03d-%s%s", ordinal, id, ext))
}

// trackTags converts every field of track into a tag. Probe tags go in first
// so the known fields win on key collisions; empty values are left out.
func trackTags(track tracks.Track) map[string]string {
	tags := make(map[string]string, len(track.Tags)+7)
	for key, value := range track.Tags {
		if value != "" {
			tags[key] = value
		}
	}

	tags["track"] = strconv.Itoa(track.Ordinal)
	tags["start"] = formatSeconds(track.Start)
	tags["end"] = formatSeconds(track.End)
	for key, value := range map[string]string{
		"title":  track.Title,
		"artist": track.Artist,
		"album":  track.Album,
		"year":   track.Year,
	} {
		if value != "" {
			tags[key] = value
		}
	}
	return tags
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SortedTagKeys returns the keys of tags in a stable order so rendered
// commands are reproducible.
func SortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tracklist renders the plan one line per track. Albums get a 3-digit
// ordinal prefix.
func (p Plan) Tracklist() []string {
	if p.TagPlan != nil {
		return []string{fmt.Sprintf("%s (%s - %s)",
			p.TagPlan.Tags["title"],
			text.FormatHMS(p.TagPlan.Start),
			text.FormatHMS(p.TagPlan.End),
		)}
	}

	lines := make([]string, 0, len(p.Jobs))
	for _, job := range p.Jobs {
		lines = append(lines, fmt.Sprintf("%03d: %s (%s - %s)",
			job.Ordinal,
			job.Tags["title"],
			text.FormatHMS(job.Start),
			text.FormatHMS(job.End),
		))
	}
	return lines
}
