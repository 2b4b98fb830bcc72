package engine

import (
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/segment"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

type ExecSpec struct {
	Bin            string
	Args           []string
	Dir            string
	Timeout        time.Duration
	DisplayCommand string
	// CaptureStdout keeps the whole stdout in ExecResult.Stdout instead of
	// streaming it to the runner's writer.
	CaptureStdout bool
	// CaptureStderr keeps the whole stderr in ExecResult.Stderr. StderrTail
	// is still filled and echoing still follows Quiet.
	CaptureStderr bool
	// Quiet keeps stderr out of the runner's writer; the tail is still kept.
	Quiet bool
}

type ExecResult struct {
	ExitCode    int
	Duration    time.Duration
	Interrupted bool
	TimedOut    bool
	Stdout      []byte
	StdoutTail  string
	Stderr      []byte
	StderrTail  string
	Err         error
}

// Downloader resolves URLs into media items and fetches their audio.
type Downloader interface {
	Binary() string
	MinVersion() string
	InfoSpec(url string, timeout time.Duration) (ExecSpec, error)
	ParseInfo(payload []byte) ([]tracks.MediaItem, error)
	DownloadSpec(req DownloadRequest, timeout time.Duration) (ExecSpec, error)
}

type DownloadRequest struct {
	URL          string
	ItemDir      string
	AudioFormat  string
	AudioQuality string
	KeepVideo    bool
}

// Prober reads chapter markers from a local media file.
type Prober interface {
	Binary() string
	MinVersion() string
	ChaptersSpec(path string, timeout time.Duration) ExecSpec
	ParseChapters(result ExecResult) ([]tracks.ChapterRecord, error)
}

// Transcoder builds the commands that materialize a segment.Plan.
type Transcoder interface {
	Binary() string
	MinVersion() string
	SegmentSpec(job segment.Job, timeout time.Duration) (ExecSpec, error)
	TagSpec(plan segment.TagPlan, output string, timeout time.Duration) (ExecSpec, error)
	SilenceSpec(output string, seconds float64, timeout time.Duration) (ExecSpec, error)
}

// Importer hands finished files to the music library.
type Importer interface {
	Binary() string
	MinVersion() string
	ImportSpec(req ImportRequest, timeout time.Duration) (ExecSpec, error)
	LookupSpec(id string, albums bool, timeout time.Duration) (ExecSpec, error)
}

type ImportRequest struct {
	ID        string
	Path      string
	Singleton bool
	Verbose   bool
}

// TagWriter writes tags straight into an audio file without re-encoding.
type TagWriter interface {
	Supports(path string) bool
	WriteTags(path string, tags map[string]string) error
}

type Toolchain struct {
	Downloader Downloader
	// Chapters reads chapter markers in process. When nil, Prober is run
	// through the runner instead.
	Chapters   tracks.ChapterSource
	Prober     Prober
	Transcoder Transcoder
	Importer   Importer
	Tagger     TagWriter
}

type ProcessOptions struct {
	URLs            []string
	DryRun          bool
	TimeoutOverride time.Duration
}

type ProcessResult struct {
	URLs        int
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	Albums      int
	Singletons  int
	Interrupted bool
}

// ProcessingContext is the state of one media item. A fresh value is built
// for every item and dropped once the item is finished.
type ProcessingContext struct {
	ID        string
	RunID     string
	SourceURL string
	Item      tracks.MediaItem
	ItemDir   string
	TrackSet  tracks.TrackSet
	Report    tracks.Report
	Plan      segment.Plan
}

func (p *ProcessingContext) Singleton() bool {
	return !p.TrackSet.IsAlbum()
}
