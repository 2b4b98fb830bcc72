package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/output"
	"github.com/vmassuchetto/beets-ydl/internal/segment"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

type fakeDownloader struct {
	items []tracks.MediaItem
}

func (fakeDownloader) Binary() string     { return "yt-dlp" }
func (fakeDownloader) MinVersion() string { return "2023.03.04" }

func (fakeDownloader) InfoSpec(url string, timeout time.Duration) (ExecSpec, error) {
	return ExecSpec{Bin: "yt-dlp", Args: []string{"info", url}, Timeout: timeout, CaptureStdout: true}, nil
}

func (d fakeDownloader) ParseInfo(payload []byte) ([]tracks.MediaItem, error) {
	if len(payload) > 0 {
		var items []tracks.MediaItem
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return d.items, nil
}

func (fakeDownloader) DownloadSpec(req DownloadRequest, timeout time.Duration) (ExecSpec, error) {
	return ExecSpec{
		Bin:            "yt-dlp",
		Args:           []string{"download", req.ItemDir, req.URL},
		Timeout:        timeout,
		DisplayCommand: "yt-dlp download " + req.URL,
	}, nil
}

type fakeProber struct{}

func (fakeProber) Binary() string     { return "ffprobe" }
func (fakeProber) MinVersion() string { return "4.0" }

func (fakeProber) ChaptersSpec(path string, timeout time.Duration) ExecSpec {
	return ExecSpec{Bin: "ffprobe", Args: []string{"chapters", path}, CaptureStdout: true}
}

func (fakeProber) ParseChapters(result ExecResult) ([]tracks.ChapterRecord, error) {
	return tracks.ParseProbeJSON(result.Stdout)
}

type fakeTranscoder struct{}

func (fakeTranscoder) Binary() string     { return "ffmpeg" }
func (fakeTranscoder) MinVersion() string { return "4.0" }

func (fakeTranscoder) SegmentSpec(job segment.Job, timeout time.Duration) (ExecSpec, error) {
	return ExecSpec{Bin: "ffmpeg", Args: []string{"segment", job.Output}, DisplayCommand: "ffmpeg segment " + job.Output}, nil
}

func (fakeTranscoder) TagSpec(plan segment.TagPlan, out string, timeout time.Duration) (ExecSpec, error) {
	return ExecSpec{Bin: "ffmpeg", Args: []string{"tag", out}, DisplayCommand: "ffmpeg tag " + out}, nil
}

func (fakeTranscoder) SilenceSpec(out string, seconds float64, timeout time.Duration) (ExecSpec, error) {
	return ExecSpec{Bin: "ffmpeg", Args: []string{"silence", out}, DisplayCommand: "ffmpeg silence " + out}, nil
}

type fakeImporter struct{}

func (fakeImporter) Binary() string     { return "beet" }
func (fakeImporter) MinVersion() string { return "1.6.0" }

func (fakeImporter) ImportSpec(req ImportRequest, timeout time.Duration) (ExecSpec, error) {
	args := []string{"import", req.Path}
	if req.Singleton {
		args = append(args, "--singletons")
	}
	return ExecSpec{Bin: "beet", Args: args, DisplayCommand: "beet " + strings.Join(args, " ")}, nil
}

func (fakeImporter) LookupSpec(id string, albums bool, timeout time.Duration) (ExecSpec, error) {
	args := []string{"ls", id}
	if albums {
		args = []string{"ls", "-a", id}
	}
	return ExecSpec{Bin: "beet", Args: args, CaptureStdout: true}, nil
}

type fakeTagger struct {
	mu     sync.Mutex
	writes map[string]map[string]string
}

func (t *fakeTagger) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

func (t *fakeTagger) WriteTags(path string, tags map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writes == nil {
		t.writes = map[string]map[string]string{}
	}
	t.writes[path] = tags
	return nil
}

// scriptedRunner answers every command by its binary and first argument and
// mimics the side effects of the real tools on disk.
type scriptedRunner struct {
	mu        sync.Mutex
	specs     []ExecSpec
	info      []byte
	chapters  []byte
	inLibrary bool
	failOn    string
	interrupt string
	noAudio   bool
}

func (r *scriptedRunner) Run(ctx context.Context, spec ExecSpec) ExecResult {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	key := spec.Bin
	if len(spec.Args) > 0 {
		key += " " + spec.Args[0]
	}
	if r.interrupt == key {
		return ExecResult{ExitCode: 130, Interrupted: true}
	}
	if r.failOn == key {
		return ExecResult{ExitCode: 1, StderrTail: "ERROR: " + key + " failed\n"}
	}

	switch key {
	case "yt-dlp info":
		return ExecResult{Stdout: r.info}
	case "yt-dlp download":
		if !r.noAudio {
			dir := spec.Args[1]
			_ = os.MkdirAll(dir, 0o755)
			_ = os.WriteFile(filepath.Join(dir, filepath.Base(dir)+".mp3"), []byte("audio"), 0o644)
		}
	case "ffprobe chapters":
		if r.chapters == nil {
			return ExecResult{ExitCode: 1, StderrTail: "no chapters"}
		}
		return ExecResult{Stdout: r.chapters}
	case "ffmpeg segment", "ffmpeg tag", "ffmpeg silence":
		_ = os.WriteFile(spec.Args[1], []byte("segment"), 0o644)
	case "beet ls":
		if r.inLibrary {
			return ExecResult{Stdout: []byte("Artist - Song\n")}
		}
	}
	return ExecResult{}
}

func (r *scriptedRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, strings.TrimSpace(spec.Bin+" "+strings.Join(spec.Args, " ")))
	}
	return out
}

func (r *scriptedRunner) ran(prefix string) []ExecSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []ExecSpec{}
	for _, spec := range r.specs {
		if strings.HasPrefix(strings.TrimSpace(spec.Bin+" "+strings.Join(spec.Args, " ")), prefix) {
			matched = append(matched, spec)
		}
	}
	return matched
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []output.Event
}

func (e *recordingEmitter) Emit(event output.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) byName(name output.EventName) []output.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	matched := []output.Event{}
	for _, event := range e.events {
		if event.Event == name {
			matched = append(matched, event)
		}
	}
	return matched
}

func (e *recordingEmitter) messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.Message)
	}
	return out
}
