package ffprobe

import (
	"strings"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

const defaultMinVersion = "4.0"

// Adapter reads chapters either from ffprobe's JSON writer or from the
// human readable stream dump it prints on stderr.
type Adapter struct {
	spec config.ToolSpec
	mode config.ChapterProbe
}

func New(spec config.ToolSpec, mode config.ChapterProbe) *Adapter {
	if mode == "" {
		mode = config.ChapterProbeJSON
	}
	return &Adapter{spec: spec, mode: mode}
}

func (a *Adapter) Binary() string {
	if strings.TrimSpace(a.spec.Bin) == "" {
		return "ffprobe"
	}
	return a.spec.Bin
}

func (a *Adapter) MinVersion() string {
	if strings.TrimSpace(a.spec.MinVersion) != "" {
		return a.spec.MinVersion
	}
	return defaultMinVersion
}

func (a *Adapter) Mode() config.ChapterProbe {
	return a.mode
}

func (a *Adapter) ChaptersSpec(path string, timeout time.Duration) engine.ExecSpec {
	var args []string
	spec := engine.ExecSpec{Bin: a.Binary(), Timeout: timeout, Quiet: true}

	switch a.mode {
	case config.ChapterProbeText:
		args = []string{"-hide_banner", "-i", path}
		spec.CaptureStderr = true
	default:
		args = []string{"-v", "quiet", "-print_format", "json", "-show_chapters", path}
		spec.CaptureStdout = true
	}

	spec.Args = append(args, a.spec.ExtraArgs...)
	spec.DisplayCommand = engine.FormatCommand(a.Binary(), spec.Args)
	return spec
}

func (a *Adapter) ParseChapters(result engine.ExecResult) ([]tracks.ChapterRecord, error) {
	if a.mode == config.ChapterProbeText {
		if result.Stderr != nil {
			return tracks.ParseProbeText(string(result.Stderr))
		}
		return tracks.ParseProbeText(result.StderrTail)
	}
	return tracks.ParseProbeJSON(result.Stdout)
}
