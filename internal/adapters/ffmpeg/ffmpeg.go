package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
	"github.com/vmassuchetto/beets-ydl/internal/segment"
)

const defaultMinVersion = "4.0"

// ffmpeg only maps "date" onto the native year frame of most containers.
var tagAliases = map[string]string{
	"year": "date",
}

type Adapter struct {
	spec config.ToolSpec
}

func New(spec config.ToolSpec) *Adapter {
	return &Adapter{spec: spec}
}

func (a *Adapter) Binary() string {
	if strings.TrimSpace(a.spec.Bin) == "" {
		return "ffmpeg"
	}
	return a.spec.Bin
}

func (a *Adapter) MinVersion() string {
	if strings.TrimSpace(a.spec.MinVersion) != "" {
		return a.spec.MinVersion
	}
	return defaultMinVersion
}

// SegmentSpec copies [Start, End) of the source into the job output without
// re-encoding and tags it.
func (a *Adapter) SegmentSpec(job segment.Job, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(job.Source) == "" || strings.TrimSpace(job.Output) == "" {
		return engine.ExecSpec{}, fmt.Errorf("segment %d needs a source and an output", job.Ordinal)
	}
	if job.End <= job.Start {
		return engine.ExecSpec{}, fmt.Errorf("segment %d ends before it starts", job.Ordinal)
	}

	args := a.baseArgs()
	args = append(args,
		"-i", job.Source,
		"-acodec", "copy",
		"-ss", formatSeconds(job.Start),
		"-to", formatSeconds(job.End),
	)
	args = append(args, metadataArgs(job.Tags)...)
	args = append(args, a.spec.ExtraArgs...)
	args = append(args, job.Output)

	return a.execSpec(args, timeout), nil
}

// TagSpec rewrites the container metadata of plan.Source into output. Streams
// are copied as they are.
func (a *Adapter) TagSpec(plan segment.TagPlan, output string, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(plan.Source) == "" || strings.TrimSpace(output) == "" {
		return engine.ExecSpec{}, fmt.Errorf("tag plan needs a source and an output")
	}
	if plan.Source == output {
		return engine.ExecSpec{}, fmt.Errorf("ffmpeg cannot write tags in place")
	}

	args := a.baseArgs()
	args = append(args,
		"-i", plan.Source,
		"-map", "0",
		"-codec", "copy",
		"-map_metadata", "0",
	)
	args = append(args, metadataArgs(plan.Tags)...)
	args = append(args, a.spec.ExtraArgs...)
	args = append(args, output)

	return a.execSpec(args, timeout), nil
}

// SilenceSpec writes seconds of silence as a small mono mp3.
func (a *Adapter) SilenceSpec(output string, seconds float64, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(output) == "" {
		return engine.ExecSpec{}, fmt.Errorf("silence needs an output")
	}
	if seconds <= 0 {
		return engine.ExecSpec{}, fmt.Errorf("silence length must be positive, got %.2f", seconds)
	}

	args := a.baseArgs()
	args = append(args,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", formatSeconds(seconds),
		"-vn",
		"-ar", "44100",
		"-ac", "1",
		"-b:a", "8k",
		output,
	)
	return a.execSpec(args, timeout), nil
}

func (a *Adapter) baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
}

func (a *Adapter) execSpec(args []string, timeout time.Duration) engine.ExecSpec {
	return engine.ExecSpec{
		Bin:            a.Binary(),
		Args:           args,
		Timeout:        timeout,
		DisplayCommand: engine.FormatCommand(a.Binary(), args),
		Quiet:          true,
	}
}

func metadataArgs(tags map[string]string) []string {
	args := make([]string, 0, len(tags)*2)
	for _, key := range segment.SortedTagKeys(tags) {
		name := key
		if alias, ok := tagAliases[key]; ok {
			name = alias
		}
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", name, tags[key]))
	}
	return args
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
