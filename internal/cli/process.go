package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmassuchetto/beets-ydl/internal/adapters/beets"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ffmpeg"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ffprobe"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ytdlp"
	"github.com/vmassuchetto/beets-ydl/internal/audio"
	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
	"github.com/vmassuchetto/beets-ydl/internal/exitcode"
	"github.com/vmassuchetto/beets-ydl/internal/output"
)

type processFlags struct {
	noDownload    bool
	noSplitFiles  bool
	noImport      bool
	forceDownload bool
	keepFiles     bool
	writeDummyMP3 bool
	threads       int
	timeout       time.Duration
	progressMode  string
	eventsFile    string
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noDownload, "no-download", false, "Do not download, work on files already in the cache")
	cmd.Flags().BoolVar(&f.noSplitFiles, "no-split-files", false, "Do not split albums into tracks")
	cmd.Flags().BoolVar(&f.noImport, "no-import", false, "Do not import into the beets library")
	cmd.Flags().BoolVarP(&f.forceDownload, "force-download", "f", false, "Download even when the item is already in the library")
	cmd.Flags().BoolVarP(&f.keepFiles, "keep-files", "k", false, "Keep downloaded and split files after import")
	cmd.Flags().BoolVarP(&f.writeDummyMP3, "write-dummy-mp3", "w", false, "Write silent tagged mp3 files instead of real audio")
	cmd.Flags().IntVar(&f.threads, "threads", 0, "Parallel ffmpeg split jobs (overrides config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Override per-command timeout (e.g. 10m, 1h)")
	cmd.Flags().StringVar(&f.progressMode, "progress", "auto", "Progress rendering mode: auto, always, or never")
	cmd.Flags().StringVar(&f.eventsFile, "events-file", "", "Also append newline-delimited JSON events to this file")
}

// apply overlays command line switches on a copy of cfg. Flags only ever turn
// behaviour on or off relative to the file, they never reset it.
func (f *processFlags) apply(cfg config.Config, verbose bool) config.Config {
	out := cfg
	out.URLs = append([]string(nil), cfg.URLs...)
	if f.noDownload {
		out.Options.Download = false
	}
	if f.noSplitFiles {
		out.Options.SplitFiles = false
	}
	if f.noImport {
		out.Options.Import = false
	}
	if f.forceDownload {
		out.Options.ForceDownload = true
	}
	if f.keepFiles {
		out.Options.KeepFiles = true
	}
	if f.writeDummyMP3 {
		out.Options.WriteDummyMP3 = true
	}
	if verbose {
		out.Options.Verbose = true
	}
	if f.threads > 0 {
		out.Defaults.Threads = f.threads
	}
	return out
}

func runProcess(cmd *cobra.Command, app *AppContext, flags *processFlags, urls []string) error {
	progressMode, err := parseProgressMode(flags.progressMode)
	if err != nil {
		return withExitCode(exitcode.InvalidUsage, err)
	}

	cfg, err := loadConfig(app)
	if err != nil {
		return withExitCode(exitcode.InvalidConfig, err)
	}
	cfg = flags.apply(cfg, app.Opts.Verbose)
	if err := config.Validate(cfg); err != nil {
		return withExitCode(exitcode.InvalidConfig, err)
	}

	humanStdout := app.IO.Out
	humanStderr := app.IO.ErrOut
	runnerStdout := app.IO.Out
	runnerStderr := app.IO.ErrOut
	var compactWriter *output.CompactLogWriter
	if app.Opts.JSON {
		runnerStdout = app.IO.ErrOut
	} else if app.Opts.Quiet {
		runnerStdout = io.Discard
		runnerStderr = io.Discard
	} else if !app.Opts.Verbose {
		interactive := output.SupportsInPlaceUpdates(app.IO.Out)
		switch progressMode {
		case "always":
			interactive = true
		case "never":
			interactive = false
		}
		compactWriter = output.NewCompactLogWriterWithOptions(app.IO.Out, output.CompactLogOptions{
			Interactive: interactive,
		})
		humanStdout = compactWriter
		runnerStdout = compactWriter
		runnerStderr = compactWriter
	}

	var emitter output.EventEmitter
	if app.Opts.JSON {
		emitter = output.NewJSONEmitter(app.IO.Out)
	} else {
		emitter = output.NewHumanEmitter(humanStdout, humanStderr, app.Opts.Quiet, cfg.Options.Verbose)
	}
	if path := strings.TrimSpace(flags.eventsFile); path != "" {
		eventLog, err := openEventLog(path)
		if err != nil {
			return withExitCode(exitcode.RuntimeFailure, err)
		}
		defer eventLog.Close()
		emitter = output.NewMultiEmitter(emitter, output.NewJSONEmitter(eventLog))
	}

	runner := app.Runner
	if runner == nil {
		runner = engine.NewSubprocessRunner(app.IO.In, runnerStdout, runnerStderr)
	}

	processor := engine.NewProcessor(newToolchain(cfg), runner, emitter)

	ctx, stop := signalContext(cmd)
	defer stop()

	result, runErr := processor.Process(ctx, cfg, engine.ProcessOptions{
		URLs:            urls,
		DryRun:          app.Opts.DryRun,
		TimeoutOverride: flags.timeout,
	})
	if compactWriter != nil {
		_ = compactWriter.Flush()
	}
	if runErr != nil {
		switch {
		case errors.Is(runErr, engine.ErrNoURLs):
			return withExitCode(exitcode.InvalidUsage, runErr)
		case errors.Is(runErr, engine.ErrInterrupted):
			return withExitCode(exitcode.Interrupted, runErr)
		default:
			return withExitCode(exitcode.RuntimeFailure, runErr)
		}
	}

	if result.Failed > 0 {
		if result.Succeeded+result.Skipped > 0 {
			return withExitCode(exitcode.PartialSuccess, fmt.Errorf("finished with %d failed item(s)", result.Failed))
		}
		return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("all %d item(s) failed", result.Failed))
	}
	return nil
}

func newToolchain(cfg config.Config) engine.Toolchain {
	tools := engine.Toolchain{
		Downloader: ytdlp.New(cfg.Tools.YTDLP),
		Transcoder: ffmpeg.New(cfg.Tools.FFmpeg),
		Importer:   beets.New(cfg.Tools.Beet, nil),
		Tagger:     audio.NewTagger(),
	}
	if cfg.Defaults.ChapterProbe == config.ChapterProbeAudiometa {
		tools.Chapters = audio.NewChapterReader()
	} else {
		tools.Prober = ffprobe.New(cfg.Tools.FFprobe, cfg.Defaults.ChapterProbe)
	}
	return tools
}

func parseProgressMode(raw string) (string, error) {
	switch raw {
	case "", "auto":
		return "auto", nil
	case "always", "never":
		return raw, nil
	default:
		return "", fmt.Errorf("invalid --progress mode %q (expected: auto, always, never)", raw)
	}
}

func openEventLog(path string) (*os.File, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve events file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, fmt.Errorf("create events file directory: %w", err)
	}
	file, err := os.OpenFile(expanded, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	return file, nil
}
