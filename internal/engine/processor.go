package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/fileops"
	"github.com/vmassuchetto/beets-ydl/internal/output"
	"github.com/vmassuchetto/beets-ydl/internal/segment"
	"github.com/vmassuchetto/beets-ydl/internal/text"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

var (
	ErrInterrupted = errors.New("processing interrupted")
	ErrNoURLs      = errors.New("no urls given and none configured")
)

type itemOutcome int

const (
	outcomeDone itemOutcome = iota
	outcomeSkipped
)

type Processor struct {
	Tools   Toolchain
	Runner  ExecRunner
	Emitter output.EventEmitter
	Now     func() time.Time
	NewID   func() string
	Planner *segment.Planner
}

func NewProcessor(tools Toolchain, runner ExecRunner, emitter output.EventEmitter) *Processor {
	if emitter == nil {
		emitter = noOpEmitter{}
	}
	return &Processor{
		Tools:   tools,
		Runner:  runner,
		Emitter: emitter,
		Now:     time.Now,
		NewID:   uuid.NewString,
		Planner: segment.NewPlanner(),
	}
}

type noOpEmitter struct{}

func (noOpEmitter) Emit(event output.Event) error {
	return nil
}

// Process resolves every URL into media items and runs each item through
// extraction, planning, splitting and import. A failing item does not stop
// the run.
func (p *Processor) Process(ctx context.Context, cfg config.Config, opts ProcessOptions) (ProcessResult, error) {
	result := ProcessResult{}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.NewID == nil {
		p.NewID = uuid.NewString
	}
	if p.Planner == nil {
		p.Planner = segment.NewPlanner()
	}

	urls := opts.URLs
	if len(urls) == 0 {
		urls = cfg.URLs
		if len(urls) > 0 {
			p.emit(output.Event{
				Level:   output.LevelDebug,
				Event:   output.EventRunStarted,
				Message: "Falling back to default urls",
			})
		}
	}
	if len(urls) == 0 {
		return result, ErrNoURLs
	}

	timeout := commandTimeout(cfg, opts)
	runID := p.NewID()
	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunStarted,
		Message: fmt.Sprintf("run started (%d url(s))", len(urls)),
		Details: map[string]any{
			"run_id":  runID,
			"urls":    len(urls),
			"dry_run": opts.DryRun,
		},
	})

	for _, url := range urls {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}
		result.URLs++

		items, err := p.resolve(ctx, url, timeout)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				result.Interrupted = true
				break
			}
			result.Failed++
			p.emit(output.Event{
				Level:   output.LevelError,
				Event:   output.EventItemFailed,
				Message: fmt.Sprintf("Failed to fetch information for %s: %v", url, err),
				Details: map[string]any{"url": url},
			})
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				result.Interrupted = true
				break
			}
			result.Total++

			pc := &ProcessingContext{ID: p.NewID(), RunID: runID, SourceURL: url, Item: item}
			outcome, err := p.processItem(ctx, cfg, opts, pc, timeout)
			if err != nil {
				if errors.Is(err, ErrInterrupted) || ctx.Err() != nil {
					result.Interrupted = true
					break
				}
				result.Failed++
				p.emit(output.Event{
					Level:   output.LevelError,
					Event:   output.EventItemFailed,
					ItemID:  item.ID,
					Message: fmt.Sprintf("%s [%s]: %v", item.Title, item.ID, err),
				})
				continue
			}

			switch outcome {
			case outcomeSkipped:
				result.Skipped++
			default:
				result.Succeeded++
				if pc.TrackSet.IsAlbum() {
					result.Albums++
				} else {
					result.Singletons++
				}
			}
		}
		if result.Interrupted {
			break
		}
	}

	p.emit(output.Event{
		Level: output.LevelInfo,
		Event: output.EventRunFinished,
		Message: fmt.Sprintf("run finished: %d item(s), %d succeeded, %d skipped, %d failed",
			result.Total, result.Succeeded, result.Skipped, result.Failed),
		Details: map[string]any{
			"run_id":      runID,
			"total":       result.Total,
			"succeeded":   result.Succeeded,
			"skipped":     result.Skipped,
			"failed":      result.Failed,
			"albums":      result.Albums,
			"singletons":  result.Singletons,
			"interrupted": result.Interrupted,
		},
	})

	if result.Interrupted {
		return result, ErrInterrupted
	}
	return result, nil
}

func (p *Processor) resolve(ctx context.Context, url string, timeout time.Duration) ([]tracks.MediaItem, error) {
	spec, err := p.Tools.Downloader.InfoSpec(url, timeout)
	if err != nil {
		return nil, err
	}
	result := p.Runner.Run(ctx, spec)
	if err := commandError(p.Tools.Downloader.Binary(), result); err != nil {
		return nil, err
	}
	items, err := p.Tools.Downloader.ParseInfo(result.Stdout)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no entries found")
	}
	return items, nil
}

func (p *Processor) processItem(ctx context.Context, cfg config.Config, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) (itemOutcome, error) {
	item := pc.Item
	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventItemStarted,
		ItemID:  item.ID,
		Message: "Processing item: " + item.Title,
		Details: map[string]any{"url": pc.SourceURL, "context_id": pc.ID},
	})

	if !cfg.Options.ForceDownload {
		present, err := p.inLibrary(ctx, item.ID, timeout)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				return outcomeDone, err
			}
			p.emit(output.Event{
				Level:   output.LevelWarn,
				Event:   output.EventItemStarted,
				ItemID:  item.ID,
				Message: fmt.Sprintf("library lookup failed, continuing: %v", err),
			})
		}
		if present {
			p.emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventItemSkipped,
				ItemID:  item.ID,
				Message: fmt.Sprintf("Skipping item already in library: %s [%s]", item.Title, item.ID),
			})
			return outcomeSkipped, nil
		}
	}

	itemDir, err := config.ResolveItemDir(cfg.Defaults.CacheDir, item.ID)
	if err != nil {
		return outcomeDone, err
	}
	pc.ItemDir = itemDir
	pc.Item.AudioPath = filepath.Join(itemDir, item.ID+audioExtension(cfg.Defaults.AudioFormat))

	if cfg.Options.Download || cfg.Options.ForceDownload {
		if err := p.download(ctx, cfg, opts, pc, timeout); err != nil {
			return outcomeDone, err
		}
	} else {
		p.debug(item.ID, "Skipping download: "+item.ID)
	}

	if err := p.extract(ctx, pc, timeout, cfg.Defaults.FoldAccents); err != nil {
		return outcomeDone, err
	}

	if err := p.materialize(ctx, cfg, opts, pc, timeout); err != nil {
		return outcomeDone, err
	}

	if cfg.Options.Import {
		if err := p.importItem(ctx, cfg, opts, pc, timeout); err != nil {
			return outcomeDone, err
		}
	} else {
		p.debug(item.ID, "Skipping import")
	}

	p.cleanup(cfg, opts, pc)

	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventItemFinished,
		ItemID:  item.ID,
		Message: fmt.Sprintf("Finished %s [%s]", item.Title, item.ID),
		Details: map[string]any{
			"classification": string(pc.TrackSet.Classification),
			"tracks":         len(pc.TrackSet.Tracks),
		},
	})
	return outcomeDone, nil
}

func (p *Processor) inLibrary(ctx context.Context, id string, timeout time.Duration) (bool, error) {
	if p.Tools.Importer == nil {
		return false, nil
	}
	for _, albums := range []bool{false, true} {
		spec, err := p.Tools.Importer.LookupSpec(id, albums, timeout)
		if err != nil {
			return false, err
		}
		result := p.Runner.Run(ctx, spec)
		if err := commandError(p.Tools.Importer.Binary(), result); err != nil {
			return false, err
		}
		if strings.TrimSpace(string(result.Stdout)) != "" {
			return true, nil
		}
	}
	return false, nil
}

func (p *Processor) download(ctx context.Context, cfg config.Config, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	url := pc.Item.WebpageURL
	if strings.TrimSpace(url) == "" {
		url = pc.SourceURL
	}
	spec, err := p.Tools.Downloader.DownloadSpec(DownloadRequest{
		URL:          url,
		ItemDir:      pc.ItemDir,
		AudioFormat:  cfg.Defaults.AudioFormat,
		AudioQuality: cfg.Defaults.AudioQuality,
		KeepVideo:    cfg.Options.KeepFiles,
	}, timeout)
	if err != nil {
		return err
	}

	if opts.DryRun {
		p.dryRun(pc.Item.ID, spec)
		return nil
	}

	if err := os.MkdirAll(pc.ItemDir, 0o755); err != nil {
		return fmt.Errorf("create item directory: %w", err)
	}
	p.debug(pc.Item.ID, "Calling "+p.Tools.Downloader.Binary())
	result := p.Runner.Run(ctx, spec)
	if err := commandError(p.Tools.Downloader.Binary(), result); err != nil {
		return err
	}

	if located := locateAudio(pc.ItemDir, pc.Item.ID, pc.Item.AudioPath); located != "" {
		pc.Item.AudioPath = located
		return nil
	}
	return fmt.Errorf("audio file not found after download: %s", pc.Item.AudioPath)
}

func (p *Processor) extract(ctx context.Context, pc *ProcessingContext, timeout time.Duration, fold bool) error {
	p.debug(pc.Item.ID, "Extracting tracks metadata")

	chapters := p.Tools.Chapters
	if chapters == nil && p.Tools.Prober != nil {
		chapters = &ProbeChapterSource{Prober: p.Tools.Prober, Runner: p.Runner, Timeout: timeout}
	}
	builder := tracks.NewBuilder(chapters)
	if fold {
		builder.Fold = text.FoldAccents
	}

	set, report, err := builder.Build(ctx, pc.Item)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}

	for _, diagnostic := range report.Diagnostics {
		level := output.LevelWarn
		if errors.Is(diagnostic, tracks.ErrMissingAudioFile) || errors.Is(diagnostic, tracks.ErrExtractionEmpty) {
			level = output.LevelDebug
		}
		p.emit(output.Event{
			Level:   level,
			Event:   output.EventExtractionWarning,
			ItemID:  pc.Item.ID,
			Message: diagnostic.Error(),
		})
	}

	pc.Report = report
	pc.TrackSet = tracks.Synthesize(set, pc.Item, report)

	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventTracksExtracted,
		ItemID:  pc.Item.ID,
		Message: fmt.Sprintf("URL is identified as %s", describeClassification(pc.TrackSet)),
		Details: map[string]any{
			"strategy":       string(report.Strategy),
			"tracks":         len(pc.TrackSet.Tracks),
			"skipped":        report.Skipped(),
			"classification": string(pc.TrackSet.Classification),
			"artist":         report.Common.Artist,
			"album":          report.Common.Album,
			"year":           report.Common.Year,
		},
	})

	plan, err := p.Planner.Plan(pc.TrackSet, segment.Target{
		ID:           pc.Item.ID,
		Source:       pc.Item.AudioPath,
		OutputDir:    pc.ItemDir,
		Duration:     pc.Item.Duration,
		WorkingTitle: report.WorkingTitle,
		Year:         report.Common.Year,
	})
	if err != nil {
		return err
	}
	pc.Plan = plan

	lines := plan.Tracklist()
	p.emit(output.Event{
		Level:   output.LevelDebug,
		Event:   output.EventTracklist,
		ItemID:  pc.Item.ID,
		Message: strings.Join(lines, "\n"),
		Details: map[string]any{"tracks": lines},
	})
	return nil
}

func (p *Processor) materialize(ctx context.Context, cfg config.Config, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	audioExists := fileExists(pc.Item.AudioPath)

	switch {
	case cfg.Options.WriteDummyMP3:
		return p.writeDummies(ctx, opts, pc, timeout)
	case pc.Plan.Split() && !cfg.Options.SplitFiles:
		p.debug(pc.Item.ID, "Not splitting album file")
		return nil
	case pc.Plan.Split() && (audioExists || opts.DryRun):
		return p.split(ctx, cfg, opts, pc, timeout)
	case pc.Plan.TagPlan != nil && (audioExists || opts.DryRun):
		return p.applyTagPlan(ctx, opts, pc, timeout)
	default:
		p.debug(pc.Item.ID, "Audio file not found, nothing to split or tag: "+pc.Item.AudioPath)
		return nil
	}
}

func (p *Processor) split(ctx context.Context, cfg config.Config, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	if opts.DryRun {
		for _, job := range pc.Plan.Jobs {
			spec, err := p.Tools.Transcoder.SegmentSpec(job, timeout)
			if err != nil {
				return err
			}
			p.dryRun(pc.Item.ID, spec)
		}
		return nil
	}

	p.debug(pc.Item.ID, "Splitting tracks")
	executor := &SplitExecutor{
		Runner:     p.Runner,
		Transcoder: p.Tools.Transcoder,
		Threads:    cfg.Defaults.Threads,
		Timeout:    timeout,
	}
	started := p.Now()
	results, err := executor.Execute(ctx, pc.Plan.Jobs)
	if err != nil {
		return err
	}

	if err := fileops.RemoveIfExists(pc.Item.AudioPath); err != nil {
		return fmt.Errorf("remove source audio after split: %w", err)
	}

	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventSplitFinished,
		ItemID:  pc.Item.ID,
		Message: fmt.Sprintf("Split %d track(s) into %s", len(results), pc.ItemDir),
		Details: map[string]any{
			"tracks":      len(results),
			"duration_ms": p.Now().Sub(started).Milliseconds(),
		},
	})
	return nil
}

func (p *Processor) applyTagPlan(ctx context.Context, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	plan := *pc.Plan.TagPlan

	if p.Tools.Tagger != nil && p.Tools.Tagger.Supports(plan.Source) {
		if opts.DryRun {
			p.emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventTracklist,
				ItemID:  pc.Item.ID,
				Message: fmt.Sprintf("dry-run: write tags to %s", plan.Source),
			})
			return nil
		}
		return p.Tools.Tagger.WriteTags(plan.Source, plan.Tags)
	}

	temp := fileops.TempSibling(plan.Source, "tagging")
	spec, err := p.Tools.Transcoder.TagSpec(plan, temp, timeout)
	if err != nil {
		return err
	}
	if opts.DryRun {
		p.dryRun(pc.Item.ID, spec)
		return nil
	}

	result := p.Runner.Run(ctx, spec)
	if err := commandError(p.Tools.Transcoder.Binary(), result); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write tags: %w", err)
	}
	return fileops.ReplaceFileSafely(temp, plan.Source)
}

// writeDummies replaces every planned track with a silent mp3 carrying the
// planned tags. Useful to try an import without real audio.
func (p *Processor) writeDummies(ctx context.Context, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	type dummy struct {
		output  string
		seconds float64
		tags    map[string]string
	}

	dummies := []dummy{}
	for _, job := range pc.Plan.Jobs {
		dummies = append(dummies, dummy{output: job.Output, seconds: job.End - job.Start, tags: job.Tags})
	}
	if plan := pc.Plan.TagPlan; plan != nil {
		path := filepath.Join(pc.ItemDir, pc.Item.ID+".mp3")
		dummies = append(dummies, dummy{output: path, seconds: plan.End - plan.Start, tags: plan.Tags})
	}

	if !opts.DryRun {
		if err := os.MkdirAll(pc.ItemDir, 0o755); err != nil {
			return fmt.Errorf("create item directory: %w", err)
		}
	}

	for _, d := range dummies {
		spec, err := p.Tools.Transcoder.SilenceSpec(d.output, d.seconds, timeout)
		if err != nil {
			return err
		}
		if opts.DryRun {
			p.dryRun(pc.Item.ID, spec)
			continue
		}
		result := p.Runner.Run(ctx, spec)
		if err := commandError(p.Tools.Transcoder.Binary(), result); err != nil {
			return fmt.Errorf("write dummy %s: %w", filepath.Base(d.output), err)
		}
		if p.Tools.Tagger != nil {
			if err := p.Tools.Tagger.WriteTags(d.output, d.tags); err != nil {
				return err
			}
		}
	}

	if pc.Plan.TagPlan != nil {
		pc.Item.AudioPath = filepath.Join(pc.ItemDir, pc.Item.ID+".mp3")
	}
	p.debug(pc.Item.ID, fmt.Sprintf("Wrote %d dummy mp3 file(s)", len(dummies)))
	return nil
}

func (p *Processor) importItem(ctx context.Context, cfg config.Config, opts ProcessOptions, pc *ProcessingContext, timeout time.Duration) error {
	req := ImportRequest{
		ID:        pc.Item.ID,
		Path:      importPath(pc),
		Singleton: pc.Singleton(),
		Verbose:   cfg.Options.Verbose,
	}
	spec, err := p.Tools.Importer.ImportSpec(req, timeout)
	if err != nil {
		return err
	}
	if opts.DryRun {
		p.dryRun(pc.Item.ID, spec)
		return nil
	}

	p.debug(pc.Item.ID, "Running beets: "+spec.DisplayCommand)
	result := p.Runner.Run(ctx, spec)
	if err := commandError(p.Tools.Importer.Binary(), result); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventImportFinished,
		ItemID:  pc.Item.ID,
		Message: fmt.Sprintf("Imported %s", req.Path),
		Details: map[string]any{
			"path":      req.Path,
			"singleton": req.Singleton,
		},
	})
	return nil
}

func (p *Processor) cleanup(cfg config.Config, opts ProcessOptions, pc *ProcessingContext) {
	if opts.DryRun {
		return
	}
	if cfg.Options.KeepFiles {
		p.debug(pc.Item.ID, "Keeping downloaded files on "+pc.ItemDir)
		return
	}
	root, err := config.ExpandPath(cfg.Defaults.CacheDir)
	if err == nil {
		err = fileops.RemoveItemDir(root, pc.ItemDir)
	}
	if err != nil {
		p.emit(output.Event{
			Level:   output.LevelWarn,
			Event:   output.EventItemFinished,
			ItemID:  pc.Item.ID,
			Message: fmt.Sprintf("could not clean %s: %v", pc.ItemDir, err),
		})
	}
}

func (p *Processor) dryRun(itemID string, spec ExecSpec) {
	p.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventTracklist,
		ItemID:  itemID,
		Message: "dry-run: " + spec.DisplayCommand,
		Details: map[string]any{"command": spec.DisplayCommand},
	})
}

func (p *Processor) debug(itemID string, message string) {
	p.emit(output.Event{
		Level:   output.LevelDebug,
		Event:   output.EventItemStarted,
		ItemID:  itemID,
		Message: message,
	})
}

func (p *Processor) emit(event output.Event) {
	if event.Timestamp.IsZero() {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		event.Timestamp = now()
	}
	_ = p.Emitter.Emit(event)
}

// importPath is the item directory for albums. Singletons import the audio
// file itself when it is there.
func importPath(pc *ProcessingContext) string {
	if pc.Singleton() && fileExists(pc.Item.AudioPath) {
		return pc.Item.AudioPath
	}
	return pc.ItemDir
}

func describeClassification(set tracks.TrackSet) string {
	if set.IsAlbum() {
		return fmt.Sprintf("an album (%d tracks)", len(set.Tracks))
	}
	return "a singleton"
}

func commandTimeout(cfg config.Config, opts ProcessOptions) time.Duration {
	if opts.TimeoutOverride > 0 {
		return opts.TimeoutOverride
	}
	return time.Duration(cfg.Defaults.CommandTimeoutSeconds) * time.Second
}

func commandError(bin string, result ExecResult) error {
	if result.Interrupted {
		return ErrInterrupted
	}
	if result.ExitCode == 0 {
		return nil
	}
	if result.TimedOut {
		return fmt.Errorf("%s timed out after %s", bin, result.Duration.Round(time.Second))
	}
	if result.ExitCode == 127 {
		return fmt.Errorf("%s not found on PATH", bin)
	}
	if line := lastLine(result.StderrTail); line != "" {
		return fmt.Errorf("%s exited with code %d: %s", bin, result.ExitCode, line)
	}
	return fmt.Errorf("%s exited with code %d", bin, result.ExitCode)
}

func lastLine(tail string) string {
	lines := strings.Split(strings.TrimSpace(tail), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// audioExtension maps the configured yt-dlp audio format onto the extension
// of the file it produces.
func audioExtension(format string) string {
	switch format {
	case "", "best":
		return ""
	case "vorbis":
		return ".ogg"
	case "alac":
		return ".m4a"
	default:
		return "." + format
	}
}

// locateAudio returns expected when it exists, or the first file named
// <id>.* in dir that is not a thumbnail or a partial download.
func locateAudio(dir string, id string, expected string) string {
	if fileExists(expected) {
		return expected
	}
	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return ""
	}
	for _, match := range matches {
		switch strings.ToLower(filepath.Ext(match)) {
		case ".jpg", ".jpeg", ".png", ".webp", ".part", ".ytdl", ".json":
			continue
		}
		if fileExists(match) {
			return match
		}
	}
	return ""
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
