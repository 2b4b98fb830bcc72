package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/exitcode"
)

type validateSummary struct {
	Valid       bool     `json:"valid"`
	URLs        int      `json:"urls"`
	CacheDir    string   `json:"cache_dir"`
	AudioFormat string   `json:"audio_format"`
	Threads     int      `json:"threads"`
	Steps       []string `json:"steps"`
}

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config file, tool settings and default urls",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			summary := summarizeConfig(cfg)
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(summary)
			}

			fmt.Fprintf(app.IO.Out, "Config is valid (%d default url(s)).\n", summary.URLs)
			if app.Opts.Verbose {
				fmt.Fprintf(app.IO.Out, "cache_dir: %s\n", summary.CacheDir)
				fmt.Fprintf(app.IO.Out, "audio: %s @ %s\n", summary.AudioFormat, cfg.Defaults.AudioQuality)
				fmt.Fprintf(app.IO.Out, "threads: %d\n", summary.Threads)
				fmt.Fprintf(app.IO.Out, "steps: %s\n", strings.Join(summary.Steps, ", "))
			}
			return nil
		},
	}
}

// summarizeConfig lists the pipeline steps a run with cfg would take.
func summarizeConfig(cfg config.Config) validateSummary {
	steps := []string{"resolve"}
	if cfg.Options.Download {
		steps = append(steps, "download")
	}
	switch {
	case cfg.Options.WriteDummyMP3:
		steps = append(steps, "dummy")
	case cfg.Options.SplitFiles:
		steps = append(steps, "split")
	}
	steps = append(steps, "tag")
	if cfg.Options.Import {
		steps = append(steps, "import")
	}
	if !cfg.Options.KeepFiles {
		steps = append(steps, "cleanup")
	}

	return validateSummary{
		Valid:       true,
		URLs:        len(cfg.URLs),
		CacheDir:    cfg.Defaults.CacheDir,
		AudioFormat: cfg.Defaults.AudioFormat,
		Threads:     cfg.Defaults.Threads,
		Steps:       steps,
	}
}
