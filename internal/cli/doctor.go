package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/doctor"
	"github.com/vmassuchetto/beets-ydl/internal/exitcode"
)

var severityRank = map[doctor.Severity]int{
	doctor.SeverityError: 0,
	doctor.SeverityWarn:  1,
	doctor.SeverityInfo:  2,
}

func newDoctorCommand(app *AppContext) *cobra.Command {
	var (
		noSplit  bool
		noImport bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check yt-dlp, ffmpeg, ffprobe and beets, credentials, and the cache directory",
		Long: "doctor checks the tools a run with the current options would call. " +
			"Pass --no-split-files or --no-import to check for a run that skips those steps.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if noSplit {
				cfg.Options.SplitFiles = false
			}
			if noImport {
				cfg.Options.Import = false
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			report := doctor.NewChecker().Check(ctx, cfg)

			if app.Opts.JSON {
				if err := json.NewEncoder(app.IO.Out).Encode(report); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			} else {
				printDoctorReport(app, report)
			}

			if report.HasErrors() {
				return withExitCode(exitcode.MissingDependency, fmt.Errorf("doctor found %d error(s)", report.ErrorCount()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSplit, "no-split-files", false, "Check for a run that does not split albums")
	cmd.Flags().BoolVar(&noImport, "no-import", false, "Check for a run that does not import into beets")
	return cmd
}

func printDoctorReport(app *AppContext, report doctor.Report) {
	checks := append([]doctor.Check{}, report.Checks...)
	sort.SliceStable(checks, func(i, j int) bool {
		if severityRank[checks[i].Severity] != severityRank[checks[j].Severity] {
			return severityRank[checks[i].Severity] < severityRank[checks[j].Severity]
		}
		return checks[i].Name < checks[j].Name
	})
	for _, check := range checks {
		if app.Opts.Quiet && check.Severity == doctor.SeverityInfo {
			continue
		}
		fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
	}
	fmt.Fprintf(app.IO.Out, "%d error(s), %d warning(s)\n", report.ErrorCount(), report.WarningCount())
}
