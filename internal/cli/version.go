package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version/build metadata",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(app)
		},
	}
}

func printVersion(app *AppContext) {
	info := map[string]string{
		"version":    orDefault(app.Build.Version, "dev"),
		"commit":     orDefault(app.Build.Commit, "unknown"),
		"build_date": orDefault(app.Build.Date, "unknown"),
	}
	if app.Opts.JSON {
		_ = json.NewEncoder(app.IO.Out).Encode(info)
		return
	}
	fmt.Fprintf(app.IO.Out, "ydl version %s\ncommit: %s\nbuild_date: %s\n", info["version"], info["commit"], info["build_date"])
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
