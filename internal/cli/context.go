package cli

import (
	"io"

	"github.com/vmassuchetto/beets-ydl/internal/engine"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type GlobalOptions struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
	Verbose    bool
	NoInput    bool
	DryRun     bool
}

type AppContext struct {
	Build BuildInfo
	IO    IOStreams
	Opts  GlobalOptions
	// Runner replaces the subprocess runner when set.
	Runner engine.ExecRunner
}
