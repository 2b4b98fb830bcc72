// Package beets builds the beet commands used to look up and import items.
package beets

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
)

const (
	defaultMinVersion = "1.6.0"
	// IDField is the flexible attribute every imported item is tagged with.
	IDField = "ydl"
	// DevelopConfig is passed to beet when BEETS_ENV=develop.
	DevelopConfig = "env.config.yml"
)

type Adapter struct {
	spec   config.ToolSpec
	getenv func(string) string
}

func New(spec config.ToolSpec, getenv func(string) string) *Adapter {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Adapter{spec: spec, getenv: getenv}
}

func (a *Adapter) Binary() string {
	if strings.TrimSpace(a.spec.Bin) == "" {
		return "beet"
	}
	return a.spec.Bin
}

func (a *Adapter) MinVersion() string {
	if strings.TrimSpace(a.spec.MinVersion) != "" {
		return a.spec.MinVersion
	}
	return defaultMinVersion
}

func (a *Adapter) ImportSpec(req engine.ImportRequest, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(req.ID) == "" {
		return engine.ExecSpec{}, fmt.Errorf("import needs an item id")
	}
	if strings.TrimSpace(req.Path) == "" {
		return engine.ExecSpec{}, fmt.Errorf("import needs a path")
	}

	args := a.globalArgs()
	if req.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "import", "--set", fmt.Sprintf("%s=%s", IDField, req.ID))
	if req.Singleton {
		args = append(args, "--singletons")
	}
	args = append(args, a.spec.ExtraArgs...)
	args = append(args, req.Path)

	return engine.ExecSpec{
		Bin:            a.Binary(),
		Args:           args,
		Timeout:        timeout,
		DisplayCommand: engine.FormatCommand(a.Binary(), args),
	}, nil
}

// LookupSpec lists library entries carrying id. Any output means the item is
// already imported.
func (a *Adapter) LookupSpec(id string, albums bool, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(id) == "" {
		return engine.ExecSpec{}, fmt.Errorf("lookup needs an item id")
	}

	args := a.globalArgs()
	args = append(args, "ls")
	if albums {
		args = append(args, "-a")
	}
	args = append(args, fmt.Sprintf("%s:%s", IDField, id))

	return engine.ExecSpec{
		Bin:            a.Binary(),
		Args:           args,
		Timeout:        timeout,
		DisplayCommand: engine.FormatCommand(a.Binary(), args),
		CaptureStdout:  true,
		Quiet:          true,
	}, nil
}

func (a *Adapter) globalArgs() []string {
	if strings.EqualFold(strings.TrimSpace(a.getenv("BEETS_ENV")), "develop") {
		return []string{"-c", DevelopConfig}
	}
	return []string{}
}
