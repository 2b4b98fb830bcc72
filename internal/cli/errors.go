package cli

import (
	"errors"
	"strings"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
	"github.com/vmassuchetto/beets-ydl/internal/exitcode"
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

func mapExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}

	var invalid *config.ValidationError
	switch {
	case errors.As(err, &invalid):
		return exitcode.InvalidConfig
	case errors.Is(err, engine.ErrInterrupted):
		return exitcode.Interrupted
	case errors.Is(err, engine.ErrNoURLs):
		return exitcode.InvalidUsage
	}

	message := err.Error()
	if strings.Contains(message, "unknown command") || strings.Contains(message, "unknown flag") {
		return exitcode.InvalidUsage
	}
	return exitcode.RuntimeFailure
}
