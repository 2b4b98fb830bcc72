package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type EventEmitter interface {
	Emit(event Event) error
}

type JSONEmitter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONEmitter{enc: enc}
}

func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(event)
}

// HumanEmitter prints one "[ydl]" prefixed line per message line. Warnings
// and errors go to stderr.
type HumanEmitter struct {
	stdout  io.Writer
	stderr  io.Writer
	quiet   bool
	verbose bool

	mu sync.Mutex
}

func NewHumanEmitter(stdout, stderr io.Writer, quiet, verbose bool) *HumanEmitter {
	return &HumanEmitter{stdout: stdout, stderr: stderr, quiet: quiet, verbose: verbose}
}

func (e *HumanEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	text := event.Message
	if text == "" {
		text = string(event.Event)
	}

	switch event.Level {
	case LevelError:
		return writeLines(e.stderr, "[ydl] Error: ", text)
	case LevelWarn:
		if e.quiet {
			return nil
		}
		return writeLines(e.stderr, "[ydl] Warning: ", text)
	case LevelDebug:
		if e.quiet || !e.verbose {
			return nil
		}
		return writeLines(e.stdout, "[ydl] ", text)
	default:
		if e.quiet && event.Event != EventRunFinished {
			return nil
		}
		return writeLines(e.stdout, "[ydl] ", text)
	}
}

func writeLines(w io.Writer, prefix string, text string) error {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if _, err := fmt.Fprintln(w, prefix+line); err != nil {
			return err
		}
	}
	return nil
}

type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (e *MultiEmitter) Emit(event Event) error {
	for _, emitter := range e.emitters {
		if err := emitter.Emit(event); err != nil {
			return err
		}
	}
	return nil
}
