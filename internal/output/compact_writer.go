package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var downloadProgressPattern = regexp.MustCompile(`^\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)
var downloadDestinationPattern = regexp.MustCompile(`^\[download\] Destination: (.+)$`)
var alreadyDownloadedPattern = regexp.MustCompile(`^\[download\] (.+) has already been downloaded$`)
var extractAudioPattern = regexp.MustCompile(`^\[ExtractAudio\] (?:Destination: (.+)|Not converting audio (.+?);)`)

type CompactLogOptions struct {
	Interactive bool
}

// CompactLogWriter condenses yt-dlp download output into one result line per
// item. Lines that do not look like yt-dlp output pass through untouched, and
// an unterminated line such as an import prompt is written as soon as it
// arrives.
type CompactLogWriter struct {
	dst         io.Writer
	interactive bool

	mu         sync.Mutex
	buf        []byte
	partial    bool
	activeLine string

	item itemState
}

type itemState struct {
	Name               string
	Percent            string
	HasThumbnail       bool
	HasAudio           bool
	CompletionObserved bool
	AlreadyPresent     bool
}

func NewCompactLogWriter(dst io.Writer) *CompactLogWriter {
	return NewCompactLogWriterWithOptions(dst, CompactLogOptions{
		Interactive: SupportsInPlaceUpdates(dst),
	})
}

func NewCompactLogWriterWithOptions(dst io.Writer, opts CompactLogOptions) *CompactLogWriter {
	return &CompactLogWriter{
		dst:         dst,
		interactive: opts.Interactive,
		buf:         make([]byte, 0, 256),
	}
}

func SupportsInPlaceUpdates(dst io.Writer) bool {
	file, ok := dst.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func (w *CompactLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		switch b {
		case '\n', '\r':
			if w.partial {
				if err := w.finishPartialLocked(b); err != nil {
					return 0, err
				}
				continue
			}
			if err := w.flushLineLocked(); err != nil {
				return 0, err
			}
		default:
			w.buf = append(w.buf, b)
		}
	}

	if len(w.buf) > 0 && (w.partial || w.buf[0] != '[') {
		if err := w.writePartialLocked(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *CompactLogWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial {
		if err := w.finishPartialLocked('\n'); err != nil {
			return err
		}
	}
	if err := w.flushLineLocked(); err != nil {
		return err
	}
	if err := w.finalizeItemLocked(); err != nil {
		return err
	}
	return w.clearActiveLineLocked()
}

func (w *CompactLogWriter) writePartialLocked() error {
	if err := w.clearActiveLineLocked(); err != nil {
		return err
	}
	_, err := w.dst.Write(w.buf)
	w.buf = w.buf[:0]
	w.partial = true
	return err
}

func (w *CompactLogWriter) finishPartialLocked(terminator byte) error {
	w.partial = false
	payload := append(w.buf, terminator)
	w.buf = w.buf[:0]
	_, err := w.dst.Write(payload)
	return err
}

func (w *CompactLogWriter) flushLineLocked() error {
	if len(w.buf) == 0 {
		return nil
	}

	line := strings.TrimSpace(string(w.buf))
	w.buf = w.buf[:0]
	if line == "" {
		return nil
	}

	return w.handleLineLocked(line)
}

func (w *CompactLogWriter) handleLineLocked(line string) error {
	if match := downloadDestinationPattern.FindStringSubmatch(line); len(match) == 2 {
		name := itemNameFromPath(match[1])
		if w.item.Name != "" && w.item.Name != name {
			if err := w.finalizeItemLocked(); err != nil {
				return err
			}
		}
		w.item.Name = name
		w.item.CompletionObserved = false
		w.item.AlreadyPresent = false
		return w.renderStatusLocked("downloading")
	}

	if match := alreadyDownloadedPattern.FindStringSubmatch(line); len(match) == 2 {
		if w.item.Name == "" {
			w.item.Name = itemNameFromPath(match[1])
		}
		w.item.AlreadyPresent = true
		w.item.CompletionObserved = true
		return w.renderStatusLocked("already present")
	}

	if match := downloadProgressPattern.FindStringSubmatch(line); len(match) == 2 {
		w.item.Percent = match[1]
		if strings.HasPrefix(line, "[download] 100% of ") {
			w.item.CompletionObserved = true
			return w.renderStatusLocked("finalizing")
		}
		return w.renderStatusLocked("downloading " + match[1] + "%")
	}

	if match := extractAudioPattern.FindStringSubmatch(line); len(match) == 3 {
		if w.item.Name == "" {
			w.item.Name = itemNameFromPath(match[1] + match[2])
		}
		w.item.HasAudio = true
		w.item.CompletionObserved = true
		return w.renderStatusLocked("extracting audio")
	}

	if strings.HasPrefix(line, "[info] Writing video thumbnail") {
		w.item.HasThumbnail = true
		return w.renderStatusLocked("thumbnail")
	}

	if looksLikeWarningOrError(line) {
		return w.printPersistentLocked(line)
	}

	if shouldSuppressDownloaderNoise(line) {
		return nil
	}

	return w.printPersistentLocked(line)
}

func (w *CompactLogWriter) renderStatusLocked(stage string) error {
	if w.item.Name == "" {
		return nil
	}
	if !w.interactive {
		return nil
	}

	status := fmt.Sprintf("[in-progress] %s", w.item.Name)
	bits := []string{}
	if stage != "" {
		bits = append(bits, stage)
	}
	if w.item.HasThumbnail {
		bits = append(bits, "thumb:yes")
	}
	if len(bits) > 0 {
		status = status + " (" + strings.Join(bits, ", ") + ")"
	}

	if status == w.activeLine {
		return nil
	}
	w.activeLine = status
	_, err := fmt.Fprintf(w.dst, "\r\033[2K%s", status)
	return err
}

func (w *CompactLogWriter) finalizeItemLocked() error {
	if !w.item.CompletionObserved || strings.TrimSpace(w.item.Name) == "" {
		w.item = itemState{}
		return nil
	}

	result := "[done]"
	if w.item.AlreadyPresent {
		result = "[skip]"
	}

	line := fmt.Sprintf("%s %s", result, w.item.Name)
	flags := []string{}
	if w.item.HasThumbnail {
		flags = append(flags, "thumb")
	}
	if w.item.HasAudio {
		flags = append(flags, "audio")
	}
	if w.item.AlreadyPresent {
		flags = append(flags, "already-present")
	}
	if len(flags) > 0 {
		line += " (" + strings.Join(flags, ", ") + ")"
	}

	w.item = itemState{}
	return w.printPersistentLocked(line)
}

func (w *CompactLogWriter) printPersistentLocked(line string) error {
	if err := w.clearActiveLineLocked(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w.dst, line)
	return err
}

func (w *CompactLogWriter) clearActiveLineLocked() error {
	if !w.interactive || w.activeLine == "" {
		return nil
	}
	w.activeLine = ""
	_, err := fmt.Fprint(w.dst, "\r\033[2K")
	return err
}

func shouldSuppressDownloaderNoise(line string) bool {
	for _, prefix := range []string{
		"[youtube] ",
		"[youtube:tab] ",
		"[generic] ",
		"[info] ",
		"[hlsnative] ",
		"[dashsegments] ",
		"[ThumbnailsConvertor] ",
		"[FixupM4a] ",
		"[Metadata] ",
		"[download] Downloading playlist: ",
		"[download] Finished downloading playlist: ",
		"[download] Downloading item ",
		"Deleting original file ",
	} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func looksLikeWarningOrError(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "warning:") ||
		strings.HasPrefix(lower, "warn:") ||
		strings.HasPrefix(lower, "error:") ||
		strings.Contains(lower, "traceback")
}

func itemNameFromPath(pathLike string) string {
	trimmed := strings.Trim(strings.TrimSpace(pathLike), "\"")
	base := filepath.Base(trimmed)
	ext := filepath.Ext(base)
	if ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
