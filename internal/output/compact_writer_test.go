package output

import (
	"bytes"
	"strings"
	"testing"
)

const downloadLog = `[youtube] Extracting URL: https://www.youtube.com/watch?v=abc
[youtube] abc: Downloading webpage
[info] abc: Downloading 1 format(s): 251
[info] Writing video thumbnail 41 to: /cache/abc/abc.webp
[download] Destination: /cache/abc/abc.webm
[download]   3.8% of    3.45MiB at  512.00KiB/s ETA 00:07
[download]  55.2% of    3.45MiB at    1.20MiB/s ETA 00:01
[download] 100% of    3.45MiB in 00:00:02 at 1.31MiB/s
[ExtractAudio] Destination: /cache/abc/abc.mp3
Deleting original file /cache/abc/abc.webm (pass -k to keep)
`

func TestCompactLogWriterPersistsOnlyItemResults(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewCompactLogWriterWithOptions(buf, CompactLogOptions{Interactive: false})

	if _, err := writer.Write([]byte(downloadLog)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	out := buf.String()
	if strings.TrimSpace(out) != "[done] abc (thumb, audio)" {
		t.Fatalf("expected a single result line, got: %q", out)
	}
}

func TestCompactLogWriterReportsAlreadyDownloaded(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewCompactLogWriterWithOptions(buf, CompactLogOptions{Interactive: false})

	payload := "[download] /cache/abc/abc.webm has already been downloaded\n" +
		"[ExtractAudio] Not converting audio /cache/abc/abc.mp3; file is already in target format mp3\n"
	if _, err := writer.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if !strings.Contains(buf.String(), "[skip] abc (audio, already-present)") {
		t.Fatalf("expected already-present line, got: %s", buf.String())
	}
}

func TestCompactLogWriterKeepsWarningsAndErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewCompactLogWriterWithOptions(buf, CompactLogOptions{Interactive: false})

	payload := "WARNING: [youtube] abc: nsig extraction failed\n" +
		"ERROR: [youtube] xyz: Video unavailable\n"
	if _, err := writer.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "nsig extraction failed") || !strings.Contains(out, "Video unavailable") {
		t.Fatalf("expected warning and error lines, got: %s", out)
	}
}

func TestCompactLogWriterWritesPromptsImmediately(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewCompactLogWriterWithOptions(buf, CompactLogOptions{Interactive: false})

	if _, err := writer.Write([]byte("Apply, More candidates, Skip, Use as-is? ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "Apply, More candidates, Skip, Use as-is? " {
		t.Fatalf("expected prompt before newline, got: %q", buf.String())
	}

	if _, err := writer.Write([]byte("[A]\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if buf.String() != "Apply, More candidates, Skip, Use as-is? [A]\n" {
		t.Fatalf("unexpected prompt continuation: %q", buf.String())
	}
}

func TestCompactLogWriterInteractiveRendersProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewCompactLogWriterWithOptions(buf, CompactLogOptions{Interactive: true})

	if _, err := writer.Write([]byte(downloadLog)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[in-progress] abc (downloading 55.2%") {
		t.Fatalf("expected progress status, got: %q", out)
	}
	if !strings.Contains(out, "\r\033[2K") {
		t.Fatalf("expected in-place updates, got: %q", out)
	}
	if !strings.Contains(out, "[done] abc") {
		t.Fatalf("expected final done line, got: %q", out)
	}
}
