package doctor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/config"
)

type fakeFileInfo struct {
	name string
	mode fs.FileMode
	dir  bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() any           { return nil }

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Defaults.CacheDir = "/tmp/ydl-cache"
	cfg.URLs = []string{"https://www.youtube.com/playlist?list=PL1"}
	return cfg
}

func versions(values map[string]string) func(context.Context, string, string) (string, error) {
	return func(ctx context.Context, binary string, flag string) (string, error) {
		if value, ok := values[binary]; ok {
			return value, nil
		}
		return "", fmt.Errorf("unexpected binary %s", binary)
	}
}

var healthyVersions = map[string]string{
	"yt-dlp":  "2024.08.06\n",
	"ffprobe": "ffprobe version 6.1.1 Copyright (c) 2007-2023 the FFmpeg developers\n",
	"ffmpeg":  "ffmpeg version n6.1 Copyright (c) 2000-2023 the FFmpeg developers\n",
	"beet":    "beets version 1.6.0\nPython version 3.11.4\n",
}

func healthyChecker() *Checker {
	return &Checker{
		LookPath:      func(name string) (string, error) { return "/usr/bin/" + name, nil },
		ReadVersion:   versions(healthyVersions),
		Getenv:        func(key string) string { return "" },
		CheckWritable: func(path string) error { return nil },
		Stat: func(path string) (fs.FileInfo, error) {
			if strings.HasSuffix(path, ".netrc") {
				return nil, fs.ErrNotExist
			}
			return fakeFileInfo{name: filepath.Base(path), dir: true}, nil
		},
		HomeDir:    func() (string, error) { return "/home/user", nil },
		WorkingDir: func() (string, error) { return "/work", nil },
	}
}

func hasCheck(report Report, severity Severity, snippet string) bool {
	for _, check := range report.Checks {
		if check.Severity == severity && strings.Contains(check.Message, snippet) {
			return true
		}
	}
	return false
}

func TestDoctorHealthyToolchain(t *testing.T) {
	report := healthyChecker().Check(context.Background(), testConfig())
	if report.HasErrors() {
		t.Fatalf("expected no errors, got %+v", report.Checks)
	}
	for _, want := range []string{
		"yt-dlp version 2024.08.06 is compatible",
		"ffmpeg version 6.1.0 is compatible",
		"ffprobe version 6.1.1 is compatible",
		"beet version 1.6.0 is compatible",
		"cache_dir /tmp/ydl-cache is writable",
	} {
		if !hasCheck(report, SeverityInfo, want) {
			t.Fatalf("expected info check %q, got %+v", want, report.Checks)
		}
	}
}

func TestDoctorMissingBinary(t *testing.T) {
	checker := healthyChecker()
	checker.LookPath = func(name string) (string, error) { return "", fmt.Errorf("not found") }

	report := checker.Check(context.Background(), testConfig())
	if !report.HasErrors() {
		t.Fatalf("expected doctor errors for missing binary")
	}
	if !hasCheck(report, SeverityError, "yt-dlp not found in PATH") {
		t.Fatalf("expected yt-dlp error, got %+v", report.Checks)
	}
}

func TestDoctorOptionalBinaryOnlyWarns(t *testing.T) {
	checker := healthyChecker()
	checker.LookPath = func(name string) (string, error) {
		if name == "beet" {
			return "", fmt.Errorf("not found")
		}
		return "/usr/bin/" + name, nil
	}

	cfg := testConfig()
	cfg.Options.Import = false
	report := checker.Check(context.Background(), cfg)
	if report.HasErrors() {
		t.Fatalf("expected only warnings, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityWarn, "beet not found in PATH") {
		t.Fatalf("expected beet warning, got %+v", report.Checks)
	}
}

func TestDoctorFFprobeOptionalWithInProcessChapters(t *testing.T) {
	checker := healthyChecker()
	checker.LookPath = func(name string) (string, error) {
		if name == "ffprobe" {
			return "", fmt.Errorf("not found")
		}
		return "/usr/bin/" + name, nil
	}

	report := checker.Check(context.Background(), testConfig())
	if !hasCheck(report, SeverityError, "ffprobe not found in PATH (needed to read chapter markers)") {
		t.Fatalf("expected ffprobe error with json probing, got %+v", report.Checks)
	}

	cfg := testConfig()
	cfg.Defaults.ChapterProbe = config.ChapterProbeAudiometa
	report = checker.Check(context.Background(), cfg)
	if report.HasErrors() {
		t.Fatalf("expected only warnings, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityWarn, "ffprobe not found in PATH") {
		t.Fatalf("expected ffprobe warning, got %+v", report.Checks)
	}
}

func TestDoctorBadVersion(t *testing.T) {
	checker := healthyChecker()
	checker.ReadVersion = versions(map[string]string{
		"yt-dlp":  "2021.12.01",
		"ffprobe": healthyVersions["ffprobe"],
		"ffmpeg":  healthyVersions["ffmpeg"],
		"beet":    "beets version 1.4.9",
	})

	report := checker.Check(context.Background(), testConfig())
	if report.ErrorCount() != 2 {
		t.Fatalf("expected 2 version errors, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityError, "beet version 1.4.9 is below minimum 1.6.0") {
		t.Fatalf("expected beet version error, got %+v", report.Checks)
	}
}

func TestDoctorMatrixBlocksKnownBadVersion(t *testing.T) {
	checker := healthyChecker()
	checker.Matrix = map[string]dependencyMatrixRule{
		"ffmpeg": {KnownBad: map[string]string{"6.1.0": "broken copy of chapter metadata"}},
	}

	report := checker.Check(context.Background(), testConfig())
	if !hasCheck(report, SeverityError, "ffmpeg version 6.1.0 is blocked by compatibility matrix: broken copy") {
		t.Fatalf("expected matrix error, got %+v", report.Checks)
	}
}

func TestDoctorUnwritableCacheDir(t *testing.T) {
	checker := healthyChecker()
	checker.CheckWritable = func(path string) error { return fmt.Errorf("permission denied") }

	report := checker.Check(context.Background(), testConfig())
	if !hasCheck(report, SeverityError, "cache_dir /tmp/ydl-cache is not writable") {
		t.Fatalf("expected filesystem error, got %+v", report.Checks)
	}
}

func TestDoctorCacheDirCreatedUnderExistingParent(t *testing.T) {
	checker := healthyChecker()
	var checked string
	checker.CheckWritable = func(path string) error {
		checked = path
		return nil
	}
	checker.Stat = func(path string) (fs.FileInfo, error) {
		if path == "/tmp" || path == "/" {
			return fakeFileInfo{name: filepath.Base(path), dir: true}, nil
		}
		return nil, fs.ErrNotExist
	}

	report := checker.Check(context.Background(), testConfig())
	if checked != "/tmp" {
		t.Fatalf("expected writability check on /tmp, got %q", checked)
	}
	if !hasCheck(report, SeverityInfo, "will be created under /tmp") {
		t.Fatalf("expected creation notice, got %+v", report.Checks)
	}
}

func TestDoctorWarnsOnOpenNetrc(t *testing.T) {
	checker := healthyChecker()
	checker.Stat = func(path string) (fs.FileInfo, error) {
		if path == "/home/user/.netrc" {
			return fakeFileInfo{name: ".netrc", mode: 0o644}, nil
		}
		return fakeFileInfo{name: filepath.Base(path), dir: true}, nil
	}

	report := checker.Check(context.Background(), testConfig())
	if !hasCheck(report, SeverityInfo, "yt-dlp will authenticate with /home/user/.netrc") {
		t.Fatalf("expected netrc info, got %+v", report.Checks)
	}
	if !hasCheck(report, SeverityWarn, "readable by other users") {
		t.Fatalf("expected netrc permission warning, got %+v", report.Checks)
	}
}

func TestDoctorDevelopConfigMissing(t *testing.T) {
	checker := healthyChecker()
	checker.Getenv = func(key string) string {
		if key == "BEETS_ENV" {
			return "develop"
		}
		return ""
	}
	checker.Stat = func(path string) (fs.FileInfo, error) {
		if strings.HasSuffix(path, "env.config.yml") || strings.HasSuffix(path, ".netrc") {
			return nil, fs.ErrNotExist
		}
		return fakeFileInfo{name: filepath.Base(path), dir: true}, nil
	}

	report := checker.Check(context.Background(), testConfig())
	if !hasCheck(report, SeverityError, "BEETS_ENV=develop but /work/env.config.yml is missing") {
		t.Fatalf("expected develop config error, got %+v", report.Checks)
	}
}

func TestDoctorWarnsWithoutURLs(t *testing.T) {
	cfg := testConfig()
	cfg.URLs = nil
	report := healthyChecker().Check(context.Background(), cfg)
	if !hasCheck(report, SeverityWarn, "no default urls configured") {
		t.Fatalf("expected url warning, got %+v", report.Checks)
	}
}

func TestExtractVersion(t *testing.T) {
	tests := map[string]string{
		"2024.08.06":                            "2024.08.06",
		"ffmpeg version n6.1 Copyright":         "6.1.0",
		"ffmpeg version 4.4.2-0ubuntu0.22.04.1": "4.4.2",
		"beets version 1.6.0\nPython version 3": "1.6.0",
	}
	for raw, want := range tests {
		got, err := extractVersion(raw)
		if err != nil {
			t.Fatalf("extractVersion(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("extractVersion(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := extractVersion("unknown"); err == nil {
		t.Fatalf("expected error for output without a version")
	}
}

func TestCheckDirWritable(t *testing.T) {
	dir := t.TempDir()
	if err := checkDirWritable(dir); err != nil {
		t.Fatalf("expected writable dir: %v", err)
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := checkDirWritable(file); err == nil {
		t.Fatalf("expected error for regular file")
	}
}
