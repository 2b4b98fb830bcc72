package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmassuchetto/beets-ydl/internal/adapters/beets"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ffmpeg"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ffprobe"
	"github.com/vmassuchetto/beets-ydl/internal/adapters/ytdlp"
	"github.com/vmassuchetto/beets-ydl/internal/config"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	return r.ErrorCount() > 0
}

func (r Report) ErrorCount() int {
	return r.count(SeverityError)
}

func (r Report) WarningCount() int {
	return r.count(SeverityWarn)
}

func (r Report) count(severity Severity) int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == severity {
			count++
		}
	}
	return count
}

type Checker struct {
	LookPath      func(string) (string, error)
	ReadVersion   func(ctx context.Context, binary string, flag string) (string, error)
	Getenv        func(string) string
	CheckWritable func(string) error
	Stat          func(string) (fs.FileInfo, error)
	HomeDir       func() (string, error)
	WorkingDir    func() (string, error)
	Matrix        map[string]dependencyMatrixRule
}

func NewChecker() *Checker {
	return &Checker{
		LookPath:    exec.LookPath,
		ReadVersion: defaultReadVersion,
		Getenv:      os.Getenv,
		CheckWritable: func(path string) error {
			return checkDirWritable(path)
		},
		Stat:       os.Stat,
		HomeDir:    os.UserHomeDir,
		WorkingDir: os.Getwd,
		Matrix:     defaultDependencyMatrix(),
	}
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	for _, dep := range requiredBinaries(cfg, c.matrix()) {
		report.Checks = append(report.Checks, c.checkDependency(ctx, dep)...)
	}

	report.Checks = append(report.Checks, c.checkCacheDir(cfg)...)
	report.Checks = append(report.Checks, c.netrcChecks()...)
	if check, ok := c.beetsConfigCheck(); ok {
		report.Checks = append(report.Checks, check)
	}

	if len(cfg.URLs) == 0 {
		report.Checks = append(report.Checks, Check{Severity: SeverityWarn, Name: "config", Message: "no default urls configured; pass urls on the command line"})
	}

	return report
}

func (c *Checker) checkDependency(ctx context.Context, dep dependency) []Check {
	missingSeverity := SeverityError
	if !dep.Required {
		missingSeverity = SeverityWarn
	}

	location, err := c.LookPath(dep.Binary)
	if err != nil {
		message := fmt.Sprintf("%s not found in PATH", dep.Binary)
		if dep.Reason != "" {
			message = fmt.Sprintf("%s (%s)", message, dep.Reason)
		}
		return []Check{{Severity: missingSeverity, Name: "dependency", Message: message}}
	}

	checks := []Check{{
		Severity: SeverityInfo,
		Name:     "dependency",
		Message:  fmt.Sprintf("%s found at %s", dep.Binary, location),
	}}

	output, versionErr := c.ReadVersion(ctx, dep.Binary, dep.VersionFlag)
	if versionErr != nil {
		return append(checks, Check{
			Severity: SeverityWarn,
			Name:     "dependency",
			Message:  fmt.Sprintf("%s version could not be read: %v", dep.Binary, versionErr),
		})
	}

	version, parseErr := extractVersion(output)
	if parseErr != nil {
		return append(checks, Check{
			Severity: SeverityWarn,
			Name:     "dependency",
			Message:  fmt.Sprintf("%s version output is unrecognized: %q", dep.Binary, firstLine(output)),
		})
	}

	if compareVersions(version, dep.MinVersion) < 0 {
		return append(checks, Check{
			Severity: SeverityError,
			Name:     "dependency",
			Message:  fmt.Sprintf("%s version %s is below minimum %s", dep.Binary, version, dep.MinVersion),
		})
	}

	if dep.Matrix != nil {
		if reason, knownBad := dep.Matrix.KnownBad[version]; knownBad {
			message := fmt.Sprintf("%s version %s is blocked by compatibility matrix", dep.Binary, version)
			if strings.TrimSpace(reason) != "" {
				message = fmt.Sprintf("%s: %s", message, reason)
			}
			return append(checks, Check{Severity: SeverityError, Name: "dependency", Message: message})
		}
		if strings.TrimSpace(dep.Matrix.MaxVersionExclusive) != "" &&
			compareVersions(version, dep.Matrix.MaxVersionExclusive) >= 0 {
			return append(checks, Check{
				Severity: SeverityWarn,
				Name:     "dependency",
				Message: fmt.Sprintf(
					"%s version %s is newer than the tested range >=%s and <%s",
					dep.Binary,
					version,
					dep.MinVersion,
					dep.Matrix.MaxVersionExclusive,
				),
			})
		}
	}

	return append(checks, Check{
		Severity: SeverityInfo,
		Name:     "dependency",
		Message:  fmt.Sprintf("%s version %s is compatible", dep.Binary, version),
	})
}

func (c *Checker) checkCacheDir(cfg config.Config) []Check {
	cacheDir, err := config.ExpandPath(cfg.Defaults.CacheDir)
	if err != nil || strings.TrimSpace(cacheDir) == "" {
		return []Check{{Severity: SeverityError, Name: "filesystem", Message: fmt.Sprintf("cache_dir is invalid: %v", err)}}
	}

	target := c.nearestExistingDir(cacheDir)
	if err := c.CheckWritable(target); err != nil {
		return []Check{{Severity: SeverityError, Name: "filesystem", Message: fmt.Sprintf("cache_dir %s is not writable: %v", cacheDir, err)}}
	}
	if target != cacheDir {
		return []Check{{Severity: SeverityInfo, Name: "filesystem", Message: fmt.Sprintf("cache_dir %s will be created under %s", cacheDir, target)}}
	}
	return []Check{{Severity: SeverityInfo, Name: "filesystem", Message: fmt.Sprintf("cache_dir %s is writable", cacheDir)}}
}

// nearestExistingDir walks up from path to the first directory that exists.
func (c *Checker) nearestExistingDir(path string) string {
	stat := c.Stat
	if stat == nil {
		stat = os.Stat
	}
	current := filepath.Clean(path)
	for {
		if info, err := stat(current); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}

func (c *Checker) netrcChecks() []Check {
	homeDir := c.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	stat := c.Stat
	if stat == nil {
		stat = os.Stat
	}

	home, err := homeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".netrc")
	info, err := stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Check{{Severity: SeverityInfo, Name: "auth", Message: "no ~/.netrc found; yt-dlp will run without credentials"}}
		}
		return []Check{{Severity: SeverityWarn, Name: "auth", Message: fmt.Sprintf("cannot read %s: %v", path, err)}}
	}

	checks := []Check{{Severity: SeverityInfo, Name: "auth", Message: fmt.Sprintf("yt-dlp will authenticate with %s", path)}}
	if info.Mode().Perm()&0o077 != 0 {
		checks = append(checks, Check{
			Severity: SeverityWarn,
			Name:     "auth",
			Message:  fmt.Sprintf("%s is readable by other users (mode %04o); run chmod 600", path, info.Mode().Perm()),
		})
	}
	return checks
}

func (c *Checker) beetsConfigCheck() (Check, bool) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if !strings.EqualFold(strings.TrimSpace(getenv("BEETS_ENV")), "develop") {
		return Check{}, false
	}

	workingDir := c.WorkingDir
	if workingDir == nil {
		workingDir = os.Getwd
	}
	stat := c.Stat
	if stat == nil {
		stat = os.Stat
	}

	wd, err := workingDir()
	if err != nil {
		return Check{Severity: SeverityWarn, Name: "config", Message: fmt.Sprintf("cannot resolve working directory: %v", err)}, true
	}
	path := filepath.Join(wd, beets.DevelopConfig)
	if _, err := stat(path); err != nil {
		return Check{Severity: SeverityError, Name: "config", Message: fmt.Sprintf("BEETS_ENV=develop but %s is missing", path)}, true
	}
	return Check{Severity: SeverityInfo, Name: "config", Message: fmt.Sprintf("beet will use %s", path)}, true
}

type dependency struct {
	Key         string
	Binary      string
	MinVersion  string
	VersionFlag string
	Required    bool
	Reason      string
	Matrix      *dependencyMatrixRule
}

type dependencyMatrixRule struct {
	MinVersion          string
	MaxVersionExclusive string
	KnownBad            map[string]string
}

func defaultDependencyMatrix() map[string]dependencyMatrixRule {
	return map[string]dependencyMatrixRule{
		"yt-dlp": {
			MaxVersionExclusive: "2028.0.0",
			KnownBad:            map[string]string{},
		},
		"ffmpeg": {
			KnownBad: map[string]string{},
		},
	}
}

func cloneDependencyMatrix(input map[string]dependencyMatrixRule) map[string]dependencyMatrixRule {
	cloned := make(map[string]dependencyMatrixRule, len(input))
	for key, rule := range input {
		bad := make(map[string]string, len(rule.KnownBad))
		for version, reason := range rule.KnownBad {
			bad[version] = reason
		}
		cloned[key] = dependencyMatrixRule{
			MinVersion:          rule.MinVersion,
			MaxVersionExclusive: rule.MaxVersionExclusive,
			KnownBad:            bad,
		}
	}
	return cloned
}

func (c *Checker) matrix() map[string]dependencyMatrixRule {
	if len(c.Matrix) == 0 {
		return defaultDependencyMatrix()
	}
	return cloneDependencyMatrix(c.Matrix)
}

// requiredBinaries lists every external tool the configured options reach.
// ffprobe is optional when chapters are read in process. ffmpeg is only optional when nothing is split, tagged through it or
// written as a dummy; beet only when nothing is imported.
func requiredBinaries(cfg config.Config, matrix map[string]dependencyMatrixRule) []dependency {
	downloader := ytdlp.New(cfg.Tools.YTDLP)
	prober := ffprobe.New(cfg.Tools.FFprobe, cfg.Defaults.ChapterProbe)
	transcoder := ffmpeg.New(cfg.Tools.FFmpeg)
	importer := beets.New(cfg.Tools.Beet, nil)

	ffmpegNeeded := cfg.Options.SplitFiles || cfg.Options.WriteDummyMP3 || cfg.Defaults.AudioFormat != "mp3"
	beetNeeded := cfg.Options.Import

	deps := []dependency{
		{
			Key:         "yt-dlp",
			Binary:      downloader.Binary(),
			MinVersion:  downloader.MinVersion(),
			VersionFlag: "--version",
			Required:    true,
		},
		{
			Key:         "ffprobe",
			Binary:      prober.Binary(),
			MinVersion:  prober.MinVersion(),
			VersionFlag: "-version",
			Required:    cfg.Defaults.ChapterProbe != config.ChapterProbeAudiometa,
			Reason:      "needed to read chapter markers",
		},
		{
			Key:         "ffmpeg",
			Binary:      transcoder.Binary(),
			MinVersion:  transcoder.MinVersion(),
			VersionFlag: "-version",
			Required:    ffmpegNeeded,
			Reason:      "needed to split albums and write dummy files",
		},
		{
			Key:         "beet",
			Binary:      importer.Binary(),
			MinVersion:  importer.MinVersion(),
			VersionFlag: "--version",
			Required:    beetNeeded,
			Reason:      "needed to import and to skip items already in the library",
		},
	}

	for i := range deps {
		rule := matrixRulePointer(matrix, deps[i].Key)
		if rule == nil {
			continue
		}
		if strings.TrimSpace(rule.MinVersion) != "" {
			deps[i].MinVersion = maxVersion(deps[i].MinVersion, rule.MinVersion)
		}
		deps[i].Matrix = rule
	}
	return deps
}

func matrixRulePointer(matrix map[string]dependencyMatrixRule, key string) *dependencyMatrixRule {
	rule, ok := matrix[key]
	if !ok {
		return nil
	}
	cloned := dependencyMatrixRule{
		MinVersion:          rule.MinVersion,
		MaxVersionExclusive: rule.MaxVersionExclusive,
		KnownBad:            map[string]string{},
	}
	for version, reason := range rule.KnownBad {
		cloned.KnownBad[version] = reason
	}
	return &cloned
}

func maxVersion(lhs string, rhs string) string {
	if compareVersions(lhs, rhs) >= 0 {
		return lhs
	}
	return rhs
}

func defaultReadVersion(ctx context.Context, binary string, flag string) (string, error) {
	if flag == "" {
		flag = "--version"
	}
	cmd := exec.CommandContext(ctx, binary, flag)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	file, err := os.CreateTemp(path, ".ydl-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}

// ffmpeg builds print "n6.1" or "4.4.2-0ubuntu0.22.04.1"; yt-dlp prints a
// dotted date.
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

func extractVersion(raw string) (string, error) {
	matches := versionPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return "", fmt.Errorf("no version found")
	}
	patch := matches[3]
	if patch == "" {
		patch = "0"
	}
	return fmt.Sprintf("%s.%s.%s", matches[1], matches[2], patch), nil
}

func compareVersions(lhs string, rhs string) int {
	leftParts := strings.Split(lhs, ".")
	rightParts := strings.Split(rhs, ".")
	for i := 0; i < 3; i++ {
		leftValue := 0
		rightValue := 0
		if i < len(leftParts) {
			leftValue, _ = strconv.Atoi(leftParts[i])
		}
		if i < len(rightParts) {
			rightValue, _ = strconv.Atoi(rightParts[i])
		}
		if leftValue > rightValue {
			return 1
		}
		if leftValue < rightValue {
			return -1
		}
	}
	return 0
}

func firstLine(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	return strings.TrimSpace(line)
}
