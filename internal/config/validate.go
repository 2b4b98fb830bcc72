package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var audioQualityPattern = regexp.MustCompile(`^([0-9]|[0-9]{2,3}[kK]?)$`)

var supportedAudioFormats = map[string]struct{}{
	"best":   {},
	"aac":    {},
	"alac":   {},
	"flac":   {},
	"m4a":    {},
	"mp3":    {},
	"opus":   {},
	"vorbis": {},
	"wav":    {},
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	cacheDir, err := ExpandPath(cfg.Defaults.CacheDir)
	if err != nil || strings.TrimSpace(cacheDir) == "" {
		problems = append(problems, "defaults.cache_dir must be a valid path")
	} else if !filepath.IsAbs(cacheDir) {
		problems = append(problems, "defaults.cache_dir must resolve to an absolute path")
	}

	if _, ok := supportedAudioFormats[cfg.Defaults.AudioFormat]; !ok {
		problems = append(problems, fmt.Sprintf("defaults.audio_format %q is not supported", cfg.Defaults.AudioFormat))
	}
	if !audioQualityPattern.MatchString(cfg.Defaults.AudioQuality) {
		problems = append(problems, "defaults.audio_quality must be a VBR level 0-9 or a bitrate such as 192 or 192K")
	}
	if cfg.Defaults.Threads <= 0 {
		problems = append(problems, "defaults.threads must be > 0")
	}
	if cfg.Defaults.CommandTimeoutSeconds <= 0 {
		problems = append(problems, "defaults.command_timeout_seconds must be > 0")
	}
	switch cfg.Defaults.ChapterProbe {
	case ChapterProbeJSON, ChapterProbeText, ChapterProbeAudiometa:
	default:
		problems = append(problems, fmt.Sprintf("defaults.chapter_probe must be %q, %q or %q", ChapterProbeJSON, ChapterProbeText, ChapterProbeAudiometa))
	}

	if cfg.Options.WriteDummyMP3 && cfg.Defaults.AudioFormat != "mp3" {
		problems = append(problems, "options.write_dummy_mp3 requires defaults.audio_format mp3")
	}

	tools := []struct {
		name string
		spec ToolSpec
	}{
		{"ytdlp", cfg.Tools.YTDLP},
		{"ffmpeg", cfg.Tools.FFmpeg},
		{"ffprobe", cfg.Tools.FFprobe},
		{"beet", cfg.Tools.Beet},
	}
	for _, tool := range tools {
		if strings.TrimSpace(tool.spec.Bin) == "" {
			problems = append(problems, fmt.Sprintf("tools.%s.bin must be set", tool.name))
		}
	}

	seenURLs := map[string]struct{}{}
	for _, raw := range cfg.URLs {
		if err := validateURL(raw); err != nil {
			problems = append(problems, fmt.Sprintf("url %q is invalid: %v", raw, err))
			continue
		}
		if _, exists := seenURLs[raw]; exists {
			problems = append(problems, fmt.Sprintf("duplicate url %q", raw))
		}
		seenURLs[raw] = struct{}{}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
