package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version  *int         `yaml:"version"`
	Defaults fileDefaults `yaml:"defaults"`
	Options  fileOptions  `yaml:"options"`
	Tools    fileTools    `yaml:"tools"`
	URLs     *[]string    `yaml:"urls"`
}

type fileDefaults struct {
	CacheDir              *string `yaml:"cache_dir"`
	AudioFormat           *string `yaml:"audio_format"`
	AudioQuality          *string `yaml:"audio_quality"`
	Threads               *int    `yaml:"threads"`
	CommandTimeoutSeconds *int    `yaml:"command_timeout_seconds"`
	ChapterProbe          *string `yaml:"chapter_probe"`
	FoldAccents           *bool   `yaml:"fold_accents"`
}

type fileOptions struct {
	Download      *bool `yaml:"download"`
	SplitFiles    *bool `yaml:"split_files"`
	Import        *bool `yaml:"import"`
	ForceDownload *bool `yaml:"force_download"`
	KeepFiles     *bool `yaml:"keep_files"`
	WriteDummyMP3 *bool `yaml:"write_dummy_mp3"`
	Verbose       *bool `yaml:"verbose"`
}

type fileTools struct {
	YTDLP   *fileToolSpec `yaml:"ytdlp"`
	FFmpeg  *fileToolSpec `yaml:"ffmpeg"`
	FFprobe *fileToolSpec `yaml:"ffprobe"`
	Beet    *fileToolSpec `yaml:"beet"`
}

type fileToolSpec struct {
	Bin        *string   `yaml:"bin"`
	ExtraArgs  *[]string `yaml:"extra_args"`
	MinVersion *string   `yaml:"min_version"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	normalize(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}

	mergeString(&cfg.Defaults.CacheDir, fc.Defaults.CacheDir)
	mergeString(&cfg.Defaults.AudioFormat, fc.Defaults.AudioFormat)
	mergeString(&cfg.Defaults.AudioQuality, fc.Defaults.AudioQuality)
	if fc.Defaults.Threads != nil {
		cfg.Defaults.Threads = *fc.Defaults.Threads
	}
	if fc.Defaults.CommandTimeoutSeconds != nil {
		cfg.Defaults.CommandTimeoutSeconds = *fc.Defaults.CommandTimeoutSeconds
	}
	if fc.Defaults.ChapterProbe != nil {
		cfg.Defaults.ChapterProbe = ChapterProbe(strings.TrimSpace(*fc.Defaults.ChapterProbe))
	}
	mergeBool(&cfg.Defaults.FoldAccents, fc.Defaults.FoldAccents)

	mergeBool(&cfg.Options.Download, fc.Options.Download)
	mergeBool(&cfg.Options.SplitFiles, fc.Options.SplitFiles)
	mergeBool(&cfg.Options.Import, fc.Options.Import)
	mergeBool(&cfg.Options.ForceDownload, fc.Options.ForceDownload)
	mergeBool(&cfg.Options.KeepFiles, fc.Options.KeepFiles)
	mergeBool(&cfg.Options.WriteDummyMP3, fc.Options.WriteDummyMP3)
	mergeBool(&cfg.Options.Verbose, fc.Options.Verbose)

	mergeTool(&cfg.Tools.YTDLP, fc.Tools.YTDLP)
	mergeTool(&cfg.Tools.FFmpeg, fc.Tools.FFmpeg)
	mergeTool(&cfg.Tools.FFprobe, fc.Tools.FFprobe)
	mergeTool(&cfg.Tools.Beet, fc.Tools.Beet)

	if fc.URLs != nil {
		cfg.URLs = make([]string, 0, len(*fc.URLs))
		for _, raw := range *fc.URLs {
			if trimmed := strings.TrimSpace(raw); trimmed != "" {
				cfg.URLs = append(cfg.URLs, trimmed)
			}
		}
	}

	return nil
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func mergeBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func mergeTool(dst *ToolSpec, src *fileToolSpec) {
	if src == nil {
		return
	}
	mergeString(&dst.Bin, src.Bin)
	mergeString(&dst.MinVersion, src.MinVersion)
	if src.ExtraArgs != nil {
		dst.ExtraArgs = append([]string{}, (*src.ExtraArgs)...)
	}
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["YDL_CACHE_DIR"]); value != "" {
		cfg.Defaults.CacheDir = value
	}
	if value := strings.TrimSpace(env["YDL_AUDIO_FORMAT"]); value != "" {
		cfg.Defaults.AudioFormat = value
	}
	if value := strings.TrimSpace(env["YDL_CHAPTER_PROBE"]); value != "" {
		cfg.Defaults.ChapterProbe = ChapterProbe(value)
	}
	if value := strings.TrimSpace(env["YDL_THREADS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid YDL_THREADS value %q: %w", value, err)
		}
		cfg.Defaults.Threads = parsed
	}
	if value := strings.TrimSpace(env["YDL_COMMAND_TIMEOUT_SECONDS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid YDL_COMMAND_TIMEOUT_SECONDS value %q: %w", value, err)
		}
		cfg.Defaults.CommandTimeoutSeconds = parsed
	}

	boolOverrides := []struct {
		key string
		dst *bool
	}{
		{"YDL_VERBOSE", &cfg.Options.Verbose},
		{"YDL_KEEP_FILES", &cfg.Options.KeepFiles},
		{"YDL_FORCE_DOWNLOAD", &cfg.Options.ForceDownload},
		{"YDL_FOLD_ACCENTS", &cfg.Defaults.FoldAccents},
	}
	for _, override := range boolOverrides {
		value := strings.TrimSpace(env[override.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", override.key, value, err)
		}
		*override.dst = parsed
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Defaults.AudioFormat = strings.ToLower(cfg.Defaults.AudioFormat)
	cfg.Defaults.ChapterProbe = ChapterProbe(strings.ToLower(string(cfg.Defaults.ChapterProbe)))
	if cfg.Defaults.ChapterProbe == "" {
		cfg.Defaults.ChapterProbe = ChapterProbeJSON
	}

	defaults := DefaultConfig().Tools
	fillBin(&cfg.Tools.YTDLP, defaults.YTDLP.Bin)
	fillBin(&cfg.Tools.FFmpeg, defaults.FFmpeg.Bin)
	fillBin(&cfg.Tools.FFprobe, defaults.FFprobe.Bin)
	fillBin(&cfg.Tools.Beet, defaults.Beet.Bin)
}

func fillBin(spec *ToolSpec, fallback string) {
	if strings.TrimSpace(spec.Bin) == "" {
		spec.Bin = fallback
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
