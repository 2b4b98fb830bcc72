package config

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValidateSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.CacheDir = "/tmp/ydl-cache"
	cfg.URLs = []string{"https://www.youtube.com/watch?v=abc"}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateFailure(t *testing.T) {
	cfg := Config{
		Version: 2,
		Defaults: Defaults{
			CacheDir:              "relative/cache",
			AudioFormat:           "wma",
			AudioQuality:          "loud",
			Threads:               0,
			CommandTimeoutSeconds: 0,
			ChapterProbe:          "xml",
		},
		Options: Options{WriteDummyMP3: true},
		URLs:    []string{"notaurl", "https://example.com/a", "https://example.com/a"},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Problems) < 10 {
		t.Fatalf("expected multiple problems, got %v", validationErr.Problems)
	}
	if !strings.Contains(err.Error(), "duplicate url") {
		t.Fatalf("expected duplicate url problem, got %v", err)
	}
}

func TestDefaultTemplateIsValid(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(DefaultTemplate()), &cfg); err != nil {
		t.Fatalf("parse template: %v", err)
	}
	if err := Validate(cfg); err != nil {
		if strings.Contains(err.Error(), "cache_dir") {
			t.Skipf("cache dir is relative in this environment: %v", err)
		}
		t.Fatalf("expected template to validate, got %v", err)
	}
	if !cfg.Options.Import || cfg.Options.KeepFiles {
		t.Fatalf("unexpected template options: %+v", cfg.Options)
	}
}
