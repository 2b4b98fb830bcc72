package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/exitcode"
)

func TestInitWritesTemplateAndCacheDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	configPath := filepath.Join(tmp, "conf", "ydl.yaml")

	app, stdout, _ := newTestApp(nil)
	root := newRootCommand(app)
	root.SetArgs([]string{"init", "--config", configPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg, err := config.Load(config.LoadOptions{ExplicitPath: configPath, WorkingDir: tmp, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("written config is invalid: %v", err)
	}
	if info, err := os.Stat(filepath.Join(tmp, "cache", "ydl")); err != nil || !info.IsDir() {
		t.Fatalf("expected cache dir to be created: %v", err)
	}
	if !strings.Contains(stdout.String(), "Wrote config: "+configPath) {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	app, _, _ = newTestApp(nil)
	root = newRootCommand(app)
	root.SetArgs([]string{"init", "--config", configPath, "--no-input"})
	if got := mapExitCode(root.Execute()); got != exitcode.RuntimeFailure {
		t.Fatalf("expected refusal to overwrite, got exit %d", got)
	}

	app, _, _ = newTestApp(nil)
	root = newRootCommand(app)
	root.SetArgs([]string{"init", "--config", configPath, "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	configPath := writeTestConfig(t, "https://www.youtube.com/watch?v=abc123")
	app, stdout, _ := newTestApp(nil)
	root := newRootCommand(app)
	root.SetArgs([]string{"validate", "--config", configPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "Config is valid (1 default url(s))." {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	app, stdout, _ = newTestApp(nil)
	root = newRootCommand(app)
	root.SetArgs([]string{"validate", "--config", configPath, "-v"})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate -v: %v", err)
	}
	if !strings.Contains(stdout.String(), "steps: resolve, download, split, tag, import, cleanup") {
		t.Fatalf("expected step summary, got %q", stdout.String())
	}
}

func TestSummarizeConfigFollowsOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Options.Import = false
	cfg.Options.KeepFiles = true
	cfg.Options.WriteDummyMP3 = true

	got := strings.Join(summarizeConfig(cfg).Steps, ",")
	if got != "resolve,download,dummy,tag" {
		t.Fatalf("unexpected steps %q", got)
	}
}
