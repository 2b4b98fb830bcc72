package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "ydl", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ydl", "config.yaml"), nil
}

func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, "ydl.yaml")
}

func defaultCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "ydl")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./.ydl-cache"
	}
	return filepath.Join(home, ".cache", "ydl")
}

func ExpandPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(strings.TrimSpace(raw))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
	}

	return filepath.Clean(expanded), nil
}

// ResolveItemDir returns <cache_dir>/<id>, the directory that holds the
// downloaded audio of one item and the tracks split from it.
func ResolveItemDir(cacheDir string, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid item id %q", id)
	}

	expandedCacheDir, err := ExpandPath(cacheDir)
	if err != nil {
		return "", err
	}
	if expandedCacheDir == "" {
		return "", fmt.Errorf("cache directory is not set")
	}

	return filepath.Join(expandedCacheDir, id), nil
}
