package ytdlp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmassuchetto/beets-ydl/internal/config"
	"github.com/vmassuchetto/beets-ydl/internal/engine"
	"github.com/vmassuchetto/beets-ydl/internal/tracks"
)

const (
	defaultMinVersion = "2023.03.04"
	outputTemplate    = "%(id)s.%(ext)s"
)

type Adapter struct {
	spec config.ToolSpec
	// NetrcPath enables --netrc when the file exists.
	NetrcPath string
}

func New(spec config.ToolSpec) *Adapter {
	netrc := ""
	if home, err := os.UserHomeDir(); err == nil {
		netrc = filepath.Join(home, ".netrc")
	}
	return &Adapter{spec: spec, NetrcPath: netrc}
}

func (a *Adapter) Binary() string {
	if strings.TrimSpace(a.spec.Bin) == "" {
		return "yt-dlp"
	}
	return a.spec.Bin
}

func (a *Adapter) MinVersion() string {
	if strings.TrimSpace(a.spec.MinVersion) != "" {
		return a.spec.MinVersion
	}
	return defaultMinVersion
}

// InfoSpec dumps the metadata of url, and of every entry when url is a
// playlist, as a single JSON document on stdout.
func (a *Adapter) InfoSpec(url string, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(url) == "" {
		return engine.ExecSpec{}, fmt.Errorf("url is empty")
	}

	args := []string{"--dump-single-json", "--no-warnings", "--ignore-errors"}
	args = append(args, a.authArgs()...)
	args = append(args, a.spec.ExtraArgs...)
	args = append(args, url)

	return engine.ExecSpec{
		Bin:            a.Binary(),
		Args:           args,
		Timeout:        timeout,
		DisplayCommand: engine.FormatCommand(a.Binary(), args),
		CaptureStdout:  true,
		Quiet:          true,
	}, nil
}

func (a *Adapter) DownloadSpec(req engine.DownloadRequest, timeout time.Duration) (engine.ExecSpec, error) {
	if strings.TrimSpace(req.URL) == "" {
		return engine.ExecSpec{}, fmt.Errorf("url is empty")
	}
	if strings.TrimSpace(req.ItemDir) == "" {
		return engine.ExecSpec{}, fmt.Errorf("item directory is empty")
	}

	format := req.AudioFormat
	if format == "" {
		format = "mp3"
	}
	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", format,
	}
	if req.AudioQuality != "" {
		args = append(args, "--audio-quality", req.AudioQuality)
	}
	args = append(args,
		"--restrict-filenames",
		"--no-overwrites",
		"--no-post-overwrites",
		"--write-thumbnail",
		"--no-playlist",
		"--output", filepath.Join(req.ItemDir, outputTemplate),
	)
	if req.KeepVideo {
		args = append(args, "--keep-video")
	}
	args = append(args, a.authArgs()...)
	args = append(args, a.spec.ExtraArgs...)
	args = append(args, req.URL)

	return engine.ExecSpec{
		Bin:            a.Binary(),
		Args:           args,
		Timeout:        timeout,
		DisplayCommand: engine.FormatCommand(a.Binary(), args),
	}, nil
}

func (a *Adapter) authArgs() []string {
	if strings.TrimSpace(a.NetrcPath) == "" {
		return nil
	}
	if info, err := os.Stat(a.NetrcPath); err != nil || info.IsDir() {
		return nil
	}
	return []string{"--netrc", "--netrc-location", a.NetrcPath}
}

type infoJSON struct {
	Type        string      `json:"_type"`
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	WebpageURL  string      `json:"webpage_url"`
	Entries     []*infoJSON `json:"entries"`
}

// ParseInfo flattens a yt-dlp info document into media items. Playlists are
// walked recursively; entries yt-dlp failed to resolve come back as null and
// are dropped.
func (a *Adapter) ParseInfo(payload []byte) ([]tracks.MediaItem, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, fmt.Errorf("empty info document")
	}

	var root infoJSON
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("decode info document: %w", err)
	}

	items := []tracks.MediaItem{}
	seen := map[string]struct{}{}
	var walk func(node *infoJSON)
	walk = func(node *infoJSON) {
		if node == nil {
			return
		}
		if node.Type == "playlist" || node.Type == "multi_video" || node.Entries != nil {
			for _, entry := range node.Entries {
				walk(entry)
			}
			return
		}
		if strings.TrimSpace(node.ID) == "" {
			return
		}
		if _, dup := seen[node.ID]; dup {
			return
		}
		seen[node.ID] = struct{}{}
		items = append(items, tracks.MediaItem{
			ID:          node.ID,
			Title:       node.Title,
			Description: node.Description,
			Duration:    node.Duration,
			WebpageURL:  node.WebpageURL,
		})
	}
	walk(&root)

	return items, nil
}
