package config

import "fmt"

func DefaultTemplate() string {
	return fmt.Sprintf(`version: 1
defaults:
  cache_dir: %q
  audio_format: "mp3"
  audio_quality: "192"
  threads: %d
  command_timeout_seconds: %d
  # json or text (ffprobe), or audiometa (read in process).
  chapter_probe: "json"
  fold_accents: false
options:
  download: true
  split_files: true
  import: true
  force_download: false
  keep_files: false
  write_dummy_mp3: false
  verbose: false
tools:
  ytdlp:
    bin: "yt-dlp"
  ffmpeg:
    bin: "ffmpeg"
  ffprobe:
    bin: "ffprobe"
  beet:
    bin: "beet"
# Processed when ydl is called without arguments.
urls:
  - "https://www.youtube.com/watch?v=replace-me"
`, defaultCacheDir(), 1, 900)
}
