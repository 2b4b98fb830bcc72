package config

type ChapterProbe string

const (
	ChapterProbeJSON ChapterProbe = "json"
	ChapterProbeText ChapterProbe = "text"
	// ChapterProbeAudiometa reads chapters in process instead of running ffprobe.
	ChapterProbeAudiometa ChapterProbe = "audiometa"
)

// Config is loaded once per invocation and treated as read-only afterwards.
// Per-item state lives in engine.ProcessingContext.
type Config struct {
	Version  int      `yaml:"version"`
	Defaults Defaults `yaml:"defaults"`
	Options  Options  `yaml:"options"`
	Tools    Tools    `yaml:"tools"`
	URLs     []string `yaml:"urls"`
}

type Defaults struct {
	CacheDir              string       `yaml:"cache_dir"`
	AudioFormat           string       `yaml:"audio_format"`
	AudioQuality          string       `yaml:"audio_quality"`
	Threads               int          `yaml:"threads"`
	CommandTimeoutSeconds int          `yaml:"command_timeout_seconds"`
	ChapterProbe          ChapterProbe `yaml:"chapter_probe"`
	// FoldAccents keeps the base letter of accented characters in titles
	// ("Rós" -> "Ros") instead of dropping them.
	FoldAccents bool `yaml:"fold_accents"`
}

// Options are the switches of one run. Every one of them can also be set
// from the command line.
type Options struct {
	// Download fetches the audio; when false only metadata is retrieved.
	Download bool `yaml:"download"`
	// SplitFiles cuts albums into one file per track.
	SplitFiles bool `yaml:"split_files"`
	// Import hands the result to the beets importer.
	Import bool `yaml:"import"`
	// ForceDownload processes items that are already in the library.
	ForceDownload bool `yaml:"force_download"`
	// KeepFiles leaves the item cache directory in place after import.
	KeepFiles bool `yaml:"keep_files"`
	// WriteDummyMP3 writes silent tagged stand-ins instead of splitting.
	WriteDummyMP3 bool `yaml:"write_dummy_mp3"`
	Verbose       bool `yaml:"verbose"`
}

type Tools struct {
	YTDLP   ToolSpec `yaml:"ytdlp"`
	FFmpeg  ToolSpec `yaml:"ffmpeg"`
	FFprobe ToolSpec `yaml:"ffprobe"`
	Beet    ToolSpec `yaml:"beet"`
}

type ToolSpec struct {
	Bin        string   `yaml:"bin"`
	ExtraArgs  []string `yaml:"extra_args,omitempty"`
	MinVersion string   `yaml:"min_version,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Defaults: Defaults{
			CacheDir:              defaultCacheDir(),
			AudioFormat:           "mp3",
			AudioQuality:          "192",
			Threads:               1,
			CommandTimeoutSeconds: 900,
			ChapterProbe:          ChapterProbeJSON,
		},
		Options: Options{
			Download:   true,
			SplitFiles: true,
			Import:     true,
		},
		Tools: Tools{
			YTDLP:   ToolSpec{Bin: "yt-dlp"},
			FFmpeg:  ToolSpec{Bin: "ffmpeg"},
			FFprobe: ToolSpec{Bin: "ffprobe"},
			Beet:    ToolSpec{Bin: "beet"},
		},
		URLs: []string{},
	}
}
