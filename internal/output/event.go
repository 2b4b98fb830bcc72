package output

import "time"

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted        EventName = "run_started"
	EventItemStarted       EventName = "item_started"
	EventItemSkipped       EventName = "item_skipped"
	EventTracksExtracted   EventName = "tracks_extracted"
	EventExtractionWarning EventName = "extraction_warning"
	EventTracklist         EventName = "tracklist"
	EventSplitFinished     EventName = "split_finished"
	EventImportFinished    EventName = "import_finished"
	EventItemFinished      EventName = "item_finished"
	EventItemFailed        EventName = "item_failed"
	EventRunFinished       EventName = "run_finished"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	ItemID    string         `json:"item_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
