package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted    EventName = "run_started"
	EventStageTotal    EventName = "stage_total"
	EventStageComplete EventName = "stage_complete"
	EventStatus        EventName = "status"
	EventChartOutline  EventName = "chart_outline"
	EventTileOutline   EventName = "tile_outline"
	EventTrackline     EventName = "trackline"
	EventRunFinished   EventName = "run_finished"
)

// Event is one progress/status record emitted during an acquisition run.
// Geometry payloads (chart/tile outlines, tracklines) travel in Details.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	Archive   string         `json:"archive,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(level Level, name EventName, message string) Event {
	return Event{Timestamp: time.Now().UTC(), Level: level, Event: name, Message: message}
}
