package events

import "github.com/smazurov/recordnode/internal/media"

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeRecordingStarted
	TypeRecordingTimeUpdate
	TypeRecordingStopped
	TypeRecordingError
	TypeSourceSwitched
	TypeMuteChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published on every StreamManager state transition.
type StateChangedEvent struct {
	Previous  string `json:"previous"`
	Current   string `json:"current"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// RecordingStartedEvent is published when a recording session begins.
type RecordingStartedEvent struct {
	SessionID string           `json:"session_id"`
	Source    media.SourceKind `json:"source"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	FrameRate int              `json:"frame_rate"`
	Timestamp string           `json:"timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingTimeUpdateEvent carries the once-per-second recording progress.
// Formatted is the elapsed time rendered as "MM:SS".
type RecordingTimeUpdateEvent struct {
	SessionID     string  `json:"session_id"`
	Elapsed       float64 `json:"elapsed"`
	Formatted     string  `json:"formatted"`
	BufferedBytes int64   `json:"buffered_bytes"`
}

// Type returns the event type identifier for RecordingTimeUpdateEvent.
func (e RecordingTimeUpdateEvent) Type() uint32 { return TypeRecordingTimeUpdate }

// RecordingStoppedEvent is published after a clean stop with the final blob.
type RecordingStoppedEvent struct {
	SessionID string  `json:"session_id"`
	Duration  float64 `json:"duration"`
	TotalSize int64   `json:"total_size"`
	MIME      string  `json:"mime"`
	Blob      media.Blob
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }

// RecordingErrorEvent carries the normalized failure cause of a lifecycle
// operation, so listeners do not need to wrap every call.
type RecordingErrorEvent struct {
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for RecordingErrorEvent.
func (e RecordingErrorEvent) Type() uint32 { return TypeRecordingError }

// SourceSwitchedEvent is published after a successful mid-recording hot-swap.
type SourceSwitchedEvent struct {
	SessionID string           `json:"session_id"`
	From      media.SourceKind `json:"from"`
	To        media.SourceKind `json:"to"`
	Timestamp string           `json:"timestamp"`
}

// Type returns the event type identifier for SourceSwitchedEvent.
func (e SourceSwitchedEvent) Type() uint32 { return TypeSourceSwitched }

// MuteChangedEvent is published when the audio track enabled flag toggles.
type MuteChangedEvent struct {
	SessionID string `json:"session_id"`
	Muted     bool   `json:"muted"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for MuteChangedEvent.
func (e MuteChangedEvent) Type() uint32 { return TypeMuteChanged }

// LogEntryEvent forwards a structured log entry to bus subscribers.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq"`
	Timestamp  string         `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
