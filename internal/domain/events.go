package domain

import "time"

type EventType string

const (
	EventStateChanged          EventType = "state_changed"
	EventNoAudioDetected       EventType = "no_audio_detected"
	EventFallbackTriggered     EventType = "fallback_triggered"
	EventError                 EventType = "error"
	EventPermissionWarning     EventType = "permission_warning"
	EventTranscriptionComplete EventType = "transcription_complete"
)

// Event is a one-way notification for the UI layer.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	State     SessionState `json:"state,omitempty"`
	Kind      ErrorKind    `json:"kind,omitempty"`
	Message   string       `json:"message,omitempty"`
	Text      string       `json:"text,omitempty"`
	At        time.Time    `json:"at"`
}

// HistoryEntry is the record handed to the persistence sink.
type HistoryEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	RawText   string    `json:"raw_text"`
	Text      string    `json:"text"`
	Source    Engine    `json:"source"`
	Reasoned  bool      `json:"reasoned"`
	CreatedAt time.Time `json:"created_at"`
}
