package model

import "time"

// Event types
const (
	EventTaleView = "tale_view"
)

// AnalyticsEvent is an append-only usage fact. TaleID and UserID are weak
// references: the referenced records may no longer exist.
type AnalyticsEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	TaleID    *string                `json:"tale_id,omitempty"`
	UserID    *string                `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventData is the caller-supplied part of an event
type EventData struct {
	TaleID   *string
	UserID   *string
	Metadata map[string]interface{}
}
