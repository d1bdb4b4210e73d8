package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event defines the contract for all search lifecycle events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "search.started").
	EventType() string

	// SessionID identifies the search session the event belongs to.
	SessionID() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSearchStarted  = "search.started"
	TypeSearchResults  = "search.results"
	TypeSearchOverview = "search.overview"
	TypeSearchSettled  = "search.settled"
	TypeSearchReset    = "search.reset"
)

// BaseEvent is the wire form shared by every transport.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Session    string                 `json:"session_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType, sessionID string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Session:    sessionID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) SessionID() string {
	return e.Session
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Encode marshals any Event into its wire form.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(BaseEvent{
		Type:       e.EventType(),
		Session:    e.SessionID(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.EventType(), err)
	}
	return data, nil
}

// Decode parses the wire form produced by Encode.
func Decode(data []byte) (BaseEvent, error) {
	var e BaseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if e.Type == "" {
		return BaseEvent{}, fmt.Errorf("event has no type")
	}
	return e, nil
}
