package store

import (
	"time"

	"moviesearch-client/pkg/events"
)

// SessionRecord is the inspectable summary of one search session, built
// from its lifecycle events.
type SessionRecord struct {
	ID            string `json:"id"`
	Query         string `json:"query"`
	WantsOverview bool   `json:"wants_overview"`
	ResultCount   int    `json:"result_count"`
	Status        string `json:"status"`

	ResultTotal  int    `json:"result_total"`
	HasOverview  bool   `json:"has_overview"`
	DecodeStatus string `json:"decode_status,omitempty"`
	Model        string `json:"model,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	// Events lists the lifecycle event types in arrival order.
	Events []string `json:"events"`
}

const (
	StatusStarted  = "started"
	StatusResults  = "results"
	StatusOverview = "overview"
	StatusSettled  = "settled"
	StatusReset    = "reset"
)

var statusRank = map[string]int{
	StatusStarted:  0,
	StatusResults:  1,
	StatusOverview: 2,
	StatusSettled:  3,
	StatusReset:    3,
}

var statusFor = map[string]string{
	events.TypeSearchStarted:  StatusStarted,
	events.TypeSearchResults:  StatusResults,
	events.TypeSearchOverview: StatusOverview,
	events.TypeSearchSettled:  StatusSettled,
	events.TypeSearchReset:    StatusReset,
}

func NewSessionRecord(id string) *SessionRecord {
	return &SessionRecord{ID: id, Events: []string{}}
}

// Apply merges one event into the record. Events may arrive out of order;
// the status only moves forward.
func (r *SessionRecord) Apply(e events.Event) {
	data := e.Payload()
	at := e.Timestamp()

	r.Events = append(r.Events, e.EventType())
	if r.StartedAt.IsZero() || (e.EventType() == events.TypeSearchStarted && at.Before(r.StartedAt)) {
		r.StartedAt = at
	}
	if at.After(r.UpdatedAt) {
		r.UpdatedAt = at
	}

	switch e.EventType() {
	case events.TypeSearchStarted:
		r.Query = stringField(data, "query", r.Query)
		r.WantsOverview = boolField(data, "wants_overview", r.WantsOverview)
		r.ResultCount = intField(data, "result_count", r.ResultCount)
	case events.TypeSearchResults:
		r.ResultTotal = intField(data, "count", r.ResultTotal)
	case events.TypeSearchOverview:
		r.HasOverview = true
		r.DecodeStatus = stringField(data, "decode_status", r.DecodeStatus)
		r.Model = stringField(data, "model", r.Model)
	case events.TypeSearchSettled:
		r.Query = stringField(data, "query", r.Query)
		r.ResultTotal = intField(data, "count", r.ResultTotal)
		r.HasOverview = boolField(data, "has_overview", r.HasOverview)
		r.DecodeStatus = stringField(data, "decode_status", r.DecodeStatus)
		r.ErrorKind = stringField(data, "error_kind", r.ErrorKind)
		r.Error = stringField(data, "error", r.Error)
		r.Retryable = boolField(data, "retryable", r.Retryable)
		settled := at
		r.SettledAt = &settled
	case events.TypeSearchReset:
		settled := at
		r.SettledAt = &settled
	}

	if next, ok := statusFor[e.EventType()]; ok {
		if r.Status == "" || statusRank[next] > statusRank[r.Status] {
			r.Status = next
		}
	}
}

// Clone returns a deep copy safe to hand to readers.
func (r *SessionRecord) Clone() *SessionRecord {
	c := *r
	c.Events = append([]string(nil), r.Events...)
	if r.SettledAt != nil {
		t := *r.SettledAt
		c.SettledAt = &t
	}
	return &c
}

func stringField(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return fallback
}

func boolField(data map[string]interface{}, key string, fallback bool) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return fallback
}

// intField accepts both in-process ints and JSON-decoded float64s.
func intField(data map[string]interface{}, key string, fallback int) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
