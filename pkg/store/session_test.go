package store

import (
	"testing"
	"time"

	"moviesearch-client/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(e events.BaseEvent, ts time.Time) events.BaseEvent {
	e.OccurredAt = ts
	return e
}

func TestApplyBuildsSummary(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewSessionRecord("s1")

	r.Apply(at(events.New(events.TypeSearchStarted, "s1", map[string]interface{}{
		"query": "heist", "wants_overview": true, "result_count": 24,
	}), t0))
	r.Apply(at(events.New(events.TypeSearchResults, "s1", map[string]interface{}{"count": float64(12)}), t0.Add(time.Second)))
	r.Apply(at(events.New(events.TypeSearchOverview, "s1", map[string]interface{}{
		"decode_status": "repaired", "model": "llama3",
	}), t0.Add(2*time.Second)))
	r.Apply(at(events.New(events.TypeSearchSettled, "s1", map[string]interface{}{
		"query": "heist", "count": 12, "has_overview": true, "decode_status": "repaired",
	}), t0.Add(3*time.Second)))

	assert.Equal(t, "heist", r.Query)
	assert.True(t, r.WantsOverview)
	assert.Equal(t, 24, r.ResultCount)
	assert.Equal(t, 12, r.ResultTotal)
	assert.True(t, r.HasOverview)
	assert.Equal(t, "repaired", r.DecodeStatus)
	assert.Equal(t, "llama3", r.Model)
	assert.Equal(t, StatusSettled, r.Status)
	assert.Equal(t, t0, r.StartedAt)
	require.NotNil(t, r.SettledAt)
	assert.Equal(t, t0.Add(3*time.Second), *r.SettledAt)
	assert.Len(t, r.Events, 4)
}

func TestApplyToleratesReordering(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewSessionRecord("s1")

	r.Apply(at(events.New(events.TypeSearchSettled, "s1", map[string]interface{}{
		"query": "noir", "error_kind": "transport", "error": "search service unreachable", "retryable": true,
	}), t0.Add(time.Second)))
	r.Apply(at(events.New(events.TypeSearchStarted, "s1", map[string]interface{}{"query": "noir"}), t0))

	assert.Equal(t, StatusSettled, r.Status)
	assert.Equal(t, t0, r.StartedAt)
	assert.Equal(t, t0.Add(time.Second), r.UpdatedAt)
	assert.Equal(t, "transport", r.ErrorKind)
	assert.True(t, r.Retryable)
}

func TestCloneIsIndependent(t *testing.T) {
	r := NewSessionRecord("s1")
	r.Apply(events.New(events.TypeSearchReset, "s1", nil))

	c := r.Clone()
	c.Events[0] = "changed"
	*c.SettledAt = time.Time{}

	assert.Equal(t, events.TypeSearchReset, r.Events[0])
	assert.False(t, r.SettledAt.IsZero())
}
