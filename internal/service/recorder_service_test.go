package service

import (
	"context"
	"testing"
	"time"

	"moviesearch-client/internal/repository/memory"
	"moviesearch-client/pkg/events"
	"moviesearch-client/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderStoresSettledSessions(t *testing.T) {
	bus := events.NewBus("search.events", nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := NewRecorderService(bus, memory.NewSessionRepository(time.Minute), nil)
	require.NoError(t, recorder.Consume(ctx))

	require.NoError(t, bus.Publish(ctx, events.New(events.TypeSearchStarted, "s1", map[string]interface{}{"query": "heist", "wants_overview": true})))
	require.NoError(t, bus.Publish(ctx, events.New(events.TypeSearchResults, "s1", map[string]interface{}{"count": 7})))
	require.NoError(t, bus.Publish(ctx, events.New(events.TypeSearchSettled, "s1", map[string]interface{}{
		"query": "heist", "count": 7, "has_overview": false, "error_kind": "upstream", "error": "generation failed", "retryable": true,
	})))

	require.Eventually(t, func() bool {
		r, ok := recorder.Get("s1")
		return ok && len(r.Events) == 3
	}, 2*time.Second, 5*time.Millisecond)

	r, _ := recorder.Get("s1")
	assert.Equal(t, store.StatusSettled, r.Status)
	assert.Equal(t, "heist", r.Query)
	assert.Equal(t, 7, r.ResultTotal)
	assert.Equal(t, "upstream", r.ErrorKind)
	assert.NotNil(t, r.SettledAt)

	recent := recorder.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "s1", recent[0].ID)
}

func TestRecorderSkipsUndecodableMessages(t *testing.T) {
	repo := memory.NewSessionRepository(time.Minute)
	rs := NewRecorderService(nil, repo, nil).(*recorderService)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	rs.processMessage(msg)

	select {
	case <-msg.Acked():
	default:
		t.Fatal("poison message was not acked")
	}
	assert.Empty(t, repo.Recent(0))
}
