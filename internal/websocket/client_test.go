package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records commands and lets the test publish states.
type fakeSession struct {
	mu       sync.Mutex
	listener search.Listener
	queries  []search.Query
	resets   int
}

func (s *fakeSession) Submit(q search.Query) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.Text == "" {
		return uuid.Nil, false
	}
	s.queries = append(s.queries, q)
	return uuid.New(), true
}

func (s *fakeSession) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *fakeSession) State() search.State { return search.State{Status: search.StatusIdle} }

func newTestClient(t *testing.T) (*Client, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	c := newClient(NewHub(nil), nil, time.Millisecond, func(l search.Listener) Session {
		sess.listener = l
		return sess
	}, logger.NewNop())
	return c, sess
}

func next(t *testing.T, c *Client) Outbound {
	t.Helper()
	select {
	case data := <-c.Send:
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &raw))
		return Outbound{Type: raw.Type, Data: raw.Data}
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return Outbound{}
	}
}

func TestHandleSearchMessage(t *testing.T) {
	c, sess := newTestClient(t)

	c.handleMessage([]byte(`{"type":"search","query":"heist","result_count":12}`))
	c.handleMessage([]byte(`{"type":"search","query":"noir","wants_overview":false}`))

	require.Len(t, sess.queries, 2)
	assert.Equal(t, search.Query{Text: "heist", WantsOverview: true, ResultCount: 12}, sess.queries[0])
	assert.False(t, sess.queries[1].WantsOverview)

	assert.Equal(t, MessageSubmitted, next(t, c).Type)
	assert.Equal(t, MessageSubmitted, next(t, c).Type)
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c, sess := newTestClient(t)

	c.handleMessage([]byte(`not json`))
	c.handleMessage([]byte(`{"type":"search","query":""}`))
	c.handleMessage([]byte(`{"type":"launch"}`))
	c.handleMessage([]byte(`{"type":"reset"}`))

	for _, want := range []string{"invalid message", "query is empty", "unknown message type: launch"} {
		msg := next(t, c)
		assert.Equal(t, MessageError, msg.Type)
		assert.Contains(t, string(msg.Data.(json.RawMessage)), want)
	}
	assert.Equal(t, 1, sess.resets)
	assert.Empty(t, sess.queries)
}

func TestStatePushAndReveal(t *testing.T) {
	c, sess := newTestClient(t)
	id := uuid.New()
	ov := &movie.Overview{Summary: "Vaults", Metadata: movie.OverviewMetadata{DecodeStatus: movie.DecodeOK}}

	sess.listener(search.State{SessionID: id, Status: search.StatusSettled, Overview: ov})

	msg := next(t, c)
	require.Equal(t, MessageState, msg.Type)
	var st search.State
	require.NoError(t, json.Unmarshal(msg.Data.(json.RawMessage), &st))
	assert.Equal(t, id, st.SessionID)
	assert.Equal(t, "Vaults", st.Overview.Summary)

	var frames []RevealFrame
	for {
		msg := next(t, c)
		require.Equal(t, MessageReveal, msg.Type)
		var f RevealFrame
		require.NoError(t, json.Unmarshal(msg.Data.(json.RawMessage), &f))
		frames = append(frames, f)
		if f.Done {
			break
		}
	}
	require.Len(t, frames, len("Vaults")+1)
	assert.Equal(t, "V", frames[0].Text)
	assert.Equal(t, "Vaults", frames[len(frames)-1].Text)
	assert.Equal(t, id, frames[0].SessionID)
}

func TestCloseStopsDelivery(t *testing.T) {
	c, sess := newTestClient(t)
	c.close()
	c.close()

	sess.listener(search.State{Status: search.StatusIdle})
	_, ok := <-c.Send
	assert.False(t, ok, "send channel is closed and nothing was queued")
	assert.Equal(t, 2, sess.resets)
}
