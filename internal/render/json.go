package render

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"moviesearch-client/pkg/search"

	"github.com/google/uuid"
)

// JSON writes one JSON document per settled session. Like Terminal, Render
// is safe to use as a search.Listener.
type JSON struct {
	enc *json.Encoder

	mu      sync.Mutex
	session uuid.UUID
	done    chan struct{}
}

func NewJSON(out io.Writer) *JSON {
	return &JSON{enc: json.NewEncoder(out)}
}

func (j *JSON) Render(st search.State) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done == nil || st.SessionID != j.session {
		// A superseded session never settles; release its waiters.
		j.closeLocked()
		j.session = st.SessionID
		j.done = make(chan struct{})
	}

	switch {
	case st.Status == search.StatusIdle:
		j.closeLocked()
	case st.Settled():
		select {
		case <-j.done:
		default:
			j.enc.Encode(st)
			close(j.done)
		}
	}
}

// Wait blocks until the current session has been written.
func (j *JSON) Wait(ctx context.Context) error {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *JSON) Stop() {
	j.mu.Lock()
	j.closeLocked()
	j.mu.Unlock()
}

func (j *JSON) closeLocked() {
	if j.done == nil {
		return
	}
	select {
	case <-j.done:
	default:
		close(j.done)
	}
}
