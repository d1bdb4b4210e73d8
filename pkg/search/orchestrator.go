package search

import (
	"context"
	"strings"
	"sync"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/events"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/searchapi"
	"moviesearch-client/pkg/stream"

	"github.com/google/uuid"
)

const logModule = "Orchestrator"

const (
	DefaultResultCount = 24
	DefaultAlpha       = 0.5
)

// Status is the lifecycle position of the current session.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusLoading         Status = "loading"
	StatusResultsOnly     Status = "results-only"
	StatusOverviewPending Status = "results+overview-pending"
	StatusSettled         Status = "settled"
)

// Query is one user request. A new query supersedes the previous one.
type Query struct {
	Text          string `json:"text"`
	WantsOverview bool   `json:"wants_overview"`
	// ResultCount <= 0 means the orchestrator default.
	ResultCount int `json:"result_count"`
}

// State is an immutable snapshot of what should be on screen.
type State struct {
	SessionID uuid.UUID         `json:"session_id"`
	Query     Query             `json:"query"`
	Status    Status            `json:"status"`
	Results   *movie.ResultPage `json:"results,omitempty"`
	Overview  *movie.Overview   `json:"overview,omitempty"`
	Err       *searchapi.Error  `json:"error,omitempty"`
}

func (s State) Settled() bool {
	return s.Status == StatusSettled
}

func (s State) Failed() bool {
	return s.Status == StatusSettled && s.Err != nil
}

type Searcher interface {
	Search(ctx context.Context, req searchapi.Request) (*movie.SearchResponse, error)
}

type Streamer interface {
	Open(ctx context.Context, req searchapi.Request, h stream.Handlers) stream.Handle
}

type OverviewDecoder interface {
	Decode(raw string) movie.Overview
}

// Listener receives every state transition in order. It runs while the
// orchestrator holds its lock and must not call Submit or Reset.
type Listener func(State)

type Option func(*Orchestrator)

func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listeners = append(o.listeners, l) }
}

// WithPublisher sets the lifecycle event sink. It is called under the
// orchestrator lock, so it must not block; wrap network transports in
// events.NewAsync.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithDefaults(resultCount int, alpha float64) Option {
	return func(o *Orchestrator) {
		if resultCount > 0 {
			o.resultCount = resultCount
		}
		o.alpha = alpha
	}
}

func WithLogger(log logger.ILogger) Option {
	return func(o *Orchestrator) { o.logger = log }
}

type session struct {
	id      uuid.UUID
	query   Query
	cancel  context.CancelFunc
	handle  stream.Handle
	settled bool
}

// Orchestrator owns the current search. It is the only writer of State;
// transports deliver on their own goroutines and every callback is checked
// against the current session token before it is applied.
type Orchestrator struct {
	searcher  Searcher
	streamer  Streamer
	decoder   OverviewDecoder
	publisher events.Publisher
	logger    logger.ILogger
	listeners []Listener

	resultCount int
	alpha       float64

	mu      sync.Mutex
	current *session
	state   State
}

func NewOrchestrator(searcher Searcher, streamer Streamer, decoder OverviewDecoder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:    searcher,
		streamer:    streamer,
		decoder:     decoder,
		publisher:   events.Nop,
		logger:      logger.NewNop(),
		resultCount: DefaultResultCount,
		alpha:       DefaultAlpha,
		state:       State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit starts a new session for q, superseding any current one. Blank
// queries are declined and return false.
func (o *Orchestrator) Submit(q Query) (uuid.UUID, bool) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return uuid.Nil, false
	}
	if q.ResultCount <= 0 {
		q.ResultCount = o.resultCount
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{id: uuid.New(), query: q, cancel: cancel}

	o.mu.Lock()
	prev := o.current
	o.current = sess
	o.setLocked(State{SessionID: sess.id, Query: q, Status: StatusLoading})
	o.publishLocked(events.TypeSearchStarted, sess.id, map[string]interface{}{
		"query":          q.Text,
		"wants_overview": q.WantsOverview,
		"result_count":   q.ResultCount,
	})
	o.mu.Unlock()

	// Outside the lock: a handler of prev may be waiting on it.
	if prev != nil {
		prev.stop()
	}

	o.logger.Info(logModule, "Search submitted", map[string]interface{}{
		"session_id":     sess.id.String(),
		"query":          q.Text,
		"wants_overview": q.WantsOverview,
	})

	req := searchapi.Request{Query: q.Text, K: q.ResultCount, Alpha: o.alpha, AIOverview: q.WantsOverview}
	if q.WantsOverview {
		o.openStream(ctx, sess, req)
	} else {
		go o.searchOnce(ctx, sess.id, req)
	}
	return sess.id, true
}

// Reset cancels the current session and returns to idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	prev := o.current
	o.current = nil
	o.setLocked(State{Status: StatusIdle})
	if prev != nil {
		o.publishLocked(events.TypeSearchReset, prev.id, nil)
	}
	o.mu.Unlock()

	if prev != nil {
		prev.stop()
		o.logger.Info(logModule, "Search reset", map[string]interface{}{"session_id": prev.id.String()})
	}
}

func (o *Orchestrator) openStream(ctx context.Context, sess *session, req searchapi.Request) {
	id := sess.id
	h := o.streamer.Open(ctx, req, stream.Handlers{
		OnResults:  func(page movie.ResultPage) { o.applyResults(id, page, StatusOverviewPending) },
		OnOverview: func(raw string) { o.applyOverview(id, raw) },
		OnError:    func(err *searchapi.Error) { o.applyError(id, err) },
		OnDone:     func() { o.applyDone(id) },
	})

	o.mu.Lock()
	if o.current == sess {
		sess.handle = h
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	// Superseded while opening.
	h.Cancel()
}

func (o *Orchestrator) searchOnce(ctx context.Context, id uuid.UUID, req searchapi.Request) {
	resp, err := o.searcher.Search(ctx, req)
	if err != nil {
		o.applyError(id, searchapi.AsError(err))
		return
	}
	if o.applyResults(id, resp.Page(), StatusResultsOnly) {
		o.applyDone(id)
	}
}

// withCurrent runs fn under the lock if id is the current, unsettled
// session. Stale events are dropped.
func (o *Orchestrator) withCurrent(id uuid.UUID, event string, fn func(sess *session)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.id != id || o.current.settled {
		o.logger.Debug(logModule, "Dropping stale event", map[string]interface{}{"session_id": id.String(), "event": event})
		return false
	}
	fn(o.current)
	return true
}

func (o *Orchestrator) applyResults(id uuid.UUID, page movie.ResultPage, next Status) bool {
	return o.withCurrent(id, "results", func(sess *session) {
		if o.state.Results != nil {
			o.logger.Warn(logModule, "Ignoring repeated results", map[string]interface{}{"session_id": id.String()})
			return
		}
		st := o.state
		st.Results = &page
		st.Status = next
		o.setLocked(st)
		o.publishLocked(events.TypeSearchResults, id, map[string]interface{}{
			"count": page.TotalCount,
			"items": len(page.Items),
		})
	})
}

func (o *Orchestrator) applyOverview(id uuid.UUID, raw string) {
	// Decoding is pure; keep it out of the lock.
	ov := o.decoder.Decode(raw)

	o.withCurrent(id, "overview", func(sess *session) {
		if o.state.Overview != nil && ov.Metadata.DecodeStatus == movie.DecodeEmpty {
			o.logger.Warn(logModule, "Keeping previous overview over empty decode", map[string]interface{}{"session_id": id.String()})
			return
		}
		st := o.state
		st.Overview = &ov
		o.setLocked(st)
		o.publishLocked(events.TypeSearchOverview, id, map[string]interface{}{
			"decode_status": string(ov.Metadata.DecodeStatus),
			"summary_chars": len([]rune(ov.Summary)),
			"explanations":  len(ov.Explanations),
			"model":         ov.Metadata.Model,
		})
	})

	if ov.Metadata.DecodeStatus != movie.DecodeOK {
		o.logger.Info(logModule, "Overview decoded with degradation", map[string]interface{}{
			"session_id":    id.String(),
			"decode_status": string(ov.Metadata.DecodeStatus),
		})
	}
}

func (o *Orchestrator) applyDone(id uuid.UUID) {
	o.withCurrent(id, "done", func(sess *session) {
		sess.settled = true
		st := o.state
		st.Status = StatusSettled
		o.setLocked(st)
		o.publishLocked(events.TypeSearchSettled, id, settledPayload(st))
	})
}

func (o *Orchestrator) applyError(id uuid.UUID, err *searchapi.Error) {
	applied := o.withCurrent(id, "error", func(sess *session) {
		sess.settled = true
		st := o.state
		st.Status = StatusSettled
		st.Err = err
		o.setLocked(st)
		o.publishLocked(events.TypeSearchSettled, id, settledPayload(st))
	})
	if applied {
		o.logger.Warn(logModule, "Search failed", map[string]interface{}{
			"session_id": id.String(),
			"kind":       string(err.Kind),
			"error":      err.Error(),
		})
	}
}

func settledPayload(st State) map[string]interface{} {
	data := map[string]interface{}{
		"query":        st.Query.Text,
		"has_results":  st.Results != nil,
		"has_overview": st.Overview != nil,
	}
	if st.Results != nil {
		data["count"] = st.Results.TotalCount
	}
	if st.Overview != nil {
		data["decode_status"] = string(st.Overview.Metadata.DecodeStatus)
	}
	if st.Err != nil {
		data["error_kind"] = string(st.Err.Kind)
		data["error"] = st.Err.Reason
		data["retryable"] = st.Err.Retryable()
	}
	return data
}

func (o *Orchestrator) setLocked(st State) {
	o.state = st
	for _, l := range o.listeners {
		l(st)
	}
}

func (o *Orchestrator) publishLocked(eventType string, id uuid.UUID, data map[string]interface{}) {
	if err := o.publisher.Publish(context.Background(), events.New(eventType, id.String(), data)); err != nil {
		o.logger.Warn(logModule, "Failed to publish lifecycle event", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

func (s *session) stop() {
	s.cancel()
	if s.handle != nil {
		s.handle.Cancel()
	}
}
