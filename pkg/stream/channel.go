package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/searchapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const logModule = "StreamChannel"

var tracer = otel.Tracer("moviesearch-client/stream")

// Handlers receive the events of one channel. Any of them may be nil.
// Exactly one of OnError / OnDone is called per opened channel unless it is
// canceled first. Handlers run on the channel's reader goroutine, one at a
// time, and must not call Cancel on their own handle synchronously.
type Handlers struct {
	OnResults  func(page movie.ResultPage)
	OnOverview func(raw string)
	OnError    func(err *searchapi.Error)
	OnDone     func()
}

// Handle controls an opened channel.
type Handle interface {
	// Cancel stops delivery and releases the connection. It is idempotent;
	// once it returns no handler of this channel will run again.
	Cancel()
}

// Channel opens server-push search streams against the retrieval service.
type Channel struct {
	client       *searchapi.Client
	logger       logger.ILogger
	maxFrameSize int
}

func NewChannel(client *searchapi.Client, log logger.ILogger) *Channel {
	if log == nil {
		log = logger.NewNop()
	}
	return &Channel{client: client, logger: log, maxFrameSize: DefaultMaxFrameSize}
}

// WithMaxFrameSize caps the size of a single frame; a larger frame fails the
// channel as malformed.
func (c *Channel) WithMaxFrameSize(n int) *Channel {
	if n > 0 {
		c.maxFrameSize = n
	}
	return c
}

type subscription struct {
	handlers Handlers
	cancel   context.CancelFunc
	logger   logger.ILogger

	// mu is held while a handler runs, so Cancel waits out an in-flight
	// delivery and nothing is delivered after it returns.
	mu     sync.Mutex
	closed bool

	sawResults  bool
	sawOverview bool
}

// Open starts streaming req. Delivery happens on a background goroutine; the
// returned Handle is valid immediately.
func (c *Channel) Open(ctx context.Context, req searchapi.Request, h Handlers) Handle {
	req.AIOverview = true
	req.Stream = true

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{handlers: h, cancel: cancel, logger: c.logger}

	go c.run(ctx, req, sub)
	return sub
}

func (c *Channel) run(ctx context.Context, req searchapi.Request, sub *subscription) {
	defer sub.cancel()

	ctx, span := tracer.Start(ctx, "stream.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", req.Query), attribute.Int("search.k", req.K))

	fail := func(e *searchapi.Error) {
		span.SetStatus(codes.Error, e.Error())
		sub.fail(e)
	}

	if err := req.Validate(); err != nil {
		fail(searchapi.AsError(err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.client.SearchURL(req), nil)
	if err != nil {
		fail(searchapi.NewError(searchapi.KindInvalidRequest, "create request", err))
		return
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Streaming.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil {
			fail(searchapi.NewError(searchapi.KindTransport, "could not open search stream", err))
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fail(&searchapi.Error{
			Kind:   searchapi.KindHTTPStatus,
			Reason: fmt.Sprintf("search stream failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("body: %s", strings.TrimSpace(string(body))),
		})
		return
	}

	c.logger.Info(logModule, "Stream opened", map[string]interface{}{"query": req.Query})

	frames := newFrameReader(resp.Body, c.maxFrameSize)
	for {
		frame, err := frames.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var tooLarge *FrameTooLargeError
			if errors.As(err, &tooLarge) {
				c.logger.Warn(logModule, "Dropping oversized frame", map[string]interface{}{"event": tooLarge.Event, "limit": tooLarge.Limit})
				if tooLarge.Event == EventOverview {
					fail(searchapi.NewError(searchapi.KindMalformedOverview, searchapi.ReasonMalformedOverview, err))
				} else {
					fail(searchapi.NewError(searchapi.KindMalformedResults, searchapi.ReasonMalformedResults, err))
				}
				return
			}
			reason := "stream closed before completion"
			if !errors.Is(err, io.EOF) {
				reason = "stream interrupted"
			}
			fail(searchapi.NewError(searchapi.KindTransport, reason, err))
			return
		}

		if terminal := sub.dispatch(frame); terminal {
			c.logger.Info(logModule, "Stream finished", map[string]interface{}{"query": req.Query, "event": frame.Event})
			return
		}
	}
}

// dispatch routes one frame and reports whether the channel is now finished.
func (s *subscription) dispatch(f Frame) bool {
	switch f.Event {
	case EventResults:
		var resp movie.SearchResponse
		if err := decodeObject(f.Data, &resp); err != nil {
			s.fail(searchapi.NewError(searchapi.KindMalformedResults, searchapi.ReasonMalformedResults, err))
			return true
		}
		page := resp.Page()
		return !s.deliver(false, func() {
			if s.sawResults || s.sawOverview {
				s.logger.Warn(logModule, "Dropping out-of-order results frame", nil)
				return
			}
			s.sawResults = true
			if s.handlers.OnResults != nil {
				s.handlers.OnResults(page)
			}
		})

	case EventOverview:
		if strings.TrimSpace(f.Data) == "" || !utf8.ValidString(f.Data) {
			s.fail(searchapi.NewError(searchapi.KindMalformedOverview, searchapi.ReasonMalformedOverview, nil))
			return true
		}
		return !s.deliver(false, func() {
			s.sawOverview = true
			if s.handlers.OnOverview != nil {
				s.handlers.OnOverview(f.Data)
			}
		})

	case EventError:
		s.fail(searchapi.NewError(searchapi.KindUpstream, upstreamReason(f.Data), nil))
		return true

	case EventDone:
		s.deliver(true, func() {
			if s.handlers.OnDone != nil {
				s.handlers.OnDone()
			}
		})
		return true
	}

	// heartbeats and unknown events
	return false
}

func (s *subscription) fail(e *searchapi.Error) {
	s.deliver(true, func() {
		s.logger.Warn(logModule, "Stream failed", map[string]interface{}{"kind": string(e.Kind), "error": e.Error()})
		if s.handlers.OnError != nil {
			s.handlers.OnError(e)
		}
	})
}

// deliver runs fn unless the subscription is closed. A terminal delivery
// closes it. Returns false if nothing was delivered.
func (s *subscription) deliver(terminal bool, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if terminal {
		s.closed = true
	}
	fn()
	return true
}

func (s *subscription) Cancel() {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func decodeObject(data string, v interface{}) error {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("expected JSON object")
	}
	return json.Unmarshal([]byte(trimmed), v)
}

// upstreamReason extracts a human-readable message from an error frame body.
func upstreamReason(data string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := decodeObject(data, &body); err == nil {
		for _, s := range []string{body.Error, body.Message, body.Detail} {
			if s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(data); s != "" {
		return s
	}
	return "search service reported an error"
}
