package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"moviesearch-client/internal/pkg/logger"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

// AsyncPublisher queues events and forwards them to next on a single
// goroutine, so Publish never blocks and per-process ordering is kept.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  logger.ILogger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewAsync(next Publisher, buffer int, log logger.ILogger) *AsyncPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncPublisher{
		next:    next,
		timeout: 5 * time.Second,
		logger:  log,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncPublisher) Publish(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		a.logger.Warn("EventBus", "Dropping event, queue full", map[string]interface{}{"type": event.EventType(), "session_id": event.SessionID()})
		return ErrQueueFull
	}
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, event); err != nil {
			a.logger.Warn("EventBus", "Publish failed", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
		}
		cancel()
	}
}

// Close drains the queue and stops the worker. Safe to call more than once.
func (a *AsyncPublisher) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
