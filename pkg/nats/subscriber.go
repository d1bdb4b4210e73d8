package nats

import (
	"context"
	"fmt"
	"sync"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber listens for lifecycle events on JetStream.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger

	mu        sync.Mutex
	consumers []jetstream.ConsumeContext
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	if log == nil {
		log = logger.NewNop()
	}
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers handler for subjects matching filter. With a durable
// name the consumer is persistent and acks explicitly (failed handlers are
// redelivered); without one an ordered ephemeral consumer tails new events.
func (s *Subscriber) Subscribe(ctx context.Context, filter, durable string, handler EventHandler) error {
	var (
		consumer jetstream.Consumer
		err      error
	)
	ack := durable != ""
	if ack {
		consumer, err = s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
			Durable:       durable,
			FilterSubject: filter,
			AckPolicy:     jetstream.AckExplicitPolicy,
		})
	} else {
		consumer, err = s.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
			FilterSubjects: []string{filter},
			DeliverPolicy:  jetstream.DeliverNewPolicy,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := events.Decode(msg.Data())
		if err != nil {
			s.logger.Error("NATS", "Dropping undecodable event", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
			if ack {
				msg.Term()
			}
			return
		}

		if err := handler(ctx, event); err != nil {
			s.logger.Warn("NATS", "Handler failed", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
			if ack {
				msg.Nak()
			}
			return
		}
		if ack {
			msg.Ack()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.mu.Lock()
	s.consumers = append(s.consumers, cc)
	s.mu.Unlock()

	s.logger.Info("NATS", "Subscribed", map[string]interface{}{"filter": filter, "durable": durable})
	return nil
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.consumers = nil
	s.mu.Unlock()

	if s.nc != nil {
		s.nc.Close()
	}
}
