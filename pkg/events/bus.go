package events

import (
	"context"
	"fmt"

	"moviesearch-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the in-process lifecycle bus. Publishing never blocks on slow
// subscribers and events are dropped when nobody is subscribed.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBus(topic string, log logger.ILogger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, &watermillLogger{log: log}),
		topic:  topic,
	}
}

func (b *Bus) Topic() string {
	return b.topic
}

func (b *Bus) Publish(_ context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	msg.Metadata.Set("session_id", event.SessionID())

	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event.EventType(), b.topic, err)
	}
	return nil
}

// Subscribe returns the raw message stream. Consumers must Ack or Nack
// every message.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, b.topic)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// watermillLogger routes watermill's internal logs into ILogger.
type watermillLogger struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func (l *watermillLogger) merge(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	details := l.merge(fields)
	if err != nil {
		details["error"] = err.Error()
	}
	l.log.Error("EventBus", msg, details)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info("EventBus", msg, l.merge(fields))
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug("EventBus", msg, l.merge(fields))
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: l.log, fields: l.merge(fields)}
}
