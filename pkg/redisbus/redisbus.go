package redisbus

import (
	"context"
	"fmt"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/events"

	"github.com/redis/go-redis/v9"
)

const Channel = "search_events"

// ParseOptions accepts either a redis:// URL or a bare host:port address.
func ParseOptions(url string) *redis.Options {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return &redis.Options{Addr: url}
	}
	return opt
}

// Bus publishes lifecycle events over Redis pub/sub.
type Bus struct {
	rdb     *redis.Client
	channel string
	logger  logger.ILogger
}

// Connect opens a client and pings it once.
func Connect(ctx context.Context, url string, log logger.ILogger) (*Bus, error) {
	if log == nil {
		log = logger.NewNop()
	}
	rdb := redis.NewClient(ParseOptions(url))
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Bus{rdb: rdb, channel: Channel, logger: log}, nil
}

func (b *Bus) Publish(ctx context.Context, event events.Event) error {
	data, err := events.Encode(event)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe calls handler for every event until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, handler func(events.Event)) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("RedisBus", "Dropping undecodable event", map[string]interface{}{"error": err.Error()})
				continue
			}
			handler(event)
		}
	}
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}
