package service

import (
	"context"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/internal/repository/memory"
	"moviesearch-client/pkg/events"
	"moviesearch-client/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IRecorderService interface {
	Consume(ctx context.Context) error
	Get(sessionID string) (*store.SessionRecord, bool)
	Recent(limit int) []*store.SessionRecord
}

// MessageSource is the subscribe side of the in-process bus.
type MessageSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

type recorderService struct {
	source MessageSource
	repo   *memory.SessionRepository
	logger logger.ILogger
}

func NewRecorderService(source MessageSource, repo *memory.SessionRepository, log logger.ILogger) IRecorderService {
	if log == nil {
		log = logger.NewNop()
	}
	return &recorderService{
		source: source,
		repo:   repo,
		logger: log,
	}
}

// Consume subscribes and records events until ctx is done.
func (rs *recorderService) Consume(ctx context.Context) error {
	messages, err := rs.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			rs.processMessage(msg)
		}
	}()

	return nil
}

func (rs *recorderService) processMessage(msg *message.Message) {
	event, err := events.Decode(msg.Payload)
	if err != nil {
		rs.logger.Error("Recorder", "Failed to decode event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		msg.Ack() // never retry a poison message
		return
	}
	if event.SessionID() == "" {
		msg.Ack()
		return
	}

	record, ok := rs.repo.Get(event.SessionID())
	if !ok {
		record = store.NewSessionRecord(event.SessionID())
	}
	record.Apply(event)
	rs.repo.Save(record)

	rs.logger.Debug("Recorder", "Session updated", map[string]interface{}{
		"session_id": record.ID,
		"event":      event.EventType(),
		"status":     record.Status,
	})
	msg.Ack()
}

func (rs *recorderService) Get(sessionID string) (*store.SessionRecord, bool) {
	return rs.repo.Get(sessionID)
}

func (rs *recorderService) Recent(limit int) []*store.SessionRecord {
	return rs.repo.Recent(limit)
}
