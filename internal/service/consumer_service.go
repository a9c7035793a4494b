package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "TURN_CONSUMER"

// EventPublisher forwards turn events to the external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// TurnNotifier pushes a recorded turn to the user's live connections.
type TurnNotifier interface {
	Send(userID string, msgType string, data interface{})
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	transcripts contract.TranscriptRepository
	bus         EventPublisher
	notifier    TurnNotifier
	logger      logger.ILogger
	timeout     time.Duration
}

// NewConsumerService builds the turn consumer. transcripts, bus and notifier
// may each be nil when the backing infrastructure is unavailable.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	transcripts contract.TranscriptRepository,
	bus EventPublisher,
	notifier TurnNotifier,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		transcripts: transcripts,
		bus:         bus,
		notifier:    notifier,
		logger:      log,
		timeout:     5 * time.Second,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: every sink is best-effort and a redelivery
// would duplicate the transcript entry.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var record events.TurnRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal turn record", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	if cs.transcripts != nil {
		if err := cs.transcripts.Append(ctx, record); err != nil {
			cs.logger.Warn(consumerModule, "Failed to append transcript", map[string]interface{}{
				"user_id": record.UserID,
				"error":   err.Error(),
			})
		}
	}

	if cs.bus != nil {
		if err := cs.bus.Publish(ctx, events.TurnEvent{Record: record}); err != nil {
			cs.logger.Warn(consumerModule, "Failed to forward turn event", map[string]interface{}{
				"user_id": record.UserID,
				"error":   err.Error(),
			})
		}
	}

	if cs.notifier != nil {
		cs.notifier.Send(record.UserID, "turn", record)
	}

	cs.logger.Debug(consumerModule, "Turn recorded", map[string]interface{}{
		"user_id":  record.UserID,
		"turn_id":  record.ID,
		"strategy": record.Strategy,
	})
}
