package events

import (
	"time"

	"github.com/google/uuid"
)

const TypeConversationTurn = "conversation.turn"

// TurnRecord is one completed exchange: an optional user message (empty on
// initiation) and the agent reply.
type TurnRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Strategy     string    `json:"strategy"`
	Intent       string    `json:"intent,omitempty"`
	IntentScore  float64   `json:"intent_score,omitempty"`
	Products     []string  `json:"products,omitempty"`
	UserMessage  string    `json:"user_message,omitempty"`
	AgentMessage string    `json:"agent_message"`
	UsedContext  bool      `json:"used_context"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewTurnRecord(userID string) TurnRecord {
	return TurnRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		OccurredAt: time.Now(),
	}
}

// TurnEvent adapts a TurnRecord to the Event contract.
type TurnEvent struct {
	Record TurnRecord
}

var _ Event = TurnEvent{}

func (e TurnEvent) EventType() string {
	return TypeConversationTurn
}

func (e TurnEvent) Key() string {
	return e.Record.ID
}

func (e TurnEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":            e.Record.ID,
		"user_id":       e.Record.UserID,
		"strategy":      e.Record.Strategy,
		"intent":        e.Record.Intent,
		"intent_score":  e.Record.IntentScore,
		"products":      e.Record.Products,
		"user_message":  e.Record.UserMessage,
		"agent_message": e.Record.AgentMessage,
		"used_context":  e.Record.UsedContext,
		"occurred_at":   e.Record.OccurredAt.Format(time.RFC3339Nano),
	}
}

func (e TurnEvent) Timestamp() time.Time {
	return e.Record.OccurredAt
}
