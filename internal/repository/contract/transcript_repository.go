package contract

import (
	"context"

	"ai-sales-agent-be/pkg/events"
)

// TranscriptRepository keeps a durable, append-only copy of every exchange.
type TranscriptRepository interface {
	Append(ctx context.Context, record events.TurnRecord) error
	// List returns the most recent records of a user, oldest first.
	// limit <= 0 returns everything.
	List(ctx context.Context, userID string, limit int) ([]events.TurnRecord, error)
}
