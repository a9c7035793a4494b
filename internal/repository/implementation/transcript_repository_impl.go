package implementation

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/pkg/events"

	"github.com/redis/go-redis/v9"
)

const transcriptKeyPrefix = "transcript:"

type TranscriptRepositoryImpl struct {
	rdb *redis.Client
}

func NewTranscriptRepository(rdb *redis.Client) contract.TranscriptRepository {
	return &TranscriptRepositoryImpl{rdb: rdb}
}

func transcriptKey(userID string) string {
	return transcriptKeyPrefix + userID
}

func (r *TranscriptRepositoryImpl) Append(ctx context.Context, record events.TurnRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal turn record: %w", err)
	}
	return r.rdb.RPush(ctx, transcriptKey(record.UserID), data).Err()
}

func (r *TranscriptRepositoryImpl) List(ctx context.Context, userID string, limit int) ([]events.TurnRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raw, err := r.rdb.LRange(ctx, transcriptKey(userID), start, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]events.TurnRecord, 0, len(raw))
	for _, item := range raw {
		var rec events.TurnRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode turn record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
