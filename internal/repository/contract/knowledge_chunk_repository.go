package contract

import (
	"context"

	"ai-sales-agent-be/internal/entity"
	"ai-sales-agent-be/internal/repository/specification"
)

type KnowledgeChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.KnowledgeChunk) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// Query returns the topK chunks closest to vector by cosine distance,
	// restricted to rows embedded with embeddingModel, best first.
	Query(ctx context.Context, vector []float32, topK int, embeddingModel string, specs ...specification.Specification) ([]*entity.ScoredKnowledgeChunk, error)
}
