package entity

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeChunk struct {
	Id             uuid.UUID
	Document       string
	Source         string
	Category       string
	Metadata       map[string]interface{}
	EmbeddingModel string
	Embedding      []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// ScoredKnowledgeChunk is a chunk returned by a similarity query.
type ScoredKnowledgeChunk struct {
	Chunk    *KnowledgeChunk
	Distance float64 // cosine distance, 0 = identical
}
