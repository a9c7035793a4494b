package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// KnowledgeChunk is one embedded knowledge-base passage. The vector column is
// left without a fixed dimension because each fallback embedding model has
// its own, and rows are only compared within one embedding_model.
type KnowledgeChunk struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Document       string            `gorm:"type:text;not null"`
	Source         string            `gorm:"type:varchar(255);index"`
	Category       string            `gorm:"type:varchar(100);index"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	EmbeddingModel string            `gorm:"type:varchar(255);not null;index"`
	Embedding      pgvector.Vector   `gorm:"type:vector"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
