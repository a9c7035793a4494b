package implementation

import (
	"context"
	"fmt"

	"ai-sales-agent-be/internal/entity"
	"ai-sales-agent-be/internal/mapper"
	"ai-sales-agent-be/internal/model"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeChunkMapper
}

func NewKnowledgeChunkRepository(db *gorm.DB) contract.KnowledgeChunkRepository {
	return &KnowledgeChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeChunkMapper(),
	}
}

func (r *KnowledgeChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *KnowledgeChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.KnowledgeChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *KnowledgeChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.KnowledgeChunk{}).Count(&count).Error
	return count, err
}

func (r *KnowledgeChunkRepositoryImpl) Query(ctx context.Context, vector []float32, topK int, embeddingModel string, specs ...specification.Specification) ([]*entity.ScoredKnowledgeChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	if embeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required to query knowledge chunks")
	}

	type result struct {
		model.KnowledgeChunk
		Distance float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	// Cosine distance in pgvector: embedding <=> query, smaller is closer.
	query := r.db.WithContext(ctx).
		Table(model.KnowledgeChunk{}.TableName()).
		Select("knowledge_chunks.*, embedding <=> ? AS distance", queryVector)
	query = specification.ByEmbeddingModel{Model: embeddingModel}.Apply(query)
	query = r.applySpecifications(query, specs...)

	err := query.
		Order("distance ASC").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredKnowledgeChunk, len(results))
	for i := range results {
		scored[i] = &entity.ScoredKnowledgeChunk{
			Chunk:    r.mapper.ToEntity(&results[i].KnowledgeChunk),
			Distance: results[i].Distance,
		}
	}
	return scored, nil
}
