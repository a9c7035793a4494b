package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-sales-agent-be/internal/entity"
	"ai-sales-agent-be/internal/model"
	"ai-sales-agent-be/internal/repository/implementation"
	"ai-sales-agent-be/internal/repository/specification"
	"ai-sales-agent-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeChunkRepository(t *testing.T) {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, true)
	require.NoError(t, err)
	require.NoError(t, database.EnsureVectorExtension(db))
	require.NoError(t, db.AutoMigrate(&model.KnowledgeChunk{}))

	repo := implementation.NewKnowledgeChunkRepository(db)
	ctx := context.Background()

	// unique model name isolates this run from real data
	embeddingModel := "integration-" + uuid.NewString()
	source := "integration-" + uuid.NewString() + ".pdf"
	t.Cleanup(func() {
		db.Where("embedding_model = ?", embeddingModel).Delete(&model.KnowledgeChunk{})
	})

	now := time.Now()
	chunks := []*entity.KnowledgeChunk{
		{Id: uuid.New(), Document: "Tarifs assurance auto", Source: source, Category: "Assurance Automobile", EmbeddingModel: embeddingModel, Embedding: []float32{1, 0, 0}, CreatedAt: now},
		{Id: uuid.New(), Document: "Garanties vie", Source: source, Category: "Assurance Vie", EmbeddingModel: embeddingModel, Embedding: []float32{0, 1, 0}, CreatedAt: now},
		{Id: uuid.New(), Document: "Franchise auto", Source: source, Category: "Assurance Automobile", EmbeddingModel: embeddingModel, Embedding: []float32{0.9, 0.1, 0}, CreatedAt: now},
	}
	require.NoError(t, repo.CreateBulk(ctx, chunks))

	t.Run("Count by source and model", func(t *testing.T) {
		n, err := repo.Count(ctx, specification.BySource{Source: source}, specification.ByEmbeddingModel{Model: embeddingModel})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("Query orders by cosine distance", func(t *testing.T) {
		res, err := repo.Query(ctx, []float32{1, 0, 0}, 2, embeddingModel)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "Tarifs assurance auto", res[0].Chunk.Document)
		assert.Equal(t, "Franchise auto", res[1].Chunk.Document)
		assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
	})

	t.Run("Query by category", func(t *testing.T) {
		res, err := repo.Query(ctx, []float32{1, 0, 0}, 5, embeddingModel, specification.ByCategory{Category: "Assurance Vie"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Garanties vie", res[0].Chunk.Document)
	})

	t.Run("Other embedding spaces are invisible", func(t *testing.T) {
		res, err := repo.Query(ctx, []float32{1, 0, 0}, 5, "integration-unknown-model")
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}
