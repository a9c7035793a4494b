package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"ai-sales-agent-be/internal/config"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/implementation"
	"ai-sales-agent-be/pkg/database"
	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/rag/ingest"
)

func main() {
	dir := flag.String("dir", "./data/french_docs", "root folder of the knowledge documents, one sub-folder per category")
	chunkSize := flag.Int("chunk-size", ingest.DefaultChunkSize, "chunk size in characters")
	overlap := flag.Int("overlap", ingest.DefaultChunkOverlap, "chunk overlap in characters")
	flag.Parse()

	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	loader := embedding.NewOllamaLoader(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingHalfTag, cfg.Ai.EmbeddingAccelerator, cfg.Timeouts.Embedding)
	resolver := embedding.NewResolver(loader, embedding.Ladder{
		Preferred:   cfg.Ai.EmbeddingPrimaryModel,
		Medium:      cfg.Ai.EmbeddingMediumModel,
		Small:       cfg.Ai.EmbeddingSmallModel,
		QueryPrefix: cfg.Ai.EmbeddingQueryPrefix,
	}, sysLogger)

	ingester, err := ingest.New(resolver, implementation.NewKnowledgeChunkRepository(db), sysLogger, ingest.Options{
		ChunkSize:    *chunkSize,
		ChunkOverlap: *overlap,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := ingester.IngestDir(ctx, *dir)
	if err != nil {
		log.Fatalf("Error: ingestion aborted: %v", err)
	}

	log.Printf("✅ %d file(s): %d chunk(s) stored, %d skipped, %d failed", report.Files, report.Chunks, report.Skipped, len(report.Failed))
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
