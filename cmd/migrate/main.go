package main

import (
	"log"

	"ai-sales-agent-be/internal/config"
	"ai-sales-agent-be/internal/model"
	"ai-sales-agent-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Enabling pgvector...")
	if err := database.EnsureVectorExtension(db); err != nil {
		log.Fatalf("Error: pgvector extension unavailable: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate for knowledge_chunks...")
	if err := db.AutoMigrate(&model.KnowledgeChunk{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
