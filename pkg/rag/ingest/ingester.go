package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"ai-sales-agent-be/internal/entity"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/internal/repository/specification"
	"ai-sales-agent-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

const module = "INGEST"

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultBatchSize    = 16
)

var ErrUnsupportedFile = errors.New("ingest: unsupported file type")

// Resolver hands out the live embedding model. Chunks are embedded with the
// same model queries will use, so they share one embedding space.
type Resolver interface {
	Resolve(ctx context.Context) (*embedding.Handle, error)
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Extractors   map[string]Extractor
}

// Report summarises one directory run.
type Report struct {
	Files   int      `json:"files"`
	Skipped int      `json:"skipped"`
	Chunks  int      `json:"chunks"`
	Failed  []string `json:"failed,omitempty"`
}

// Ingester splits documents into chunks, embeds them and stores them in the
// knowledge base.
type Ingester struct {
	resolver   Resolver
	repo       contract.KnowledgeChunkRepository
	splitter   textsplitter.TextSplitter
	extractors map[string]Extractor
	batchSize  int
	logger     logger.ILogger
}

func New(resolver Resolver, repo contract.KnowledgeChunkRepository, log logger.ILogger, opts Options) (*Ingester, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		return nil, fmt.Errorf("ingest: overlap cannot be negative")
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("ingest: overlap %d must be smaller than size %d", opts.ChunkOverlap, opts.ChunkSize)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Extractors == nil {
		opts.Extractors = DefaultExtractors()
	}

	return &Ingester{
		resolver: resolver,
		repo:     repo,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		),
		extractors: opts.Extractors,
		batchSize:  opts.BatchSize,
		logger:     log,
	}, nil
}

// IngestDir walks root and ingests every supported file. The category of a
// file comes from its parent folder. A failing file is reported and skipped.
func (i *Ingester) IngestDir(ctx context.Context, root string) (Report, error) {
	var report Report

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := i.extractors[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Files++
		n, err := i.IngestFile(ctx, path, CategoryFromDir(filepath.Dir(path)))
		switch {
		case err != nil:
			i.logger.Error(module, "Failed to ingest file", map[string]interface{}{"path": path, "error": err.Error()})
			report.Failed = append(report.Failed, path)
		case n == 0:
			report.Skipped++
		default:
			report.Chunks += n
		}
		return nil
	})

	return report, err
}

// IngestFile stores the chunks of one file and returns how many were
// written. Files already stored for the live embedding model are skipped.
func (i *Ingester) IngestFile(ctx context.Context, path, category string) (int, error) {
	extract, ok := i.extractors[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	handle, err := i.resolver.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	modelName := handle.Spec().Name
	filename := filepath.Base(path)

	existing, err := i.repo.Count(ctx, specification.BySource{Source: filename}, specification.ByEmbeddingModel{Model: modelName})
	if err != nil {
		return 0, fmt.Errorf("count chunks of %s: %w", filename, err)
	}
	if existing > 0 {
		i.logger.Info(module, "File already ingested, skipping", map[string]interface{}{"file": filename, "model": modelName})
		return 0, nil
	}

	text, err := extract(path)
	if err != nil {
		return 0, err
	}
	segments, err := i.split(text)
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", filename, err)
	}
	if len(segments) == 0 {
		return 0, nil
	}

	now := time.Now()
	chunks := make([]*entity.KnowledgeChunk, 0, len(segments))
	for start := 0; start < len(segments); start += i.batchSize {
		end := min(start+i.batchSize, len(segments))
		vectors, err := handle.Embed(ctx, segments[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", filename, err)
		}
		if len(vectors) != end-start {
			return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", filename, len(vectors), end-start)
		}

		for j, vec := range vectors {
			idx := start + j
			chunks = append(chunks, &entity.KnowledgeChunk{
				Id:       uuid.New(),
				Document: segments[idx],
				Source:   filename,
				Category: category,
				Metadata: map[string]interface{}{
					"source":       path,
					"filename":     filename,
					"category":     category,
					"chunk_index":  idx,
					"chunk_length": len([]rune(segments[idx])),
					"added_at":     now.UTC().Format(time.RFC3339),
				},
				EmbeddingModel: modelName,
				Embedding:      vec,
				CreatedAt:      now,
			})
		}
	}

	if err := i.repo.CreateBulk(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks of %s: %w", filename, err)
	}

	i.logger.Info(module, "File ingested", map[string]interface{}{
		"file":     filename,
		"category": category,
		"chunks":   len(chunks),
		"model":    modelName,
	})
	return len(chunks), nil
}

func (i *Ingester) split(text string) ([]string, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}
	raw, err := i.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
