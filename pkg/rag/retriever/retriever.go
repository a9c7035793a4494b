package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/store"
)

const module = "RETRIEVER"

// EmbeddingResolver hands out the live embedding handle.
type EmbeddingResolver interface {
	Resolve(ctx context.Context) (*embedding.Handle, error)
	Invalidate(h *embedding.Handle)
}

// Retriever turns a query into ranked knowledge-base passages. It never
// fails: any collaborator error yields an empty result and a log line.
type Retriever struct {
	resolver     EmbeddingResolver
	repo         contract.KnowledgeChunkRepository
	logger       logger.ILogger
	storeTimeout time.Duration
	embedTimeout time.Duration
}

func New(resolver EmbeddingResolver, repo contract.KnowledgeChunkRepository, log logger.ILogger, storeTimeout, embedTimeout time.Duration) *Retriever {
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	if embedTimeout <= 0 {
		embedTimeout = 60 * time.Second
	}
	return &Retriever{
		resolver:     resolver,
		repo:         repo,
		logger:       log,
		storeTimeout: storeTimeout,
		embedTimeout: embedTimeout,
	}
}

// Retrieve returns at most topK documents, most relevant first.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []store.Document {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []store.Document{}
	}

	docs, err := r.retrieve(ctx, query, topK)
	if err != nil {
		details := map[string]interface{}{"error": err.Error(), "top_k": topK}
		if errors.Is(err, embedding.ErrLadderExhausted) {
			r.logger.Error(module, "Retrieval unavailable, no embedding model could be loaded", details)
		} else {
			r.logger.Warn(module, "Retrieval failed, continuing without context", details)
		}
		return []store.Document{}
	}
	return docs
}

// RetrieveContext formats Retrieve's output as the prompt context block.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, topK int) string {
	return FormatContext(r.Retrieve(ctx, query, topK))
}

func (r *Retriever) retrieve(ctx context.Context, query string, topK int) ([]store.Document, error) {
	handle, err := r.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	vector, err := handle.EmbedQuery(embedCtx, query)
	cancel()
	if err != nil {
		r.resolver.Invalidate(handle)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	scored, err := r.repo.Query(storeCtx, vector, topK, handle.Spec().Name)
	if err != nil {
		return nil, fmt.Errorf("vector store query: %w", err)
	}

	docs := make([]store.Document, 0, len(scored))
	for _, s := range scored {
		if len(docs) == topK {
			break
		}
		docs = append(docs, store.Document{
			Text:     s.Chunk.Document,
			SourceID: s.Chunk.Source,
			Distance: s.Distance,
			Metadata: s.Chunk.Metadata,
		})
	}

	r.logger.Debug(module, "Retrieved documents", map[string]interface{}{
		"count": len(docs),
		"model": handle.Spec().Name,
	})
	return docs, nil
}

// FormatContext renders documents as "[Doc i - source]" blocks numbered from 1.
func FormatContext(docs []store.Document) string {
	var sb strings.Builder
	for i, d := range docs {
		source := d.SourceID
		if source == "" {
			source = "unknown"
		}
		sb.WriteString(fmt.Sprintf("[Doc %d - %s]\n%s\n\n", i+1, source, d.Text))
	}
	return sb.String()
}
