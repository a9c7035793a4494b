package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Device is where a model is placed.
type Device string

const (
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "accelerator"
)

// Precision is the numeric precision a model is loaded with.
type Precision string

const (
	PrecisionFull Precision = "full"
	PrecisionHalf Precision = "half"
)

var (
	// ErrResourceExhausted marks a load failure caused by memory pressure.
	// It is the only failure that lets the ladder try reduced precision.
	ErrResourceExhausted = errors.New("embedding: resource exhausted")

	// ErrLadderExhausted is returned when even the last-resort model failed.
	ErrLadderExhausted = errors.New("embedding: every fallback model failed to load")
)

// ModelSpec identifies one load attempt.
type ModelSpec struct {
	Name        string    `json:"name"`
	Device      Device    `json:"device"`
	Precision   Precision `json:"precision"`
	QueryPrefix string    `json:"query_prefix,omitempty"`
}

func (s ModelSpec) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Name, s.Device, s.Precision)
}

// Model is a loaded embedding model.
type Model interface {
	Spec() ModelSpec
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Loader loads models and manages accelerator memory.
type Loader interface {
	Load(ctx context.Context, spec ModelSpec) (Model, error)
	AcceleratorAvailable() bool
	ReleaseAccelerator(ctx context.Context) error
}

// Handle is the process-wide reference to the resolved model.
type Handle struct {
	model      Model
	resolvedAt time.Time
}

func (h *Handle) Spec() ModelSpec {
	return h.model.Spec()
}

func (h *Handle) ResolvedAt() time.Time {
	return h.resolvedAt
}

// Embed embeds documents as-is.
func (h *Handle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return h.model.Embed(ctx, texts)
}

// EmbedQuery embeds a single search query, applying the model's query prefix.
func (h *Handle) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := h.model.Embed(ctx, []string{h.model.Spec().QueryPrefix + query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}
