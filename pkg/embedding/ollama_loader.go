package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaLoader loads embedding models served by a local Ollama runtime.
// Device and precision are mapped onto Ollama's knobs: CPU placement is
// num_gpu=0, half precision is a model tag (e.g. "f16").
type OllamaLoader struct {
	HalfTag     string
	Accelerator bool
	http        *resty.Client
}

var _ Loader = &OllamaLoader{}

func NewOllamaLoader(baseURL, halfTag string, accelerator bool, timeout time.Duration) *OllamaLoader {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaLoader{
		HalfTag:     halfTag,
		Accelerator: accelerator,
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Ollama Embedding Request/Response structures
type ollamaEmbedRequest struct {
	Model   string                 `json:"model"`
	Input   []string               `json:"input"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"` // Ollama returns float64
	Error      string      `json:"error,omitempty"`
}

type ollamaUnloadRequest struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

type ollamaPsResponse struct {
	Models []struct {
		Name     string `json:"name"`
		SizeVRAM int64  `json:"size_vram"`
	} `json:"models"`
}

func (l *OllamaLoader) AcceleratorAvailable() bool {
	return l.Accelerator
}

// Load verifies the model answers a warm-up embedding with the requested
// placement before handing it out.
func (l *OllamaLoader) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	m := &ollamaModel{loader: l, spec: spec, ref: l.modelRef(spec)}
	if _, err := m.Embed(ctx, []string{"warm-up"}); err != nil {
		return nil, err
	}
	return m, nil
}

// ReleaseAccelerator unloads every resident model (keep_alive=0) so the
// next attempt starts with free accelerator memory.
func (l *OllamaLoader) ReleaseAccelerator(ctx context.Context) error {
	resp, err := l.http.R().SetContext(ctx).Get("/api/ps")
	if err != nil {
		return fmt.Errorf("list resident models: %w", err)
	}

	var ps ollamaPsResponse
	if err := json.Unmarshal(resp.Body(), &ps); err != nil {
		return fmt.Errorf("decode resident models: %w", err)
	}

	var errs []error
	for _, m := range ps.Models {
		if m.SizeVRAM == 0 {
			continue
		}
		if err := l.post(ctx, "/api/generate", ollamaUnloadRequest{Model: m.Name, KeepAlive: 0}, nil); err != nil {
			errs = append(errs, fmt.Errorf("unload %s: %w", m.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (l *OllamaLoader) modelRef(spec ModelSpec) string {
	if spec.Precision != PrecisionHalf || l.HalfTag == "" {
		return spec.Name
	}
	name := spec.Name
	// Replace an existing tag, keeping registry paths like "jeffh/model".
	if idx := strings.LastIndex(name, ":"); idx > strings.LastIndex(name, "/") {
		name = name[:idx]
	}
	return name + ":" + l.HalfTag
}

// post decodes the body itself: Ollama error payloads are not always
// served as application/json.
func (l *OllamaLoader) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	resp, err := l.http.R().SetContext(ctx).SetBody(payload).Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return classifyLoadError(fmt.Errorf("ollama error (status %d): %s", resp.StatusCode(), resp.String()))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

type ollamaModel struct {
	loader *OllamaLoader
	spec   ModelSpec
	ref    string
}

func (m *ollamaModel) Spec() ModelSpec {
	return m.spec
}

func (m *ollamaModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := ollamaEmbedRequest{Model: m.ref, Input: texts}
	if m.spec.Device == DeviceCPU {
		reqBody.Options = map[string]interface{}{"num_gpu": 0}
	}

	var resp ollamaEmbedResponse
	if err := m.loader.post(ctx, "/api/embed", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, classifyLoadError(errors.New(resp.Error))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, raw := range resp.Embeddings {
		values := make([]float32, len(raw))
		for j, v := range raw {
			values[j] = float32(v)
		}
		// pgvector cosine distance expects unit vectors
		vectors[i] = normalizeVector(values)
	}
	return vectors, nil
}

var exhaustionMarkers = []string{
	"out of memory",
	"outofmemory",
	"cudamalloc",
	"insufficient memory",
	"not enough memory",
	"requires more system memory",
}

// classifyLoadError tags memory-pressure failures with ErrResourceExhausted.
func classifyLoadError(err error) error {
	if err == nil || errors.Is(err, ErrResourceExhausted) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range exhaustionMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
	}
	return err
}

// normalizeVector normalizes a vector to unit length (magnitude = 1)
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
