package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaLoaderLoadAndEmbed(t *testing.T) {
	var requests []ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		embeddings := make([][]float64, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float64{3, 4}
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Model: req.Model, Embeddings: embeddings})
	}))
	defer server.Close()

	loader := NewOllamaLoader(server.URL, "f16", false, 5*time.Second)
	model, err := loader.Load(context.Background(), ModelSpec{Name: "all-minilm", Device: DeviceCPU, Precision: PrecisionFull})
	require.NoError(t, err)

	vectors, err := model.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, requests, 2)
	assert.Equal(t, "all-minilm", requests[0].Model)
	assert.Equal(t, float64(0), requests[0].Options["num_gpu"])
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[1][1], 1e-6)
}

func TestOllamaLoaderHalfPrecisionTag(t *testing.T) {
	loader := NewOllamaLoader("", "f16", true, time.Second)

	tests := []struct {
		name string
		spec ModelSpec
		want string
	}{
		{"full keeps name", ModelSpec{Name: "jeffh/intfloat-multilingual-e5-large", Precision: PrecisionFull}, "jeffh/intfloat-multilingual-e5-large"},
		{"half appends tag", ModelSpec{Name: "jeffh/intfloat-multilingual-e5-large", Precision: PrecisionHalf}, "jeffh/intfloat-multilingual-e5-large:f16"},
		{"half replaces tag", ModelSpec{Name: "jeffh/intfloat-multilingual-e5-base:latest", Precision: PrecisionHalf}, "jeffh/intfloat-multilingual-e5-base:f16"},
		{"registry port kept", ModelSpec{Name: "localhost:5000/e5", Precision: PrecisionHalf}, "localhost:5000/e5:f16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loader.modelRef(tt.spec))
		})
	}
}

func TestOllamaLoaderClassifiesExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model requires more system memory (5.1 GiB) than is available (2.0 GiB)"}`))
	}))
	defer server.Close()

	loader := NewOllamaLoader(server.URL, "f16", true, 5*time.Second)
	_, err := loader.Load(context.Background(), ModelSpec{Name: "e5", Device: DeviceAccelerator, Precision: PrecisionFull})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestOllamaLoaderGenericFailureIsNotExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"e5\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	loader := NewOllamaLoader(server.URL, "f16", true, 5*time.Second)
	_, err := loader.Load(context.Background(), ModelSpec{Name: "e5", Device: DeviceAccelerator})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrResourceExhausted))
}

func TestOllamaLoaderReleaseAccelerator(t *testing.T) {
	var unloaded []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ps":
			_, _ = w.Write([]byte(`{"models":[{"name":"e5-large:latest","size_vram":1024},{"name":"minilm:latest","size_vram":0}]}`))
		case "/api/generate":
			var req ollamaUnloadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Zero(t, req.KeepAlive)
			unloaded = append(unloaded, req.Model)
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	loader := NewOllamaLoader(server.URL, "f16", true, 5*time.Second)
	require.NoError(t, loader.ReleaseAccelerator(context.Background()))

	assert.Equal(t, []string{"e5-large:latest"}, unloaded)
}

func TestNormalizeVector(t *testing.T) {
	v := normalizeVector([]float32{3, 4})

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
}
