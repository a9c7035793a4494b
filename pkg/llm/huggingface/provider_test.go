package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-sales-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsOpenAICompatibleRequest(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"subject\":\"Offre\",\"body\":\"Bonjour\"}"}}]}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider("hf_test", server.URL, "mistralai/Mistral-7B-Instruct", time.Second)
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "Vous êtes un conseiller."},
		{Role: "model", Content: "Bonjour"},
	}, llm.WithJSONOutput())
	require.NoError(t, err)

	assert.JSONEq(t, `{"subject":"Offre","body":"Bonjour"}`, out)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.RoleAssistant, got.Messages[1].Role)
}

func TestChatSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider("k", server.URL, "m", time.Second)
	_, err := p.Generate(context.Background(), "Bonjour")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider("k", server.URL, "m", time.Second)
	_, err := p.Generate(context.Background(), "Bonjour")

	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}
