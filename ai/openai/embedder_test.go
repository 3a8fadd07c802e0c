package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingsServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 0.5},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewEmbedder(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := ai.NewConfig(
			ai.WithBackend(ai.BackendOpenAI),
			ai.WithEmbeddingHost("http://localhost:11434"),
			ai.WithEmbeddingModel("nomic-embed-text"),
		)
		embedder, err := NewEmbedder(cfg)
		require.NoError(t, err)
		assert.NotNil(t, embedder)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost, "config is normalized")
	})

	t.Run("native backend rejected", func(t *testing.T) {
		_, err := NewEmbedder(ai.NewConfig())
		assert.ErrorIs(t, err, ai.ErrUnknownBackend)
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := &ai.Config{Backend: ai.BackendOpenAI, EmbeddingHost: "http://localhost:11434"}
		_, err := NewEmbedder(cfg)
		assert.ErrorIs(t, err, ai.ErrEmbeddingModelRequired)
	})
}

func TestEmbedder_EmbedText(t *testing.T) {
	server := embeddingsServer(t)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithBackend(ai.BackendOpenAI),
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("test-model"),
	))
	require.NoError(t, err)

	vector, err := embedder.EmbedText(context.Background(), "search_document: a\nb")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vector)
}

func TestEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "model not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithBackend(ai.BackendOpenAI),
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("missing"),
	))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "text")
	assert.Error(t, err)
}
