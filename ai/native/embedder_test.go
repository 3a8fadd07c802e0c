package native

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) ai.Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(server.URL + "/")))
	require.NoError(t, err)
	return embedder
}

func TestEmbedText_Success(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody embedRequest

	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	})

	vector, err := embedder.EmbedText(context.Background(), "search_document: hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "/embed", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "search_document: hello", gotBody.Text)
}

func TestEmbedText_ServiceError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"error with 200", http.StatusOK},
		{"error with 500", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": "CUDA out of memory"}`))
			})

			_, err := embedder.EmbedText(context.Background(), "text")
			require.Error(t, err)

			var serviceErr *ai.ServiceError
			require.True(t, errors.As(err, &serviceErr))
			assert.Equal(t, "CUDA out of memory", serviceErr.Message)
			assert.Equal(t, "CUDA out of memory", err.Error(), "message is verbatim")
		})
	}
}

func TestEmbedText_HTTPFailure(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := embedder.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	var serviceErr *ai.ServiceError
	assert.False(t, errors.As(err, &serviceErr))
}

func TestEmbedText_EmptyEmbedding(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	})

	_, err := embedder.EmbedText(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrEmptyEmbedding)
}

func TestEmbedText_MalformedJSON(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := embedder.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestEmbedText_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(url)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach embedding service")
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{Backend: ai.BackendNative})
	assert.ErrorIs(t, err, ai.ErrEmbeddingHostRequired)
}
