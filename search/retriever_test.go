package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/chunkpipe/ai/mock"
	"github.com/poiesic/chunkpipe/cache"
	"github.com/poiesic/chunkpipe/cache/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbedder maps known texts to fixed vectors.
func axisEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return nil, errors.New("unknown text")
	}
	return embedder
}

func seed(t *testing.T, c *chromem.Cache) {
	t.Helper()
	ctx := context.Background()
	entries := []cache.Entry{
		{ID: "chunk-1", Text: "search_document: the project builds bridges", Embedding: []float32{1, 0, 0}},
		{ID: "chunk-2", Text: "search_document: bridges need steel", Embedding: []float32{0.8, 0.6, 0}},
		{ID: "chunk-3", Text: "search_document: unrelated lunch menu", Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, c.Replace(ctx, "p", entries))
}

func TestRetrieve(t *testing.T) {
	c := chromem.NewMemory()
	seed(t, c)
	embedder := axisEmbedder(map[string][]float32{DefaultQuery: {1, 0, 0}})

	r, err := NewRetriever(embedder, c)
	require.NoError(t, err)

	result, err := r.Retrieve(context.Background(), "p", DefaultQuery)
	require.NoError(t, err)

	require.Len(t, result.Matches, 2, "orthogonal chunk falls below the threshold")
	assert.Equal(t, "chunk-1", result.Matches[0].ID)
	assert.Equal(t, "chunk-2", result.Matches[1].ID)
	assert.Equal(t, "the project builds bridges\n---\nbridges need steel", result.Context)
}

func TestRetrieve_Threshold(t *testing.T) {
	c := chromem.NewMemory()
	seed(t, c)
	embedder := axisEmbedder(map[string][]float32{"q": {1, 0, 0}})

	r, err := NewRetriever(embedder, c, WithThreshold(0.9))
	require.NoError(t, err)

	result, err := r.Retrieve(context.Background(), "p", "q")
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "the project builds bridges", result.Context)
}

func TestRetrieve_EmptyCache(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{"q": {1, 0, 0}})
	r, err := NewRetriever(embedder, chromem.NewMemory())
	require.NoError(t, err)

	result, err := r.Retrieve(context.Background(), "p", "q")
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Context)
}

func TestRetrieve_Errors(t *testing.T) {
	r, err := NewRetriever(axisEmbedder(nil), chromem.NewMemory())
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "p", "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = r.Retrieve(context.Background(), "p", "q")
	assert.ErrorContains(t, err, "failed to embed query")
}

func TestNewRetriever_Validation(t *testing.T) {
	_, err := NewRetriever(nil, chromem.NewMemory())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewRetriever(mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrQuerierRequired)

	_, err = NewRetriever(mock.NewMockEmbedder(), chromem.NewMemory(), WithLimit(0))
	assert.Error(t, err)

	_, err = NewRetriever(mock.NewMockEmbedder(), chromem.NewMemory(), WithThreshold(2))
	assert.Error(t, err)
}
