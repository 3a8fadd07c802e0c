package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ai.Embedder = (*MockEmbedder)(nil)

func TestMockEmbedder_Deterministic(t *testing.T) {
	embedder := NewMockEmbedder()

	a, err := embedder.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	b, err := embedder.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	c, err := embedder.EmbedText(context.Background(), "world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, Dimension)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4, "vectors are unit length")
}

func TestMockEmbedder_Recording(t *testing.T) {
	embedder := NewMockEmbedder()
	_, _ = embedder.EmbedText(context.Background(), "a")
	_, _ = embedder.EmbedText(context.Background(), "b")

	assert.Equal(t, 2, embedder.CallCount())
	assert.Equal(t, []string{"a", "b"}, embedder.Texts())

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("boom")
	}
	_, err := embedder.EmbedText(context.Background(), "d")
	assert.EqualError(t, err, "boom")

	embedder.Reset()
	assert.Equal(t, 0, embedder.CallCount())
	assert.Empty(t, embedder.Texts())
	assert.Nil(t, embedder.EmbedTextFunc)
}
