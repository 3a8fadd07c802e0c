package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns *ServiceError when the service rejects the text, or another
	// error when the service could not be reached.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
