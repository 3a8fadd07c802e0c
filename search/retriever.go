package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/poiesic/chunkpipe/cache"
	"github.com/poiesic/chunkpipe/chunker"
)

const (
	// DefaultQuery is the question asked when none is given.
	DefaultQuery = "What is the purpose of this project?"

	// DefaultThreshold is the similarity a chunk must exceed to be kept.
	DefaultThreshold float32 = 0.5

	// DefaultLimit caps how many chunks are considered.
	DefaultLimit = 10

	// ContextSeparator joins the kept chunk texts.
	ContextSeparator = "\n---\n"
)

// Result is the outcome of one retrieval.
type Result struct {
	Matches []cache.Match // Kept chunks, most similar first
	Context string        // Kept chunk texts without prefix, joined by ContextSeparator
}

// Retriever finds cached chunks relevant to a question.
type Retriever struct {
	embedder  ai.Embedder
	querier   cache.Querier
	threshold float32
	limit     int
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithThreshold sets the minimum similarity, exclusive.
func WithThreshold(threshold float32) Option {
	return func(r *Retriever) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("threshold %v outside [-1, 1]", threshold)
		}
		r.threshold = threshold
		return nil
	}
}

// WithLimit sets how many nearest chunks are considered.
func WithLimit(limit int) Option {
	return func(r *Retriever) error {
		if limit < 1 {
			return fmt.Errorf("limit must be positive, got %d", limit)
		}
		r.limit = limit
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever.
func NewRetriever(embedder ai.Embedder, querier cache.Querier, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if querier == nil {
		return nil, ErrQuerierRequired
	}

	r := &Retriever{
		embedder:  embedder,
		querier:   querier,
		threshold: DefaultThreshold,
		limit:     DefaultLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Retrieve returns the project's chunks most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, project, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.querier.Query(ctx, project, vector, r.limit)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Similarity <= r.threshold {
			continue
		}
		result.Matches = append(result.Matches, m)
		texts = append(texts, chunker.Strip(m.Text))
	}
	result.Context = strings.Join(texts, ContextSeparator)

	r.logger.Debug("retrieved context", "project", project, "candidates", len(matches), "kept", len(result.Matches))
	return result, nil
}
