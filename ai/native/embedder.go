package native

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/chunkpipe/ai"
)

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

// Embedder implements ai.Embedder against the native embedding service.
type Embedder struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithHTTPClient sets the HTTP client used for requests.
// Default is a client without a timeout: a request lasts as long as the
// service takes to answer.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger.With("component", "native-embedder")
		}
	}
}

// newEmbedder returns the concrete type.
func newEmbedder(config *ai.Config, opts ...Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Embedder{
		endpoint: config.EmbeddingHost + "/embed",
		client:   &http.Client{},
		logger:   slog.Default().With("component", "native-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, opts ...Option) (ai.Embedder, error) {
	return newEmbedder(config, opts...)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("embedding request failed", "err", err)
		return nil, fmt.Errorf("failed to reach embedding service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response: %w", err)
	}

	var out embedResponse
	decodeErr := json.Unmarshal(raw, &out)

	// A service-reported error wins over the HTTP status.
	if decodeErr == nil && out.Error != "" {
		e.logger.Warn("embedding service reported an error", "status", resp.StatusCode, "err", out.Error)
		return nil, &ai.ServiceError{Message: out.Error}
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service returned %s", resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", decodeErr)
	}
	if len(out.Embedding) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}

	return out.Embedding, nil
}
