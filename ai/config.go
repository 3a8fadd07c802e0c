// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
)

// Backend selects the embedding client implementation.
type Backend string

const (
	// BackendNative talks to the project's embedding service (POST /embed).
	BackendNative Backend = "native"
	// BackendOpenAI talks to an OpenAI-compatible embeddings API.
	BackendOpenAI Backend = "openai"
)

// Config holds configuration for embedding clients.
type Config struct {
	// Backend selects the client implementation.
	// Default: BackendNative
	Backend Backend

	// EmbeddingHost is the base URL of the embedding service.
	// Example: "http://localhost:8000" (native), "http://localhost:11434/v1" (openai)
	EmbeddingHost string

	// EmbeddingModel is the model identifier for OpenAI-compatible servers.
	// Ignored by the native backend, whose service has a fixed model.
	EmbeddingModel string

	// APIToken is sent as the bearer token to OpenAI-compatible servers.
	// Local servers that need no authentication accept any value.
	APIToken string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the client implementation.
func WithBackend(backend Backend) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIToken sets the bearer token for OpenAI-compatible servers.
func WithAPIToken(token string) ConfigOption {
	return func(c *Config) {
		c.APIToken = token
	}
}

// DefaultConfig returns a Config for the native embedding service on localhost.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendNative,
		EmbeddingHost:  "http://localhost:8000",
		EmbeddingModel: "nomic-embed-text",
		APIToken:       "none",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Hosts lose any trailing slash; OpenAI-compatible hosts gain the /v1
// suffix most servers (Ollama, LocalAI, vLLM) require.
func (c *Config) Normalize() {
	if c.Backend == "" {
		c.Backend = BackendNative
	}
	c.Backend = Backend(strings.ToLower(string(c.Backend)))

	c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
	if c.Backend == BackendOpenAI && c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendNative, BackendOpenAI:
	default:
		return fmt.Errorf("ai config: %w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.EmbeddingHost == "" {
		return fmt.Errorf("ai config: %w", ErrEmbeddingHostRequired)
	}
	if c.Backend == BackendOpenAI && c.EmbeddingModel == "" {
		return fmt.Errorf("ai config: %w", ErrEmbeddingModelRequired)
	}
	return nil
}
