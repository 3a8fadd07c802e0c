package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendNative, cfg.Backend)
	assert.Equal(t, "http://localhost:8000", cfg.EmbeddingHost)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, "none", cfg.APIToken)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom values", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendOpenAI),
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithAPIToken("secret"),
		)

		assert.Equal(t, BackendOpenAI, cfg.Backend)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIToken)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		backend  Backend
		host     string
		wantHost string
	}{
		{"native keeps path", BackendNative, "http://localhost:8000", "http://localhost:8000"},
		{"native trims slash", BackendNative, "http://localhost:8000/", "http://localhost:8000"},
		{"openai adds v1", BackendOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai trims slash then adds v1", BackendOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"openai keeps v1", BackendOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"openai empty host", BackendOpenAI, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.wantHost, cfg.EmbeddingHost)
		})
	}

	t.Run("empty backend defaults to native", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://x"}
		cfg.Normalize()
		assert.Equal(t, BackendNative, cfg.Backend)
	})

	t.Run("backend is case-insensitive", func(t *testing.T) {
		cfg := &Config{Backend: "OpenAI", EmbeddingHost: "http://x"}
		cfg.Normalize()
		assert.Equal(t, BackendOpenAI, cfg.Backend)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{
			name:    "valid native without model",
			cfg:     &Config{Backend: BackendNative, EmbeddingHost: "http://localhost:8000"},
			wantErr: nil,
		},
		{
			name:    "valid openai",
			cfg:     &Config{Backend: BackendOpenAI, EmbeddingHost: "http://localhost:11434", EmbeddingModel: "m"},
			wantErr: nil,
		},
		{
			name:    "unknown backend",
			cfg:     &Config{Backend: "grpc", EmbeddingHost: "http://x"},
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "missing host",
			cfg:     &Config{Backend: BackendNative},
			wantErr: ErrEmbeddingHostRequired,
		},
		{
			name:    "openai missing model",
			cfg:     &Config{Backend: BackendOpenAI, EmbeddingHost: "http://x"},
			wantErr: ErrEmbeddingModelRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestServiceError(t *testing.T) {
	err := &ServiceError{Message: "model not loaded"}
	assert.Equal(t, "model not loaded", err.Error())
}
