// Package config loads chunkpipe settings from a YAML file.
//
// Settings start from Default, are overlaid by the file, and finally by
// command-line flags and CHUNKPIPE_* environment variables in the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/poiesic/chunkpipe/core"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheRemote  = "remote"
	CacheChromem = "chromem"
)

var (
	// ErrUnknownCacheBackend is returned for a cache backend other than remote or chromem.
	ErrUnknownCacheBackend = errors.New("unknown cache backend")

	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Backend string `yaml:"backend"`
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
	Token   string `yaml:"token"`
}

// CacheConfig selects where embedded chunks are published.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Host    string `yaml:"host"` // remote only
	Path    string `yaml:"path"` // chromem only; empty keeps the cache in memory
}

// ChunkingConfig holds the automatic chunking bounds.
type ChunkingConfig struct {
	MaxChars int `yaml:"max_chars"`
	MinChars int `yaml:"min_chars"`
	MinWords int `yaml:"min_words"`
}

// RetryConfig controls retries of idempotent cache requests.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// RetrievalConfig controls the retrieval check.
type RetrievalConfig struct {
	Threshold float32 `yaml:"threshold"`
	Limit     int     `yaml:"limit"`
}

// Config is the root configuration.
type Config struct {
	Database  string          `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Delay     time.Duration   `yaml:"delay"`
	Retry     RetryConfig     `yaml:"retry"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Default returns the built-in settings.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	params := core.DefaultChunkingParams()
	return &Config{
		Database: filepath.Join(DefaultDir(), "db"),
		Embedding: EmbeddingConfig{
			Backend: string(aiDefaults.Backend),
			Host:    aiDefaults.EmbeddingHost,
			Model:   aiDefaults.EmbeddingModel,
			Token:   aiDefaults.APIToken,
		},
		Cache: CacheConfig{
			Backend: CacheRemote,
			Host:    "http://localhost:4000",
		},
		Chunking: ChunkingConfig{
			MaxChars: params.MaxChars,
			MinChars: params.MinChars,
			MinWords: params.MinWords,
		},
		Delay: 100 * time.Millisecond,
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			Threshold: 0.5,
			Limit:     10,
		},
	}
}

// DefaultDir is where chunkpipe keeps its data unless told otherwise.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chunkpipe"
	}
	return filepath.Join(home, ".chunkpipe")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads the config at path over the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults fills settings a file blanked out explicitly.
func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = defaults.Embedding.Backend
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaults.Cache.Backend
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if cfg.Retrieval.Limit == 0 {
		cfg.Retrieval.Limit = defaults.Retrieval.Limit
	}
}

// Validate checks the config for settings no component can use.
func (c *Config) Validate() error {
	if err := c.AI().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Cache.Backend {
	case CacheRemote, CacheChromem:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownCacheBackend, c.Cache.Backend)
	}
	if err := core.ValidateChunkingParams(c.ChunkingParams()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay cannot be negative", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Retrieval.Threshold < -1 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("%w: retrieval.threshold must be within [-1, 1]", ErrInvalidConfig)
	}
	if c.Retrieval.Limit < 1 {
		return fmt.Errorf("%w: retrieval.limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// AI returns the embedding client configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithBackend(ai.Backend(c.Embedding.Backend)),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIToken(c.Embedding.Token),
	)
}

// ChunkingParams returns the automatic chunking bounds.
func (c *Config) ChunkingParams() core.ChunkingParams {
	return core.ChunkingParams{
		MaxChars: c.Chunking.MaxChars,
		MinChars: c.Chunking.MinChars,
		MinWords: c.Chunking.MinWords,
	}
}
