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


package chunkpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/poiesic/chunkpipe/ai/native"
	"github.com/poiesic/chunkpipe/ai/openai"
	"github.com/poiesic/chunkpipe/cache"
	"github.com/poiesic/chunkpipe/cache/chromem"
	"github.com/poiesic/chunkpipe/cache/remote"
	"github.com/poiesic/chunkpipe/config"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/embedding"
	"github.com/poiesic/chunkpipe/pipeline"
	"github.com/poiesic/chunkpipe/progress"
	"github.com/poiesic/chunkpipe/publish"
	"github.com/poiesic/chunkpipe/search"
	"github.com/poiesic/chunkpipe/storage"
	"github.com/poiesic/chunkpipe/storage/badger"
)

var (
	// ErrRetrievalUnsupported is returned when the configured cache cannot
	// answer similarity queries.
	ErrRetrievalUnsupported = errors.New("retrieval needs the chromem cache backend")

	// ErrCorruptProject is returned when a stored chunk list does not match
	// its fingerprint.
	ErrCorruptProject = errors.New("stored chunks do not match their fingerprint")
)

// Workspace owns the project database and the clients a pipeline needs.
type Workspace struct {
	cfg            *config.Config
	backend        *badger.Backend
	projects       storage.ProjectRepository
	embedder       ai.Embedder
	cache          cache.Cache
	progressWriter io.Writer
	logger         *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	inMemory       bool
	embedder       ai.Embedder
	cache          cache.Cache
	progressWriter io.Writer
	logger         *slog.Logger
}

// WithInMemoryDatabase keeps projects in memory instead of cfg.Database.
func WithInMemoryDatabase() WorkspaceOption {
	return func(o *workspaceOptions) {
		o.inMemory = true
	}
}

// WithEmbedder replaces the embedder the config would select.
func WithEmbedder(embedder ai.Embedder) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.embedder = embedder
	}
}

// WithCache replaces the cache the config would select.
func WithCache(c cache.Cache) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.cache = c
	}
}

// WithProgressOutput writes run progress lines to w.
func WithProgressOutput(w io.Writer) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.progressWriter = w
	}
}

// WithWorkspaceLogger sets a custom logger.
// Default is slog.Default().
func WithWorkspaceLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// OpenWorkspace validates cfg and opens everything it names.
func OpenWorkspace(cfg *config.Config, opts ...WorkspaceOption) (*Workspace, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &workspaceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		var err error
		if embedder, err = newEmbedder(cfg.AI(), options.logger); err != nil {
			return nil, err
		}
	}

	c := options.cache
	if c == nil {
		var err error
		if c, err = newCache(cfg.Cache, options.logger); err != nil {
			return nil, err
		}
	}

	backend, err := badger.OpenBackend(cfg.Database, options.inMemory)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		cfg:            cfg,
		backend:        backend,
		projects:       badger.NewProjectRepository(backend),
		embedder:       embedder,
		cache:          c,
		progressWriter: options.progressWriter,
		logger:         options.logger,
	}, nil
}

func newEmbedder(cfg *ai.Config, logger *slog.Logger) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewEmbedder(cfg)
	default:
		return native.NewEmbedder(cfg, native.WithLogger(logger))
	}
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheChromem:
		if cfg.Path == "" {
			return chromem.NewMemory(chromem.WithLogger(logger)), nil
		}
		return chromem.Open(cfg.Path, chromem.WithLogger(logger))
	case config.CacheRemote:
		return remote.NewClient(cfg.Host, remote.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownCacheBackend, cfg.Backend)
	}
}

// Close closes the project database.
func (w *Workspace) Close() error {
	if err := w.backend.Close(); err != nil {
		w.logger.Error("error closing project database", "err", err)
		return err
	}
	return nil
}

// Config returns the settings the workspace was opened with.
func (w *Workspace) Config() *config.Config {
	return w.cfg
}

// Projects returns the project repository.
func (w *Workspace) Projects() storage.ProjectRepository {
	return w.projects
}

// Cache returns the cache projects are published to.
func (w *Workspace) Cache() cache.Cache {
	return w.cache
}

// OpenProject loads a project, or starts an empty one if none is stored.
// Entries left in flight by an interrupted run are returned to the state
// they were retried from.
func (w *Workspace) OpenProject(ctx context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, core.ErrEmptyProjectID
	}
	record, err := w.projects.LoadProject(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		p := newProject(id, w.cfg.ChunkingParams())
		p.logger = w.logger
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	if core.Fingerprint(record.Chunks) != record.Fingerprint {
		return nil, fmt.Errorf("project %s: %w", id, ErrCorruptProject)
	}

	p := projectFromRecord(record)
	p.logger = w.logger
	if n := p.Store.Recover(); n > 0 {
		w.logger.Info("recovered interrupted chunks", "project", id, "count", n)
	}
	return p, nil
}

// SaveProject stores the project's chunks and statuses.
func (w *Workspace) SaveProject(ctx context.Context, p *Project) error {
	return w.projects.SaveProject(ctx, p.record())
}

// DeleteProject removes a stored project. Its cache is left untouched.
func (w *Workspace) DeleteProject(ctx context.Context, id string) error {
	return w.projects.DeleteProject(ctx, id)
}

// NewDriver creates an embedding driver over the project's status store.
func (w *Workspace) NewDriver(p *Project) *embedding.Driver {
	opts := []embedding.Option{
		embedding.WithDelay(w.cfg.Delay),
		embedding.WithLogger(w.logger.With("project", p.ID)),
	}
	if w.progressWriter != nil {
		opts = append(opts, embedding.WithProgress(progress.NewTracker(w.progressWriter, "Embedding", 1)))
	}
	return embedding.NewDriver(w.embedder, p.Store, opts...)
}

// NewPublisher creates a publisher for the project's cache.
func (w *Workspace) NewPublisher(p *Project) (*publish.Publisher, error) {
	opts := []publish.Option{
		publish.WithDelay(w.cfg.Delay),
		publish.WithRetry(w.cfg.Retry.MaxAttempts, w.cfg.Retry.Delay),
		publish.WithLogger(w.logger.With("project", p.ID)),
	}
	if w.progressWriter != nil {
		opts = append(opts, publish.WithProgress(progress.NewTracker(w.progressWriter, "Pushing", 1)))
	}
	return publish.NewPublisher(w.cache, p.ID, opts...)
}

// NewPipeline creates a pipeline over the project that saves the project
// after every run.
func (w *Workspace) NewPipeline(p *Project) (*pipeline.Pipeline, error) {
	publisher, err := w.NewPublisher(p)
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(w.NewDriver(p), publisher, p.Store,
		pipeline.WithLogger(w.logger.With("project", p.ID)),
		pipeline.WithOnFinish(func(result pipeline.Result, _ error) {
			if err := w.SaveProject(context.Background(), p); err != nil {
				w.logger.Error("failed to save project after run", "project", p.ID, "run", result.RunID, "err", err)
			}
		}),
	)
}

// NewRetriever creates a retriever over the workspace cache.
func (w *Workspace) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	querier, ok := w.cache.(cache.Querier)
	if !ok {
		return nil, ErrRetrievalUnsupported
	}
	defaults := []search.Option{
		search.WithThreshold(w.cfg.Retrieval.Threshold),
		search.WithLimit(w.cfg.Retrieval.Limit),
		search.WithLogger(w.logger),
	}
	return search.NewRetriever(w.embedder, querier, append(defaults, opts...)...)
}
