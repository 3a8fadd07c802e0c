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


// Package chromem implements cache.Cache and cache.Querier on a chromem-go
// vector database. Each project maps to one collection named by
// cache.CollectionName.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"github.com/poiesic/chunkpipe/cache"
)

// ErrEmbeddingRequired is returned if chromem is ever asked to compute an
// embedding itself. Entries always arrive embedded.
var ErrEmbeddingRequired = errors.New("entries must carry a precomputed embedding")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingRequired
}

// Cache stores entries in chromem collections.
type Cache struct {
	// mu serializes the duplicate check with the insert.
	mu     sync.Mutex
	db     *chromemgo.DB
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger.With("component", "chromem-cache")
		}
	}
}

// NewMemory creates a cache that lives only in memory.
func NewMemory(opts ...Option) *Cache {
	return newCache(chromemgo.NewDB(), opts...)
}

// Open creates a cache persisted under path.
func Open(path string, opts ...Option) (*Cache, error) {
	db, err := chromemgo.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector cache: %w", err)
	}
	return newCache(db, opts...), nil
}

func newCache(db *chromemgo.DB, opts ...Option) *Cache {
	c := &Cache{
		db:     db,
		logger: slog.Default().With("component", "chromem-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ cache.Cache   = (*Cache)(nil)
	_ cache.Querier = (*Cache)(nil)
)

func (c *Cache) collection(project string) (*chromemgo.Collection, error) {
	col, err := c.db.GetOrCreateCollection(cache.CollectionName(project), nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	return col, nil
}

func toDocument(entry cache.Entry) chromemgo.Document {
	return chromemgo.Document{
		ID:        entry.ID,
		Content:   entry.Text,
		Embedding: entry.Embedding,
	}
}

// Put stores one entry, rejecting an ID already present in the project.
func (c *Cache) Put(ctx context.Context, project string, entry cache.Entry) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	if err := cache.ValidateEntry(entry); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col, err := c.collection(project)
	if err != nil {
		return err
	}
	if _, err := col.GetByID(ctx, entry.ID); err == nil {
		c.logger.Warn("duplicate chunk id", "project", project, "id", entry.ID)
		return fmt.Errorf("%w: %s", cache.ErrDuplicateID, entry.ID)
	}
	if err := col.AddDocument(ctx, toDocument(entry)); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	c.logger.Debug("stored chunk", "project", project, "id", entry.ID)
	return nil
}

// Replace drops the project's collection and stores entries in a new one.
func (c *Cache) Replace(ctx context.Context, project string, entries []cache.Entry) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	docs := make([]chromemgo.Document, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if err := cache.ValidateEntry(entry); err != nil {
			return fmt.Errorf("invalid entry %q: %w", entry.ID, err)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("%w: %s", cache.ErrDuplicateID, entry.ID)
		}
		seen[entry.ID] = struct{}{}
		docs = append(docs, toDocument(entry))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(cache.CollectionName(project)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	col, err := c.collection(project)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
	}
	c.logger.Info("replaced cache", "project", project, "count", len(docs))
	return nil
}

// Clear drops the project's collection.
func (c *Cache) Clear(ctx context.Context, project string) error {
	if project == "" {
		return cache.ErrProjectRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(cache.CollectionName(project)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c.logger.Info("cleared cache", "project", project)
	return nil
}

// Count returns the number of entries stored for the project.
func (c *Cache) Count(project string) int {
	col := c.db.GetCollection(cache.CollectionName(project), noEmbedding)
	if col == nil {
		return 0
	}
	return col.Count()
}

// Query returns up to limit entries ordered by descending cosine similarity.
// An empty project yields no matches.
func (c *Cache) Query(ctx context.Context, project string, vector []float32, limit int) ([]cache.Match, error) {
	if project == "" {
		return nil, cache.ErrProjectRequired
	}
	if limit <= 0 {
		return nil, nil
	}

	col := c.db.GetCollection(cache.CollectionName(project), noEmbedding)
	if col == nil || col.Count() == 0 {
		return nil, nil
	}
	limit = min(limit, col.Count())

	results, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]cache.Match, len(results))
	for i, r := range results {
		matches[i] = cache.Match{
			Entry: cache.Entry{
				ID:        r.ID,
				Text:      r.Content,
				Embedding: r.Embedding,
			},
			Similarity: r.Similarity,
		}
	}
	return matches, nil
}
