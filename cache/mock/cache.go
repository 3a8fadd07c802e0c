// Package mock provides a recording cache.Cache for tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/chunkpipe/cache"
)

// Call records one Put.
type Call struct {
	Project string
	Entry   cache.Entry
}

// Cache keeps entries in memory and records every call.
// PutFunc, when set, decides the outcome of Put instead.
type Cache struct {
	PutFunc     func(ctx context.Context, project string, entry cache.Entry) error
	ReplaceFunc func(ctx context.Context, project string, entries []cache.Entry) error
	ClearFunc   func(ctx context.Context, project string) error

	mu         sync.Mutex
	entries    map[string]map[string]cache.Entry
	puts       []Call
	clearCalls int
}

// New returns an empty mock cache.
func New() *Cache {
	return &Cache{entries: make(map[string]map[string]cache.Entry)}
}

var _ cache.Cache = (*Cache)(nil)

func (c *Cache) Put(ctx context.Context, project string, entry cache.Entry) error {
	c.mu.Lock()
	c.puts = append(c.puts, Call{Project: project, Entry: entry})
	c.mu.Unlock()

	if c.PutFunc != nil {
		return c.PutFunc(ctx, project, entry)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]map[string]cache.Entry)
	}
	stored := c.entries[project]
	if stored == nil {
		stored = make(map[string]cache.Entry)
		c.entries[project] = stored
	}
	if _, ok := stored[entry.ID]; ok {
		return fmt.Errorf("%w: %s", cache.ErrDuplicateID, entry.ID)
	}
	stored[entry.ID] = entry
	return nil
}

func (c *Cache) Replace(ctx context.Context, project string, entries []cache.Entry) error {
	if c.ReplaceFunc != nil {
		return c.ReplaceFunc(ctx, project, entries)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]map[string]cache.Entry)
	}
	stored := make(map[string]cache.Entry, len(entries))
	for _, e := range entries {
		stored[e.ID] = e
	}
	c.entries[project] = stored
	return nil
}

func (c *Cache) Clear(ctx context.Context, project string) error {
	c.mu.Lock()
	c.clearCalls++
	c.mu.Unlock()

	if c.ClearFunc != nil {
		return c.ClearFunc(ctx, project)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, project)
	return nil
}

// Puts returns every Put call in order.
func (c *Cache) Puts() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.puts)
}

// IDs returns the sorted IDs stored for a project.
func (c *Cache) IDs(project string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries[project]))
	for id := range c.entries[project] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClearCalls returns how many times Clear was called.
func (c *Cache) ClearCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearCalls
}
