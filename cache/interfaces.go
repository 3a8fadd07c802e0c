package cache

import "context"

// Entry is one embedded chunk as stored in a cache.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// Match is an entry found by similarity search.
type Match struct {
	Entry
	Similarity float32
}

// Cache persists embedded chunks per project.
// Implementations must be thread-safe.
type Cache interface {
	// Put stores a single entry. Returns an error matching ErrDuplicateID
	// if the project already holds an entry with the same ID.
	Put(ctx context.Context, project string, entry Entry) error

	// Replace drops every entry of the project and stores entries instead.
	Replace(ctx context.Context, project string, entries []Entry) error

	// Clear drops every entry of the project. Clearing an empty or unknown
	// project is not an error.
	Clear(ctx context.Context, project string) error
}

// Querier finds cached entries similar to a vector.
type Querier interface {
	// Query returns up to limit entries of the project ordered by
	// descending similarity to vector.
	Query(ctx context.Context, project string, vector []float32, limit int) ([]Match, error)
}

// CollectionName returns the storage collection used for a project.
func CollectionName(project string) string {
	return "gpt_embed_" + project
}
