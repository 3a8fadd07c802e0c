package storage

import (
	"context"

	"github.com/poiesic/chunkpipe/core"
)

// ProjectRepository persists project snapshots.
// Implementations must be thread-safe and support concurrent access.
type ProjectRepository interface {
	// SaveProject validates and stores a snapshot, replacing any previous one
	// with the same ID. Sets UpdatedAt.
	SaveProject(ctx context.Context, project *core.Project) error

	// LoadProject returns the snapshot for id.
	// Returns ErrNotFound if none exists.
	LoadProject(ctx context.Context, id string) (*core.Project, error)

	// DeleteProject removes the snapshot for id. Deleting a missing project
	// is not an error.
	DeleteProject(ctx context.Context, id string) error

	// ListProjects returns every stored project ID in ascending order.
	ListProjects(ctx context.Context) ([]string, error)
}
