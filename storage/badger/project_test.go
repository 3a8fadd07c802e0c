package badger

import (
	"context"
	"testing"

	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProject(id string) *core.Project {
	chunks := []string{"search_document: a", "search_document: b"}
	return &core.Project{
		ID:     id,
		Mode:   core.ModeAuto,
		Params: core.DefaultChunkingParams(),
		Chunks: chunks,
		Statuses: []core.ChunkStatus{
			{State: core.StatePushed, Embedding: []float32{0.5, 0.5}},
			{State: core.StateFailed, Error: "timeout"},
		},
		Fingerprint: core.Fingerprint(chunks),
	}
}

func TestProjectRepository_SaveLoad(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	project := testProject("42")
	require.NoError(t, repo.SaveProject(ctx, project))
	assert.False(t, project.UpdatedAt.IsZero(), "UpdatedAt is set on save")

	loaded, err := repo.LoadProject(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, project, loaded)

	project.Statuses[1] = core.ChunkStatus{State: core.StatePending}
	require.NoError(t, repo.SaveProject(ctx, project))
	loaded, err = repo.LoadProject(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, core.StatePending, loaded.Statuses[1].State, "save replaces the snapshot")
}

func TestProjectRepository_NotFound(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	_, err = repo.LoadProject(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProjectRepository_SaveInvalid(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	project := testProject("42")
	project.Statuses = project.Statuses[:1]
	err = repo.SaveProject(context.Background(), project)
	assert.ErrorIs(t, err, core.ErrStatusCountMismatch)

	err = repo.SaveProject(context.Background(), testProject(" "))
	assert.ErrorIs(t, err, core.ErrEmptyProjectID)
}

func TestProjectRepository_ListAndDelete(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, repo.SaveProject(ctx, testProject(id)))
	}

	ids, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, repo.DeleteProject(ctx, "b"))
	require.NoError(t, repo.DeleteProject(ctx, "missing"))

	ids, err = repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestProjectRepository_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NoError(t, NewProjectRepository(backend).SaveProject(ctx, testProject("42")))
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	loaded, err := NewProjectRepository(backend).LoadProject(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", loaded.ID)
	assert.Len(t, loaded.Chunks, 2)
}
