package embedding

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/poiesic/chunkpipe/ai/mock"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/progress"
	"github.com/poiesic/chunkpipe/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChunks = []string{
	"search_document: one",
	"search_document: two",
	"search_document: three",
}

func newTestDriver(embedder ai.Embedder, store *status.Store, opts ...Option) *Driver {
	return NewDriver(embedder, store, append([]Option{WithDelay(0)}, opts...)...)
}

func states(store *status.Store) []core.ChunkState {
	snapshot := store.Snapshot()
	out := make([]core.ChunkState, len(snapshot))
	for i, s := range snapshot {
		out[i] = s.State
	}
	return out
}

func TestDriver_RunSuccess(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	store := status.NewStore(len(testChunks))

	report, err := newTestDriver(embedder, store).Run(context.Background(), testChunks)
	require.NoError(t, err)

	assert.Equal(t, Report{Attempted: 3, Succeeded: 3}, report)
	assert.Equal(t, testChunks, embedder.Texts(), "chunks are sent in index order with their prefix")
	for i, chunk := range testChunks {
		entry, err := store.Get(i)
		require.NoError(t, err)
		assert.Equal(t, core.StateSuccess, entry.State)
		assert.Equal(t, mock.Vector(chunk), entry.Embedding)
		assert.Empty(t, entry.Error)
	}
}

func TestDriver_FailureIsolation(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == testChunks[1] {
			return nil, &ai.ServiceError{Message: "CUDA out of memory"}
		}
		return []float32{1}, nil
	}
	store := status.NewStore(len(testChunks))

	report, err := newTestDriver(embedder, store).Run(context.Background(), testChunks)
	require.NoError(t, err, "per-chunk failures are not returned")

	assert.Equal(t, Report{Attempted: 3, Succeeded: 2, Failed: 1}, report)
	assert.Equal(t, []core.ChunkState{core.StateSuccess, core.StateFailed, core.StateSuccess}, states(store))

	failed, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "CUDA out of memory", failed.Error)
}

func TestDriver_RerunRetriesFailuresOnly(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == testChunks[2] && fail.Load() {
			return nil, errors.New("connection refused")
		}
		return []float32{1}, nil
	}
	store := status.NewStore(len(testChunks))
	driver := newTestDriver(embedder, store)

	_, err := driver.Run(context.Background(), testChunks)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.CallCount())

	fail.Store(false)
	report, err := driver.Run(context.Background(), testChunks)
	require.NoError(t, err)

	assert.Equal(t, Report{Attempted: 1, Succeeded: 1}, report)
	assert.Equal(t, 4, embedder.CallCount(), "successful chunks are skipped")
	entry, err := store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, core.StateSuccess, entry.State)
	assert.Empty(t, entry.Error, "error cleared on success")
}

func TestDriver_StopAfterFirstChunk(t *testing.T) {
	store := status.NewStore(len(testChunks))
	embedder := mock.NewMockEmbedder()
	var driver *Driver
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == testChunks[0] {
			driver.Stop()
		}
		return []float32{1}, nil
	}
	driver = newTestDriver(embedder, store)

	report, err := driver.Run(context.Background(), testChunks)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Succeeded, "in-flight request completes")
	assert.Equal(t, []core.ChunkState{core.StateSuccess, core.StatePending, core.StatePending}, states(store))

	report, err = driver.Run(context.Background(), testChunks)
	require.NoError(t, err)
	assert.False(t, report.Cancelled, "stop does not carry over to the next run")
	assert.Equal(t, 2, report.Succeeded)
}

func TestDriver_StopWhileIdleIsIgnored(t *testing.T) {
	store := status.NewStore(len(testChunks))
	driver := newTestDriver(mock.NewMockEmbedder(), store)

	driver.Stop()
	report, err := driver.Run(context.Background(), testChunks)
	require.NoError(t, err)

	assert.Equal(t, Report{Attempted: 3, Succeeded: 3}, report)
	assert.Equal(t, []core.ChunkState{core.StateSuccess, core.StateSuccess, core.StateSuccess}, states(store))
}

func TestDriver_RunUntil(t *testing.T) {
	t.Run("closed before the run", func(t *testing.T) {
		store := status.NewStore(len(testChunks))
		embedder := mock.NewMockEmbedder()
		stop := make(chan struct{})
		close(stop)

		report, err := newTestDriver(embedder, store).RunUntil(context.Background(), testChunks, stop)
		require.NoError(t, err)
		assert.Equal(t, Report{Cancelled: true}, report)
		assert.Equal(t, 0, embedder.CallCount())
		assert.Equal(t, []core.ChunkState{core.StatePending, core.StatePending, core.StatePending}, states(store))
	})

	t.Run("closed during the run", func(t *testing.T) {
		store := status.NewStore(len(testChunks))
		stop := make(chan struct{})
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			if text == testChunks[1] {
				close(stop)
			}
			return []float32{1}, nil
		}

		report, err := newTestDriver(embedder, store).RunUntil(context.Background(), testChunks, stop)
		require.NoError(t, err)
		assert.Equal(t, Report{Attempted: 2, Succeeded: 2, Cancelled: true}, report)
		assert.Equal(t, []core.ChunkState{core.StateSuccess, core.StateSuccess, core.StatePending}, states(store))
	})
}

func TestDriver_ContextCancelAbortsInFlight(t *testing.T) {
	store := status.NewStore(len(testChunks))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == testChunks[1] {
			cancel()
			return nil, ctx.Err()
		}
		return []float32{1}, nil
	}

	report, err := newTestDriver(embedder, store).Run(ctx, testChunks)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, Report{Attempted: 1, Succeeded: 1, Cancelled: true}, report)
	assert.Equal(t, []core.ChunkState{core.StateSuccess, core.StatePending, core.StatePending}, states(store))
}

func TestDriver_CountMismatch(t *testing.T) {
	driver := newTestDriver(mock.NewMockEmbedder(), status.NewStore(2))

	_, err := driver.Run(context.Background(), testChunks)
	assert.ErrorIs(t, err, core.ErrStatusCountMismatch)
}

func TestDriver_RunInProgress(t *testing.T) {
	store := status.NewStore(len(testChunks))
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []float32{1}, nil
	}
	driver := newTestDriver(embedder, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = driver.Run(context.Background(), testChunks)
	}()

	<-started
	assert.True(t, driver.Running())
	_, err := driver.Run(context.Background(), testChunks)
	assert.ErrorIs(t, err, core.ErrRunInProgress)
	_, err = driver.EmbedOne(context.Background(), testChunks, 0)
	assert.ErrorIs(t, err, core.ErrRunInProgress)

	close(release)
	<-done
	assert.False(t, driver.Running())
}

func TestDriver_EmbedOne(t *testing.T) {
	store := status.NewStore(len(testChunks))
	require.NoError(t, store.Set(1, status.WithState(core.StatePushed), status.WithEmbedding([]float32{9})))

	embedder := mock.NewMockEmbedder()
	driver := newTestDriver(embedder, store)

	entry, err := driver.EmbedOne(context.Background(), testChunks, 1)
	require.NoError(t, err)
	assert.Equal(t, core.StateSuccess, entry.State, "re-embedded regardless of state")
	assert.Equal(t, mock.Vector(testChunks[1]), entry.Embedding)
	assert.Equal(t, []string{testChunks[1]}, embedder.Texts())

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("timeout")
	}
	entry, err = driver.EmbedOne(context.Background(), testChunks, 1)
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, entry.State)
	assert.Equal(t, "timeout", entry.Error)
	assert.Equal(t, mock.Vector(testChunks[1]), entry.Embedding, "previous embedding kept on failure")

	_, err = driver.EmbedOne(context.Background(), testChunks, 3)
	assert.ErrorIs(t, err, status.ErrIndexOutOfRange)
}

func TestDriver_Delay(t *testing.T) {
	store := status.NewStore(len(testChunks))
	driver := NewDriver(mock.NewMockEmbedder(), store, WithDelay(20*time.Millisecond))

	start := time.Now()
	_, err := driver.Run(context.Background(), testChunks)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "delay between consecutive requests")
}

func TestDriver_ContextCancelDuringDelay(t *testing.T) {
	store := status.NewStore(len(testChunks))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		cancel()
		return []float32{1}, nil
	}

	report, err := NewDriver(embedder, store, WithDelay(time.Hour)).Run(ctx, testChunks)
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Succeeded: 1, Cancelled: true}, report)
}

func TestDriver_Progress(t *testing.T) {
	var buf bytes.Buffer
	store := status.NewStore(len(testChunks))
	tracker := progress.NewTracker(&buf, "Embedding", 1)

	_, err := newTestDriver(mock.NewMockEmbedder(), store, WithProgress(tracker)).Run(context.Background(), testChunks)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Embedding: 3/3")
}
