package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/chunkpipe/ai"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/progress"
	"github.com/poiesic/chunkpipe/status"
)

// DefaultDelay is the pause after each embedding request.
const DefaultDelay = 100 * time.Millisecond

// Report summarizes one run.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
	Cancelled bool
}

// Driver embeds chunks sequentially and records the outcome in a status store.
type Driver struct {
	embedder ai.Embedder
	store    *status.Store
	delay    time.Duration
	logger   *slog.Logger
	progress progress.Reporter

	running atomic.Bool

	mu   sync.Mutex
	stop chan struct{} // closed by Stop; nil while idle
}

// Option configures a Driver.
type Option func(*Driver)

// WithDelay sets the pause after each request. Zero disables it.
func WithDelay(delay time.Duration) Option {
	return func(d *Driver) {
		if delay >= 0 {
			d.delay = delay
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger.With("component", "embedding-driver")
		}
	}
}

// WithProgress reports each processed chunk to r.
func WithProgress(r progress.Reporter) Option {
	return func(d *Driver) {
		d.progress = r
	}
}

// NewDriver creates a driver writing to store.
func NewDriver(embedder ai.Embedder, store *status.Store, opts ...Option) *Driver {
	d := &Driver{
		embedder: embedder,
		store:    store,
		delay:    DefaultDelay,
		logger:   slog.Default().With("component", "embedding-driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Running reports whether a run is active.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Stop asks the active run to end before its next dispatch. It does not
// wait. Stop has no effect while no run is active.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return
	}
	select {
	case <-d.stop:
	default:
		close(d.stop)
		d.logger.Info("stop requested")
	}
}

// Run embeds every Pending or Failed chunk in index order.
//
// The returned error reports misuse only: a chunk list that does not match
// the store, or a run already active. Per-chunk failures are recorded in the
// store and counted in the report.
func (d *Driver) Run(ctx context.Context, chunks []string) (Report, error) {
	return d.RunUntil(ctx, chunks, nil)
}

// RunUntil is Run that also ends before its next dispatch once stop is
// closed. A stop closed before the call ends the run before its first chunk.
func (d *Driver) RunUntil(ctx context.Context, chunks []string, stop <-chan struct{}) (Report, error) {
	if err := d.checkChunks(chunks); err != nil {
		return Report{}, err
	}
	if !d.running.CompareAndSwap(false, true) {
		return Report{}, core.ErrRunInProgress
	}
	defer d.running.Store(false)

	own := d.beginRun()
	defer d.endRun()

	todo := d.store.Indices(core.StatePending, core.StateFailed)
	d.logger.Info("embedding run started", "chunks", len(chunks), "todo", len(todo))

	if d.progress != nil {
		d.progress.Start(len(todo))
		defer d.progress.Finish()
	}

	var report Report
	for n, index := range todo {
		if stopped(own, stop) || ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		entry, err := d.embedChunk(ctx, chunks, index)
		if err != nil {
			return report, err
		}
		if entry.State == core.StatePending {
			// Context cancelled mid-request.
			report.Cancelled = true
			break
		}

		report.Attempted++
		if entry.State == core.StateSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
		if d.progress != nil {
			d.progress.Increment(1)
		}

		if n < len(todo)-1 && !d.pause(ctx) {
			report.Cancelled = true
			break
		}
	}

	d.logger.Info("embedding run finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"cancelled", report.Cancelled)
	return report, nil
}

// beginRun arms a stop channel for the run that just claimed the driver.
func (d *Driver) beginRun() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop = make(chan struct{})
	return d.stop
}

func (d *Driver) endRun() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop = nil
}

func stopped(chans ...<-chan struct{}) bool {
	for _, ch := range chans {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
			return true
		default:
		}
	}
	return false
}

// EmbedOne re-embeds the chunk at index regardless of its state and returns
// the resulting status. It cannot overlap a run.
func (d *Driver) EmbedOne(ctx context.Context, chunks []string, index int) (core.ChunkStatus, error) {
	if err := d.checkChunks(chunks); err != nil {
		return core.ChunkStatus{}, err
	}
	if index < 0 || index >= len(chunks) {
		return core.ChunkStatus{}, fmt.Errorf("%w: %d", status.ErrIndexOutOfRange, index)
	}
	if !d.running.CompareAndSwap(false, true) {
		return core.ChunkStatus{}, core.ErrRunInProgress
	}
	defer d.running.Store(false)

	return d.embedChunk(ctx, chunks, index)
}

func (d *Driver) checkChunks(chunks []string) error {
	if len(chunks) != d.store.Len() {
		return fmt.Errorf("%w (%d statuses, %d chunks)", core.ErrStatusCountMismatch, d.store.Len(), len(chunks))
	}
	return nil
}

// embedChunk performs one request and records its outcome.
func (d *Driver) embedChunk(ctx context.Context, chunks []string, index int) (core.ChunkStatus, error) {
	if err := d.store.Set(index, status.WithState(core.StateEmbedding), status.ClearError()); err != nil {
		return core.ChunkStatus{}, err
	}

	vector, embedErr := d.embedder.EmbedText(ctx, chunks[index])

	var err error
	switch {
	case embedErr == nil:
		err = d.store.Set(index,
			status.WithState(core.StateSuccess),
			status.WithEmbedding(vector),
			status.ClearError())
	case ctx.Err() != nil:
		d.logger.Debug("request aborted", "index", index)
		err = d.store.Set(index, status.WithState(core.StatePending))
	default:
		d.logger.Warn("chunk failed", "index", index, "err", embedErr)
		err = d.store.Set(index,
			status.WithState(core.StateFailed),
			status.WithError(embedErr.Error()))
	}
	if err != nil {
		return core.ChunkStatus{}, err
	}
	return d.store.Get(index)
}

// pause waits the configured delay. Returns false if ctx ends first.
func (d *Driver) pause(ctx context.Context) bool {
	if d.delay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
