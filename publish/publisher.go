package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/chunkpipe/cache"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/progress"
	"github.com/poiesic/chunkpipe/status"
)

const (
	// DefaultDelay is the pause after each cache request.
	DefaultDelay = 100 * time.Millisecond

	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// Report summarizes one push.
type Report struct {
	Qualifying int // Chunks in Success state when the push began
	Pushed     int
	Failed     int
	Cancelled  bool
}

// NothingToPush reports whether the push found no embedded chunks to send.
func (r Report) NothingToPush() bool {
	return r.Qualifying == 0
}

// Publisher sends a project's embedded chunks to a cache.
type Publisher struct {
	cache       cache.Cache
	project     string
	delay       time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	progress    progress.Reporter

	running atomic.Bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithDelay sets the pause after each request. Zero disables it.
func WithDelay(delay time.Duration) Option {
	return func(p *Publisher) {
		if delay >= 0 {
			p.delay = delay
		}
	}
}

// WithRetry sets how Clear retries a failed request.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Publisher) {
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger.With("component", "publisher")
		}
	}
}

// WithProgress reports each processed chunk to r.
func WithProgress(r progress.Reporter) Option {
	return func(p *Publisher) {
		p.progress = r
	}
}

// NewPublisher creates a publisher for one project's cache.
func NewPublisher(c cache.Cache, project string, opts ...Option) (*Publisher, error) {
	if project == "" {
		return nil, cache.ErrProjectRequired
	}
	p := &Publisher{
		cache:       c,
		project:     project,
		delay:       DefaultDelay,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	return p, nil
}

func (p *Publisher) begin(chunks []string, store *status.Store) error {
	if len(chunks) != store.Len() {
		return fmt.Errorf("%w (%d statuses, %d chunks)", core.ErrStatusCountMismatch, store.Len(), len(chunks))
	}
	if !p.running.CompareAndSwap(false, true) {
		return core.ErrRunInProgress
	}
	return nil
}

// Push sends every chunk in Success state, in index order.
//
// The returned error reports misuse only. Per-chunk failures are recorded
// in the store and counted in the report. Cancelling ctx stops the push
// between chunks; unsent chunks stay Success.
func (p *Publisher) Push(ctx context.Context, chunks []string, store *status.Store) (Report, error) {
	if err := p.begin(chunks, store); err != nil {
		return Report{}, err
	}
	defer p.running.Store(false)

	qualifying := store.Indices(core.StateSuccess)
	report := Report{Qualifying: len(qualifying)}
	if report.NothingToPush() {
		p.logger.Info("nothing to push", "project", p.project)
		return report, nil
	}
	p.logger.Info("push started", "project", p.project, "qualifying", len(qualifying))

	if p.progress != nil {
		p.progress.Start(len(qualifying))
		defer p.progress.Finish()
	}

	for n, index := range qualifying {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		state, err := p.pushChunk(ctx, chunks, store, index)
		if err != nil {
			return report, err
		}
		switch state {
		case core.StatePushed:
			report.Pushed++
		case core.StateFailed:
			report.Failed++
		default:
			report.Cancelled = true
		}
		if report.Cancelled {
			break
		}
		if p.progress != nil {
			p.progress.Increment(1)
		}

		if n < len(qualifying)-1 && !p.pause(ctx) {
			report.Cancelled = true
			break
		}
	}

	p.logger.Info("push finished",
		"project", p.project,
		"qualifying", report.Qualifying,
		"pushed", report.Pushed,
		"failed", report.Failed,
		"cancelled", report.Cancelled)
	return report, nil
}

// pushChunk sends one chunk and records the outcome. An aborted request
// returns the chunk to Success.
func (p *Publisher) pushChunk(ctx context.Context, chunks []string, store *status.Store, index int) (core.ChunkState, error) {
	current, err := store.Get(index)
	if err != nil {
		return 0, err
	}
	if err := store.Set(index, status.WithState(core.StatePushing)); err != nil {
		return 0, err
	}

	entry := cache.Entry{
		ID:        core.ChunkID(index),
		Text:      chunks[index],
		Embedding: current.Embedding,
	}
	putErr := p.cache.Put(ctx, p.project, entry)

	var next core.ChunkState
	switch {
	case putErr == nil:
		next = core.StatePushed
		err = store.Set(index, status.WithState(next), status.ClearError())
	case ctx.Err() != nil:
		next = core.StateSuccess
		err = store.Set(index, status.WithState(next))
	default:
		p.logger.Warn("chunk push failed", "project", p.project, "id", entry.ID, "err", putErr)
		next = core.StateFailed
		err = store.Set(index, status.WithState(next), status.WithError(putErr.Error()))
	}
	return next, err
}

// Replace rewrites the project cache with every chunk in Success or Pushed
// state in a single request. On success those chunks become Pushed and the
// count is returned; on failure the store is left unchanged.
func (p *Publisher) Replace(ctx context.Context, chunks []string, store *status.Store) (int, error) {
	if err := p.begin(chunks, store); err != nil {
		return 0, err
	}
	defer p.running.Store(false)

	indices := store.Indices(core.StateSuccess, core.StatePushed)
	entries := make([]cache.Entry, 0, len(indices))
	for _, index := range indices {
		current, err := store.Get(index)
		if err != nil {
			return 0, err
		}
		entries = append(entries, cache.Entry{
			ID:        core.ChunkID(index),
			Text:      chunks[index],
			Embedding: current.Embedding,
		})
	}

	if err := p.cache.Replace(ctx, p.project, entries); err != nil {
		return 0, fmt.Errorf("failed to replace cache: %w", err)
	}
	for _, index := range indices {
		if err := store.Set(index, status.WithState(core.StatePushed), status.ClearError()); err != nil {
			return 0, err
		}
	}

	p.logger.Info("cache replaced", "project", p.project, "entries", len(entries))
	return len(entries), nil
}

// Clear drops the project cache, retrying failed requests, and returns
// Pushed chunks in store to Success. A nil store is allowed.
func (p *Publisher) Clear(ctx context.Context, store *status.Store) error {
	if !p.running.CompareAndSwap(false, true) {
		return core.ErrRunInProgress
	}
	defer p.running.Store(false)

	err := RetryWithBackoff(ctx, func() error {
		return p.cache.Clear(ctx, p.project)
	}, p.maxAttempts, p.retryDelay)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	reverted := 0
	if store != nil {
		for _, index := range store.Indices(core.StatePushed) {
			if err := store.Set(index, status.WithState(core.StateSuccess)); err != nil {
				return err
			}
			reverted++
		}
	}
	p.logger.Info("cache cleared", "project", p.project, "reverted", reverted)
	return nil
}

// pause waits the configured delay. Returns false if ctx ends first.
func (p *Publisher) pause(ctx context.Context) bool {
	if p.delay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
