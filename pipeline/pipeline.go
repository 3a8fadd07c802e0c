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


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/embedding"
	"github.com/poiesic/chunkpipe/publish"
	"github.com/poiesic/chunkpipe/status"
)

// ErrRunInProgress is returned when a run starts while another is active.
var ErrRunInProgress = core.ErrRunInProgress

// ErrUnknownMode is returned by ParseMode for an unrecognized name.
var ErrUnknownMode = errors.New("unknown run mode")

// Mode selects which stages a run performs.
type Mode string

const (
	ModeEmbed         Mode = "embed"
	ModePush          Mode = "push"
	ModeEmbedThenPush Mode = "embed-then-push"
)

// ParseMode converts a mode name.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(name); m {
	case ModeEmbed, ModePush, ModeEmbedThenPush:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Result is the outcome of one run.
type Result struct {
	RunID string
	Mode  Mode
	Embed embedding.Report
	Push  publish.Report
}

// Pipeline runs the embedding driver and the publisher over one project.
// At most one run is active at a time.
type Pipeline struct {
	driver    *embedding.Driver
	publisher *publish.Publisher
	store     *status.Store
	pool      *ants.Pool
	logger    *slog.Logger
	onFinish  func(Result, error)

	mu      sync.Mutex
	active  bool
	stop    chan struct{} // closed by Stop; one per run
	done    chan struct{}
	last    Result
	lastErr error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger.With("component", "pipeline")
		}
	}
}

// WithOnFinish registers fn to be called after every run, before Wait returns.
func WithOnFinish(fn func(Result, error)) Option {
	return func(p *Pipeline) {
		p.onFinish = fn
	}
}

// NewPipeline creates a pipeline. driver and publisher must share store.
func NewPipeline(driver *embedding.Driver, publisher *publish.Publisher, store *status.Store, opts ...Option) (*Pipeline, error) {
	// One worker. acquire already rejects overlapping runs; Submit may still
	// wait briefly for the previous task to hand its worker back.
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create run pool: %w", err)
	}

	p := &Pipeline{
		driver:    driver,
		publisher: publisher,
		store:     store,
		pool:      pool,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Release stops the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Running reports whether a run is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// EmbedThenPush embeds every pending chunk and then pushes whatever is
// embedded, even when the embedding stage was stopped or partly failed.
func (p *Pipeline) EmbedThenPush(ctx context.Context, chunks []string) (Result, error) {
	return p.Run(ctx, chunks, ModeEmbedThenPush)
}

// Run performs one run synchronously.
func (p *Pipeline) Run(ctx context.Context, chunks []string, mode Mode) (Result, error) {
	runID, stop, err := p.acquire()
	if err != nil {
		return Result{}, err
	}
	result, err := p.run(ctx, runID, stop, chunks, mode)
	p.release(result, err)
	return result, err
}

// Start performs one run in the background and returns its ID.
// Use Wait for the result and Stop to end it early.
func (p *Pipeline) Start(ctx context.Context, chunks []string, mode Mode) (string, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return "", err
	}
	runID, stop, err := p.acquire()
	if err != nil {
		return "", err
	}

	err = p.pool.Submit(func() {
		result, err := p.run(ctx, runID, stop, chunks, mode)
		p.release(result, err)
	})
	if err != nil {
		err = fmt.Errorf("failed to submit run: %w", err)
		p.release(Result{RunID: runID, Mode: mode}, err)
		return "", err
	}
	return runID, nil
}

// Wait blocks until the active run, if any, finishes and returns the
// outcome of the most recent run.
func (p *Pipeline) Wait() (Result, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.lastErr
}

// Stop ends the embedding stage of the active run before its next chunk.
// A push stage still runs over the chunks embedded so far. Stop has no
// effect while no run is active.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

func (p *Pipeline) acquire() (string, <-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return "", nil, ErrRunInProgress
	}
	p.active = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	return uuid.NewString(), p.stop, nil
}

func (p *Pipeline) release(result Result, err error) {
	if p.onFinish != nil {
		p.onFinish(result, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = result
	p.lastErr = err
	p.active = false
	close(p.done)
}

func (p *Pipeline) run(ctx context.Context, runID string, stop <-chan struct{}, chunks []string, mode Mode) (Result, error) {
	logger := p.logger.With("run", runID, "mode", string(mode))
	result := Result{RunID: runID, Mode: mode}

	if _, err := ParseMode(string(mode)); err != nil {
		return result, err
	}
	logger.Info("run started", "chunks", len(chunks))

	if mode == ModeEmbed || mode == ModeEmbedThenPush {
		report, err := p.driver.RunUntil(ctx, chunks, stop)
		if err != nil {
			logger.Error("embedding failed", "err", err)
			return result, err
		}
		result.Embed = report
	}

	if mode == ModePush || mode == ModeEmbedThenPush {
		report, err := p.publisher.Push(ctx, chunks, p.store)
		if err != nil {
			logger.Error("push failed", "err", err)
			return result, err
		}
		result.Push = report
	}

	logger.Info("run finished",
		"embedded", result.Embed.Succeeded,
		"embed_failed", result.Embed.Failed,
		"pushed", result.Push.Pushed,
		"push_failed", result.Push.Failed)
	return result, nil
}
