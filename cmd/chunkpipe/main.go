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


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/chunkpipe"
	"github.com/poiesic/chunkpipe/chunker"
	"github.com/poiesic/chunkpipe/config"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/pipeline"
	"github.com/poiesic/chunkpipe/search"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func projectFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "project",
		Aliases:  []string{"p"},
		Usage:    "Project identifier",
		EnvVars:  []string{"CHUNKPIPE_PROJECT"},
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chunkpipe",
		Usage: "Chunk documents, embed the chunks and publish them to a retrieval cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"CHUNKPIPE_CONFIG"},
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the project database directory",
				EnvVars: []string{"CHUNKPIPE_DB"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"CHUNKPIPE_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "cache-host",
				Usage:   "Cache service host URL",
				EnvVars: []string{"CHUNKPIPE_CACHE_HOST"},
			},
			&cli.DurationFlag{
				Name:    "delay",
				Usage:   "Pause after each embedded or pushed chunk",
				EnvVars: []string{"CHUNKPIPE_DELAY"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"CHUNKPIPE_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Set logging format (text, json)",
				EnvVars: []string{"CHUNKPIPE_LOG_FORMAT"},
				Value:   "text",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "chunk",
				Usage:     "Split a document into the project's chunk list",
				ArgsUsage: "[file|-]",
				Action:    chunkCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.IntSliceFlag{
						Name:  "lines",
						Usage: "Chunk by these zero-based line numbers instead of by size",
					},
					&cli.IntFlag{
						Name:  "max-chars",
						Usage: "Force a split once a chunk would exceed this many characters",
					},
					&cli.IntFlag{
						Name:  "min-chars",
						Usage: "Merge chunks shorter than this forward",
					},
					&cli.IntFlag{
						Name:  "min-words",
						Usage: "Merge chunks with fewer words than this forward",
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed every pending or failed chunk",
				Action: modeCommand(pipeline.ModeEmbed),
				Flags:  []cli.Flag{projectFlag()},
			},
			{
				Name:   "reembed",
				Usage:  "Embed a single chunk again",
				Action: reembedCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.IntFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "Zero-based chunk index",
						Required: true,
					},
				},
			},
			{
				Name:   "push",
				Usage:  "Push every embedded chunk to the cache",
				Action: modeCommand(pipeline.ModePush),
				Flags:  []cli.Flag{projectFlag()},
			},
			{
				Name:   "run",
				Usage:  "Embed, then push whatever was embedded",
				Action: runCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Run mode (embed, push, embed-then-push)",
						Value: string(pipeline.ModeEmbedThenPush),
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show chunk states",
				Action: statusCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "List every chunk",
					},
				},
			},
			{
				Name:   "clear-cache",
				Usage:  "Drop the project's cache and mark pushed chunks unpushed",
				Action: clearCacheCommand,
				Flags:  []cli.Flag{projectFlag()},
			},
			{
				Name:   "replace-cache",
				Usage:  "Replace the project's cache with every embedded chunk in one request",
				Action: replaceCacheCommand,
				Flags:  []cli.Flag{projectFlag()},
			},
			{
				Name:   "retrieve",
				Usage:  "Check which cached chunks answer a question",
				Action: retrieveCommand,
				Flags: []cli.Flag{
					projectFlag(),
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Question to embed",
						Value:   search.DefaultQuery,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Keep matches with similarity above this",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches",
					},
				},
			},
			{
				Name:   "projects",
				Usage:  "List stored projects",
				Action: projectsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "delete",
						Usage: "Delete this project's stored chunks instead of listing",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Database = c.String("db")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("cache-host") {
		cfg.Cache.Host = c.String("cache-host")
	}
	if c.IsSet("delay") {
		cfg.Delay = c.Duration("delay")
	}
	return cfg, nil
}

func openWorkspace(c *cli.Context) (*chunkpipe.Workspace, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	ws, err := chunkpipe.OpenWorkspace(cfg,
		chunkpipe.WithWorkspaceLogger(slog.Default()),
		chunkpipe.WithProgressOutput(c.App.ErrWriter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return ws, nil
}

// withProject opens the workspace and the --project project for fn.
func withProject(c *cli.Context, fn func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error) error {
	ctx := c.Context
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.OpenProject(ctx, c.String("project"))
	if err != nil {
		return err
	}
	return fn(ctx, ws, p)
}

func readInput(c *cli.Context) (string, error) {
	var r io.Reader = c.App.Reader
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func chunkCommand(c *cli.Context) error {
	text, err := readInput(c)
	if err != nil {
		return err
	}

	return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
		if c.IsSet("lines") {
			if err := p.ChunkManual(text, c.IntSlice("lines")); err != nil {
				return err
			}
		} else {
			params := ws.Config().ChunkingParams()
			if c.IsSet("max-chars") {
				params.MaxChars = c.Int("max-chars")
			}
			if c.IsSet("min-chars") {
				params.MinChars = c.Int("min-chars")
			}
			if c.IsSet("min-words") {
				params.MinWords = c.Int("min-words")
			}
			if err := p.ChunkAuto(text, params); err != nil {
				return err
			}
		}

		if err := ws.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d chunks (%s)\n", p.ID, len(p.Chunks), p.Mode)
		return nil
	})
}

func runCommand(c *cli.Context) error {
	mode, err := pipeline.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	return modeCommand(mode)(c)
}

// modeCommand runs the pipeline in the background so that an interrupt can
// stop it between chunks and a second one can abort the request in flight.
// The project is saved when the run finishes.
func modeCommand(mode pipeline.Mode) cli.ActionFunc {
	return func(c *cli.Context) error {
		return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
			pl, err := ws.NewPipeline(p)
			if err != nil {
				return err
			}
			defer pl.Release()

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			runID, err := pl.Start(runCtx, p.Chunks, mode)
			if err != nil {
				return err
			}

			finished := make(chan struct{})
			go watchInterrupts(interrupts, finished, runID, pl.Stop, cancel)

			result, err := pl.Wait()
			close(finished)
			if err != nil {
				return err
			}
			printResult(c.App.Writer, result)
			return nil
		})
	}
}

// watchInterrupts stops the run on the first interrupt and cancels its
// context on the second, which aborts a request stuck in flight.
func watchInterrupts(interrupts <-chan os.Signal, finished <-chan struct{}, runID string, stop, cancel func()) {
	for count := 0; ; count++ {
		select {
		case <-finished:
			return
		case <-interrupts:
		}
		if count == 0 {
			slog.Warn("interrupt received, stopping after the current chunk (interrupt again to abort it)", "run", runID)
			stop()
			continue
		}
		slog.Warn("second interrupt received, aborting the current request", "run", runID)
		cancel()
		return
	}
}

func printResult(w io.Writer, result pipeline.Result) {
	if result.Mode != pipeline.ModePush {
		fmt.Fprintf(w, "embedded %d of %d (%d failed)", result.Embed.Succeeded, result.Embed.Attempted, result.Embed.Failed)
		if result.Embed.Cancelled {
			fmt.Fprint(w, ", stopped early")
		}
		fmt.Fprintln(w)
	}
	if result.Mode != pipeline.ModeEmbed {
		if result.Push.NothingToPush() {
			fmt.Fprintln(w, "nothing to push")
			return
		}
		fmt.Fprintf(w, "pushed %d of %d (%d failed)", result.Push.Pushed, result.Push.Qualifying, result.Push.Failed)
		if result.Push.Cancelled {
			fmt.Fprint(w, ", stopped early")
		}
		fmt.Fprintln(w)
	}
}

func reembedCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
		index := c.Int("index")
		entry, err := ws.NewDriver(p).EmbedOne(ctx, p.Chunks, index)
		if err != nil {
			return err
		}
		if err := ws.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		if entry.State == core.StateFailed {
			return fmt.Errorf("chunk %d failed: %s", index, entry.Error)
		}
		fmt.Fprintf(c.App.Writer, "chunk %d: %s\n", index, entry.State)
		return nil
	})
}

func statusCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
		w := c.App.Writer
		fmt.Fprintf(w, "project %s: %d chunks (%s)\n", p.ID, len(p.Chunks), p.Mode)

		counts := p.Store.Counts()
		for _, state := range core.AllStates() {
			fmt.Fprintf(w, "  %-10s %d\n", state, counts[state])
		}

		verbose := c.Bool("verbose")
		for i, entry := range p.Store.Snapshot() {
			switch {
			case verbose:
				fmt.Fprintf(w, "%4d %-10s %s\n", i, entry.State, preview(p.Chunks[i]))
			case entry.State == core.StateFailed:
				fmt.Fprintf(w, "%4d failed: %s\n", i, entry.Error)
			}
		}
		return nil
	})
}

func preview(chunk string) string {
	text := strings.Join(strings.Fields(chunker.Strip(chunk)), " ")
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return text
}

func clearCacheCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
		publisher, err := ws.NewPublisher(p)
		if err != nil {
			return err
		}
		if err := publisher.Clear(ctx, p.Store); err != nil {
			return err
		}
		if err := ws.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "cleared cache for %s\n", p.ID)
		return nil
	})
}

func replaceCacheCommand(c *cli.Context) error {
	return withProject(c, func(ctx context.Context, ws *chunkpipe.Workspace, p *chunkpipe.Project) error {
		publisher, err := ws.NewPublisher(p)
		if err != nil {
			return err
		}
		n, err := publisher.Replace(ctx, p.Chunks, p.Store)
		if err != nil {
			return err
		}
		if err := ws.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "replaced cache for %s with %d chunks\n", p.ID, n)
		return nil
	})
}

func retrieveCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	var opts []search.Option
	if c.IsSet("threshold") {
		opts = append(opts, search.WithThreshold(float32(c.Float64("threshold"))))
	}
	if c.IsSet("limit") {
		opts = append(opts, search.WithLimit(c.Int("limit")))
	}
	retriever, err := ws.NewRetriever(opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := retriever.Retrieve(c.Context, c.String("project"), c.String("query"))
	if err != nil {
		return err
	}
	slog.Debug("retrieval finished", "matches", len(result.Matches), "elapsed", time.Since(start))

	if len(result.Matches) == 0 {
		fmt.Fprintln(c.App.Writer, "no relevant chunks")
		return nil
	}
	for _, m := range result.Matches {
		fmt.Fprintf(c.App.Writer, "%s %.3f\n", m.ID, m.Similarity)
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, result.Context)
	return nil
}

func projectsCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if id := c.String("delete"); id != "" {
		if err := ws.DeleteProject(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
		return nil
	}

	ids, err := ws.Projects().ListProjects(c.Context)
	if err != nil {
		return err
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(c.App.Writer, id)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(c.String("log-format")) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.String("log-format"))
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
