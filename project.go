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


package chunkpipe

import (
	"log/slog"

	"github.com/poiesic/chunkpipe/chunker"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/status"
)

// Project is a project's live chunk list and status table.
// Chunks and Store always have the same length.
type Project struct {
	ID     string
	Mode   core.ChunkingMode
	Params core.ChunkingParams
	Chunks []string
	Store  *status.Store

	logger *slog.Logger
}

func newProject(id string, params core.ChunkingParams) *Project {
	return &Project{
		logger: slog.Default(),
		ID:     id,
		Mode:   core.ModeAuto,
		Params: params,
		Chunks: []string{},
		Store:  status.NewStore(0),
	}
}

func projectFromRecord(record *core.Project) *Project {
	store := status.NewStore(0)
	store.Restore(record.Statuses)
	return &Project{
		logger: slog.Default(),
		ID:     record.ID,
		Mode:   record.Mode,
		Params: record.Params,
		Chunks: record.Chunks,
		Store:  store,
	}
}

func (p *Project) record() *core.Project {
	return &core.Project{
		ID:          p.ID,
		Mode:        p.Mode,
		Params:      p.Params,
		Chunks:      p.Chunks,
		Statuses:    p.Store.Snapshot(),
		Fingerprint: core.Fingerprint(p.Chunks),
	}
}

// ChunkAuto replaces the chunk list by size-bounded chunks of text and
// resets every status to Pending.
func (p *Project) ChunkAuto(text string, params core.ChunkingParams) error {
	if err := core.ValidateChunkingParams(params); err != nil {
		return err
	}
	if params.MinChars > params.MaxChars {
		p.logger.Warn("min chars exceeds max chars, chunks may be oversized",
			"project", p.ID, "min_chars", params.MinChars, "max_chars", params.MaxChars)
	}
	p.replace(chunker.ChunkAuto(text, params), core.ModeAuto, params)
	return nil
}

// ChunkManual replaces the chunk list by the selected lines of text, as
// numbered by chunker.SplitLines, and resets every status to Pending.
func (p *Project) ChunkManual(text string, selected []int) error {
	chunks, err := chunker.ChunkManual(chunker.SplitLines(text), selected)
	if err != nil {
		return err
	}
	p.replace(chunks, core.ModeManual, p.Params)
	return nil
}

func (p *Project) replace(chunks []string, mode core.ChunkingMode, params core.ChunkingParams) {
	p.Chunks = chunks
	p.Mode = mode
	p.Params = params
	p.Store.Reset(len(chunks))
}
