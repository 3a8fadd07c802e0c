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


// Package status holds the per-chunk lifecycle table of a project.
//
// A Store is sized to the current chunk list and addressed by chunk index.
// The embedding driver and cache publisher are its only writers; any number
// of observers may read it concurrently through Get, CountByState and
// Snapshot.
package status

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/chunkpipe/core"
)

// ErrIndexOutOfRange is returned when an index falls outside [0, Len()).
var ErrIndexOutOfRange = errors.New("chunk index out of range")

// Update modifies selected fields of a status entry.
type Update func(*core.ChunkStatus)

// WithState sets the entry's state.
func WithState(state core.ChunkState) Update {
	return func(s *core.ChunkStatus) {
		s.State = state
	}
}

// WithEmbedding sets the entry's embedding vector.
// The vector is copied.
func WithEmbedding(vector []float32) Update {
	v := slices.Clone(vector)
	return func(s *core.ChunkStatus) {
		s.Embedding = v
	}
}

// WithError sets the entry's error message.
func WithError(msg string) Update {
	return func(s *core.ChunkStatus) {
		s.Error = msg
	}
}

// ClearError removes the entry's error message.
func ClearError() Update {
	return func(s *core.ChunkStatus) {
		s.Error = ""
	}
}

// ClearEmbedding removes the entry's embedding vector.
func ClearEmbedding() Update {
	return func(s *core.ChunkStatus) {
		s.Embedding = nil
	}
}

// Store is a thread-safe table of chunk statuses.
type Store struct {
	mu      sync.RWMutex
	entries []core.ChunkStatus
}

// NewStore creates a store with count pending entries.
func NewStore(count int) *Store {
	s := &Store{}
	s.Reset(count)
	return s
}

// Reset replaces every entry with count fresh pending entries.
func (s *Store) Reset(count int) {
	if count < 0 {
		count = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]core.ChunkStatus, count)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns a copy of the entry at index.
func (s *Store) Get(index int) (core.ChunkStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkIndex(index); err != nil {
		return core.ChunkStatus{}, err
	}
	return cloneStatus(s.entries[index]), nil
}

// Set applies updates to the entry at index. Fields not touched by an
// update keep their values. Updates are applied in order.
func (s *Store) Set(index int, updates ...Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return err
	}
	for _, update := range updates {
		update(&s.entries[index])
	}
	return nil
}

// CountByState returns how many entries are in state.
func (s *Store) CountByState(state core.ChunkState) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.entries {
		if entry.State == state {
			count++
		}
	}
	return count
}

// Counts returns the number of entries per state.
func (s *Store) Counts() map[core.ChunkState]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[core.ChunkState]int, len(core.AllStates()))
	for _, entry := range s.entries {
		counts[entry.State]++
	}
	return counts
}

// Indices returns, in ascending order, the indices of entries in any of
// the given states.
func (s *Store) Indices(states ...core.ChunkState) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := make([]int, 0)
	for i, entry := range s.entries {
		if slices.Contains(states, entry.State) {
			indices = append(indices, i)
		}
	}
	return indices
}

// Snapshot returns a deep copy of all entries.
func (s *Store) Snapshot() []core.ChunkStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ChunkStatus, len(s.entries))
	for i, entry := range s.entries {
		out[i] = cloneStatus(entry)
	}
	return out
}

// Restore replaces all entries with a copy of entries.
func (s *Store) Restore(entries []core.ChunkStatus) {
	restored := make([]core.ChunkStatus, len(entries))
	for i, entry := range entries {
		restored[i] = cloneStatus(entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = restored
}

// Recover settles entries left in a transitional state by an interrupted
// process: in-flight embeddings return to pending and in-flight pushes
// return to success. Returns the number of entries changed.
func (s *Store) Recover() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.entries {
		switch s.entries[i].State {
		case core.StateEmbedding:
			s.entries[i].State = core.StatePending
			changed++
		case core.StatePushing:
			s.entries[i].State = core.StateSuccess
			changed++
		}
	}
	return changed
}

// checkIndex must be called with the lock held.
func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.entries) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.entries))
	}
	return nil
}

func cloneStatus(entry core.ChunkStatus) core.ChunkStatus {
	entry.Embedding = slices.Clone(entry.Embedding)
	return entry
}
