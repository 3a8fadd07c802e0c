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


// Package storage provides the persistence layer for chunkpipe projects.
//
// A project snapshot holds the chunk list, the chunking parameters that
// produced it and one status entry per chunk. Snapshots are written after
// every run so an interrupted pipeline can resume where it stopped.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	repo, err := badger.NewProjectRepository(backend)  // returns storage.ProjectRepository
//
// Internal constructors may return concrete types.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo := badger.NewProjectRepository(backend)
//	project, err := repo.LoadProject(ctx, "42")
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//
// # Serialization
//
// Records are encoded with mus-go. ProjectMUS is the serializer for
// core.Project; MarshalProject and UnmarshalProject wrap it.
//
// # Thread Safety
//
// All repository implementations must be thread-safe.
package storage
