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


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chunkpipe/core"
	"github.com/poiesic/chunkpipe/storage"
)

// ProjectRepository implements storage.ProjectRepository for BadgerDB.
type ProjectRepository struct {
	backend *Backend
}

var _ storage.ProjectRepository = (*ProjectRepository)(nil)

// newProjectRepository returns the concrete type.
func newProjectRepository(backend *Backend) *ProjectRepository {
	return &ProjectRepository{backend: backend}
}

// NewProjectRepository creates a repository over an open backend.
//
// Returns storage.ProjectRepository interface to enforce abstraction.
func NewProjectRepository(backend *Backend) storage.ProjectRepository {
	return newProjectRepository(backend)
}

// SaveProject validates and stores a snapshot.
func (r *ProjectRepository) SaveProject(ctx context.Context, project *core.Project) error {
	if err := core.ValidateProject(project); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		project.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		if err := tx.Set(makeProjectKey(project.ID), storage.MarshalProject(project)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadProject retrieves a snapshot by ID.
func (r *ProjectRepository) LoadProject(ctx context.Context, id string) (*core.Project, error) {
	var project *core.Project
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProjectKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			project, unmarshalErr = storage.UnmarshalProject(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes a snapshot by ID.
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeProjectKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListProjects returns every stored project ID in key order.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(projectPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, projectIDFromKey(iter.Item().Key()))
		}
		return nil
	}, false)
	return ids, err
}
