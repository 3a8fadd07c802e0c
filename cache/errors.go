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


package cache

import (
	"errors"
	"net/http"
)

var (
	// ErrDuplicateID indicates the project already holds an entry with the same ID.
	ErrDuplicateID = errors.New("chunk id already exists")

	// ErrProjectRequired is returned when the project name is empty.
	ErrProjectRequired = errors.New("project is required")

	// ErrInvalidEntry is returned for entries missing an ID, text or embedding.
	ErrInvalidEntry = errors.New("id, text, and embedding are required")
)

// ServiceError is a rejection reported by the cache service.
type ServiceError struct {
	StatusCode int
	Message    string
}

// Error returns the service's message unchanged.
func (e *ServiceError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// Unwrap maps a conflict to ErrDuplicateID.
func (e *ServiceError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return ErrDuplicateID
	}
	return nil
}

// ValidateEntry checks that an entry can be stored.
func ValidateEntry(entry Entry) error {
	if entry.ID == "" || entry.Text == "" || len(entry.Embedding) == 0 {
		return ErrInvalidEntry
	}
	return nil
}
