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


package ai

import "errors"

var (
	// ErrUnknownBackend is returned when Config.Backend names no known client.
	ErrUnknownBackend = errors.New("unknown embedding backend")

	// ErrEmbeddingHostRequired is returned when Config.EmbeddingHost is empty.
	ErrEmbeddingHostRequired = errors.New("embedding host is required")

	// ErrEmbeddingModelRequired is returned when a backend needs a model name and none is set.
	ErrEmbeddingModelRequired = errors.New("embedding model is required")

	// ErrEmptyEmbedding is returned when the service answers without a vector.
	ErrEmptyEmbedding = errors.New("service returned an empty embedding")
)

// ServiceError is a failure reported by the embedding service in an
// otherwise well-formed response.
type ServiceError struct {
	Message string
}

// Error returns the service's message unchanged.
func (e *ServiceError) Error() string {
	return e.Message
}
