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


// Package cache defines where embedded chunks are published.
//
// A Cache stores (id, text, embedding) entries per project. Two backends are
// provided:
//
//   - cache/remote: the project cache service over HTTP
//   - cache/chromem: a local chromem-go vector store, which also implements
//     Querier for retrieval checks
//
// cache/mock provides a recording test double.
//
// # Errors
//
// A rejection by the cache itself is returned as *ServiceError with the
// service's message. Duplicate identifiers additionally match
// ErrDuplicateID through errors.Is.
package cache
