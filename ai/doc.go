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


// Package ai provides the embedding abstraction used by chunkpipe.
//
// The Embedder interface turns chunk text into vectors. Callers depend on
// the interface; concrete clients live in sub-packages:
//
//   - ai/native: the project's own embedding service (POST /embed)
//   - ai/openai: any OpenAI-compatible server, through langchaingo
//   - ai/mock: test doubles without network access
//
// # Constructor Return Type Pattern
//
// Public constructors of the client packages (native.NewEmbedder,
// openai.NewEmbedder) return the ai.Embedder interface. Test doubles
// (mock.NewMockEmbedder) return concrete types so tests can inject behavior
// and inspect call counts.
//
// # Errors
//
// A failure reported by the service itself, as opposed to a transport
// failure, is returned as *ServiceError carrying the service's message
// verbatim. Use errors.As to tell the two apart.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithBackend(ai.BackendNative))
//	embedder, err := native.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "search_document: hello")
package ai
