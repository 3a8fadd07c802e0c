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


// Package native implements ai.Embedder for the project's embedding service.
//
// The service exposes a single endpoint:
//
//	POST {host}/embed   {"text": "..."}
//
// and answers with either {"embedding": [...]} or {"error": "..."}. An error
// field becomes *ai.ServiceError; HTTP and decoding failures are returned as
// ordinary wrapped errors.
package native
