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


// Package search checks what a project cache returns for a question.
//
// The Retriever embeds the question, ranks the project's cached chunks by
// cosine similarity and keeps those above a threshold (0.5 by default). The
// kept texts, joined with "\n---\n", form the context block a
// retrieval-augmented prompt would receive.
package search
