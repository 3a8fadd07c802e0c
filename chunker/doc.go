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


// Package chunker splits extracted document text into embedding-sized chunks.
//
// Two modes are supported:
//
//   - ChunkAuto greedily packs non-blank lines into chunks bounded by
//     core.ChunkingParams. The minimum bounds win over the maximum: a chunk
//     is only closed early once it is large enough, and an undersized tail
//     is folded into the previous chunk.
//   - ChunkManual groups an explicit selection of line numbers into one
//     chunk per contiguous run.
//
// Lines are numbered after blank lines are removed (see SplitLines). Every
// chunk carries core.DocumentPrefix. The functions are pure and safe for
// concurrent use.
package chunker
