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


// Package publish sends embedded chunks to a project cache.
//
// Push walks the chunks in Success state in index order, one request at a
// time with a fixed delay after each. Every chunk moves Success -> Pushing
// and then to Pushed, or to Failed with the cache's message. Chunks already
// Pushed are never sent again, so repeated pushes are idempotent and an
// interrupted push resumes where it stopped.
//
// Replace rewrites the whole project cache from every embedded chunk in one
// request. Clear drops the project cache, retrying with exponential backoff,
// and returns Pushed chunks to Success.
package publish
