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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidParams indicates ChunkingParams failed validation.
	ErrInvalidParams = errors.New("invalid chunking parameters")

	// ErrNegativeParam indicates a chunking bound is negative.
	ErrNegativeParam = errors.New("chunking bound cannot be negative")

	// ErrZeroMaxChars indicates MaxChars is zero.
	ErrZeroMaxChars = errors.New("max chars must be greater than 0")

	// ErrLineOutOfRange indicates a manual selection refers to a missing line.
	ErrLineOutOfRange = errors.New("selected line out of range")

	// ErrInvalidProject indicates a Project failed validation.
	ErrInvalidProject = errors.New("invalid project")

	// ErrEmptyProjectID indicates the project ID is empty.
	ErrEmptyProjectID = errors.New("project id cannot be empty")

	// ErrStatusCountMismatch indicates the status table does not match the chunk list.
	ErrStatusCountMismatch = errors.New("status count does not match chunk count")
)

// Run errors
var (
	// ErrRunInProgress indicates a second run was started over a project
	// whose previous run has not finished.
	ErrRunInProgress = errors.New("a run is already in progress")
)
