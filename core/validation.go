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

import (
	"fmt"
	"strings"
)

// ValidateChunkingParams validates ChunkingParams according to domain rules.
//
// Validation rules:
//   - No bound may be negative
//   - MaxChars must be greater than 0
//
// NOT validated (degrades instead of failing):
//   - MinChars > MaxChars produces oversized chunks
func ValidateChunkingParams(params ChunkingParams) error {
	if params.MaxChars < 0 || params.MinChars < 0 || params.MinWords < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrNegativeParam)
	}
	if params.MaxChars == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrZeroMaxChars)
	}
	return nil
}

// ValidateProject validates a Project according to domain rules.
//
// Validation rules:
//   - ID must not be blank
//   - Statuses must have one entry per chunk
func ValidateProject(project *Project) error {
	if project == nil {
		return fmt.Errorf("%w: project is nil", ErrInvalidProject)
	}

	if strings.TrimSpace(project.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProject, ErrEmptyProjectID)
	}

	if len(project.Statuses) != len(project.Chunks) {
		return fmt.Errorf("%w: %w (%d statuses, %d chunks)", ErrInvalidProject,
			ErrStatusCountMismatch, len(project.Statuses), len(project.Chunks))
	}

	return nil
}
