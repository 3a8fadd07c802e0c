package chunker

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/chunkpipe/core"
)

// SplitLines splits text on newlines and drops lines that are blank or
// whitespace-only. Kept lines are not trimmed.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// ChunkAuto packs the non-blank lines of text into chunks.
// Sizes are measured in characters (runes) and whitespace-separated words.
// Callers are expected to validate params with core.ValidateChunkingParams.
func ChunkAuto(text string, params core.ChunkingParams) []string {
	lines := SplitLines(text)
	chunks := make([]string, 0)

	var current strings.Builder
	currentChars := 0
	currentWords := 0

	for _, line := range lines {
		lineChars := utf8.RuneCountInString(line)
		lineWords := len(strings.Fields(line))

		prospectiveChars := lineChars
		if current.Len() > 0 {
			prospectiveChars += currentChars + 1 // joining newline
		}

		if prospectiveChars > params.MaxChars && current.Len() > 0 &&
			meetsMinimum(currentChars, currentWords, params) {
			chunks = append(chunks, core.DocumentPrefix+current.String())
			current.Reset()
			current.WriteString(line)
			currentChars = lineChars
			currentWords = lineWords
			continue
		}

		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		currentChars = prospectiveChars
		currentWords += lineWords
	}

	if current.Len() == 0 {
		return chunks
	}

	// An undersized tail joins the previous chunk; it becomes its own chunk
	// only when nothing was emitted before it.
	if !meetsMinimum(currentChars, currentWords, params) && len(chunks) > 0 {
		chunks[len(chunks)-1] += "\n" + current.String()
		return chunks
	}

	return append(chunks, core.DocumentPrefix+current.String())
}

// ChunkManual groups the selected line numbers into chunks, one per run of
// consecutive numbers. Selection order and duplicates are ignored.
// lines is normally the output of SplitLines.
func ChunkManual(lines []string, selected []int) ([]string, error) {
	chunks := make([]string, 0)
	if len(selected) == 0 {
		return chunks, nil
	}

	indices := slices.Clone(selected)
	slices.Sort(indices)
	indices = slices.Compact(indices)

	for _, idx := range indices {
		if idx < 0 || idx >= len(lines) {
			return nil, fmt.Errorf("%w: line %d of %d", core.ErrLineOutOfRange, idx, len(lines))
		}
	}

	group := []string{lines[indices[0]]}
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			chunks = append(chunks, core.DocumentPrefix+strings.Join(group, "\n"))
			group = group[:0]
		}
		group = append(group, lines[indices[i]])
	}
	chunks = append(chunks, core.DocumentPrefix+strings.Join(group, "\n"))

	return chunks, nil
}

// Strip removes the document prefix from a chunk, if present.
func Strip(chunk string) string {
	return strings.TrimPrefix(chunk, core.DocumentPrefix)
}

func meetsMinimum(chars, words int, params core.ChunkingParams) bool {
	return chars >= params.MinChars && words >= params.MinWords
}
