package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DocumentPrefix marks a chunk as a retrieval document for the embedding model.
const DocumentPrefix = "search_document: "

// ID is a content fingerprint.
type ID uint64

// Fingerprint identifies an ordered chunk list. Any change to the text or
// order of the chunks produces a different fingerprint.
func Fingerprint(chunks []string) ID {
	h, _ := blake2b.New(8, nil)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, chunk := range chunks {
		// Length-prefix each chunk so ["ab","c"] and ["a","bc"] differ
		n := binary.PutUvarint(lenBuf[:], uint64(len(chunk)))
		h.Write(lenBuf[:n])
		h.Write([]byte(chunk))
	}
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// ChunkID returns the cache identifier for the chunk at index.
// Identifiers are 1-based: index 0 maps to "chunk-1".
func ChunkID(index int) string {
	return "chunk-" + strconv.Itoa(index+1)
}

// ChunkState is the lifecycle state of a single chunk.
type ChunkState int

const (
	// StatePending means the chunk has not been embedded yet.
	StatePending ChunkState = iota
	// StateEmbedding means an embedding request for the chunk is in flight.
	StateEmbedding
	// StateSuccess means the chunk has an embedding and awaits publishing.
	StateSuccess
	// StateFailed means embedding or publishing failed; see ChunkStatus.Error.
	StateFailed
	// StatePushing means a cache request for the chunk is in flight.
	StatePushing
	// StatePushed means the chunk is stored in the cache.
	StatePushed
)

var stateNames = [...]string{
	StatePending:   "pending",
	StateEmbedding: "embedding",
	StateSuccess:   "success",
	StateFailed:    "failed",
	StatePushing:   "pushing",
	StatePushed:    "pushed",
}

// String returns the lowercase state name.
func (s ChunkState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// AllStates lists every state in lifecycle order.
func AllStates() []ChunkState {
	return []ChunkState{StatePending, StateEmbedding, StateSuccess, StateFailed, StatePushing, StatePushed}
}

// ChunkStatus tracks the pipeline progress of one chunk.
type ChunkStatus struct {
	State     ChunkState
	Embedding []float32 // Set once the chunk has reached StateSuccess
	Error     string    // Set only while State is StateFailed
}

// ChunkingMode records how a project's chunk list was produced.
type ChunkingMode int

const (
	// ModeAuto chunks by size constraints.
	ModeAuto ChunkingMode = iota + 1
	// ModeManual chunks by an explicit line selection.
	ModeManual
)

// String returns the mode name.
func (m ChunkingMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ChunkingParams bounds chunk sizes in automatic mode.
type ChunkingParams struct {
	MaxChars int // Split is forced once a chunk would exceed this
	MinChars int // Chunks shorter than this are merged forward
	MinWords int // Chunks with fewer words than this are merged forward
}

// DefaultChunkingParams returns the defaults used when no parameters are given.
func DefaultChunkingParams() ChunkingParams {
	return ChunkingParams{
		MaxChars: 6000,
		MinChars: 500,
		MinWords: 50,
	}
}

// Project is the persisted state of one project's pipeline.
type Project struct {
	ID          string
	Mode        ChunkingMode
	Params      ChunkingParams
	Chunks      []string
	Statuses    []ChunkStatus
	Fingerprint ID
	UpdatedAt   time.Time
}
