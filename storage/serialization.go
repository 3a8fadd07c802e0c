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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chunkpipe/core"
)

// Minimum encoded sizes, used to reject lengths the remaining input cannot hold.
const (
	minStringSize = 1
	minStatusSize = 3
	float32Size   = 4
)

// ProjectMUS serializes core.Project.
var ProjectMUS mus.Serializer[core.Project] = projectSerializer{}

// StatusMUS serializes core.ChunkStatus.
var StatusMUS mus.Serializer[core.ChunkStatus] = statusSerializer{}

type statusSerializer struct{}

func (statusSerializer) Marshal(s core.ChunkStatus, bs []byte) (n int) {
	n = varint.Int.Marshal(int(s.State), bs)
	n += ord.String.Marshal(s.Error, bs[n:])
	n += varint.Int.Marshal(len(s.Embedding), bs[n:])
	for _, f := range s.Embedding {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (statusSerializer) Unmarshal(bs []byte) (s core.ChunkStatus, n int, err error) {
	state, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	s.State = core.ChunkState(state)

	var n1 int
	s.Error, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	length, n1, err := unmarshalLength(bs[n:], float32Size)
	n += n1
	if err != nil {
		return
	}
	if length > 0 {
		s.Embedding = make([]float32, length)
		for i := range s.Embedding {
			s.Embedding[i], n1, err = raw.Float32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	return
}

func (statusSerializer) Size(s core.ChunkStatus) (size int) {
	size = varint.Int.Size(int(s.State))
	size += ord.String.Size(s.Error)
	size += varint.Int.Size(len(s.Embedding))
	return size + len(s.Embedding)*float32Size
}

func (ser statusSerializer) Skip(bs []byte) (n int, err error) {
	_, n, err = ser.Unmarshal(bs)
	return
}

type projectSerializer struct{}

func (projectSerializer) Marshal(p core.Project, bs []byte) (n int) {
	n = ord.String.Marshal(p.ID, bs)
	n += varint.Int.Marshal(int(p.Mode), bs[n:])
	n += varint.Int.Marshal(p.Params.MaxChars, bs[n:])
	n += varint.Int.Marshal(p.Params.MinChars, bs[n:])
	n += varint.Int.Marshal(p.Params.MinWords, bs[n:])
	n += varint.Int.Marshal(len(p.Chunks), bs[n:])
	for _, chunk := range p.Chunks {
		n += ord.String.Marshal(chunk, bs[n:])
	}
	n += varint.Int.Marshal(len(p.Statuses), bs[n:])
	for _, s := range p.Statuses {
		n += StatusMUS.Marshal(s, bs[n:])
	}
	n += varint.Uint64.Marshal(uint64(p.Fingerprint), bs[n:])
	n += varint.Int64.Marshal(p.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (projectSerializer) Unmarshal(bs []byte) (p core.Project, n int, err error) {
	var n1 int
	p.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}

	ints := make([]int, 4)
	for i := range ints {
		ints[i], n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	p.Mode = core.ChunkingMode(ints[0])
	p.Params = core.ChunkingParams{MaxChars: ints[1], MinChars: ints[2], MinWords: ints[3]}

	length, n1, err := unmarshalLength(bs[n:], minStringSize)
	n += n1
	if err != nil {
		return
	}
	p.Chunks = make([]string, length)
	for i := range p.Chunks {
		p.Chunks[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	length, n1, err = unmarshalLength(bs[n:], minStatusSize)
	n += n1
	if err != nil {
		return
	}
	p.Statuses = make([]core.ChunkStatus, length)
	for i := range p.Statuses {
		p.Statuses[i], n1, err = StatusMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	fingerprint, n1, err := varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Fingerprint = core.ID(fingerprint)

	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (projectSerializer) Size(p core.Project) (size int) {
	size = ord.String.Size(p.ID)
	size += varint.Int.Size(int(p.Mode))
	size += varint.Int.Size(p.Params.MaxChars)
	size += varint.Int.Size(p.Params.MinChars)
	size += varint.Int.Size(p.Params.MinWords)
	size += varint.Int.Size(len(p.Chunks))
	for _, chunk := range p.Chunks {
		size += ord.String.Size(chunk)
	}
	size += varint.Int.Size(len(p.Statuses))
	for _, s := range p.Statuses {
		size += StatusMUS.Size(s)
	}
	size += varint.Uint64.Size(uint64(p.Fingerprint))
	return size + varint.Int64.Size(p.UpdatedAt.UnixMicro())
}

func (ser projectSerializer) Skip(bs []byte) (n int, err error) {
	_, n, err = ser.Unmarshal(bs)
	return
}

// unmarshalLength reads a collection length and rejects values the rest of
// bs cannot hold at elemSize bytes per element.
func unmarshalLength(bs []byte, elemSize int) (length, n int, err error) {
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/elemSize {
		err = ErrTruncatedData
	}
	return
}

// MarshalProject serializes a Project to bytes.
func MarshalProject(project *core.Project) []byte {
	buf := make([]byte, ProjectMUS.Size(*project))
	ProjectMUS.Marshal(*project, buf)
	return buf
}

// UnmarshalProject deserializes a Project from bytes.
func UnmarshalProject(data []byte) (*core.Project, error) {
	project, n, err := ProjectMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &project, nil
}
