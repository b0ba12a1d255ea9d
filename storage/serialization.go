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
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/vectra/core"
)

// Metadata value tags.
const (
	tagString byte = iota + 1
	tagBool
	tagInt
	tagFloat
)

// MarshalChunk serializes a Chunk, including its vector, to bytes.
// Metadata values must be scalars.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	meta, err := NormalizeMetadata(chunk.Metadata)
	if err != nil {
		return nil, err
	}
	c := *chunk
	c.Metadata = meta
	buf := make([]byte, ChunkMUS.Size(c))
	ChunkMUS.Marshal(c, buf)
	return buf, nil
}

// UnmarshalChunk deserializes a Chunk from bytes.
// Integer metadata decodes as int64 and floating point metadata as float64.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(entity *core.Entity) []byte {
	buf := make([]byte, EntityMUS.Size(*entity))
	EntityMUS.Marshal(*entity, buf)
	return buf
}

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	entity, _, err := EntityMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entity, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, VectorMUS.Size(vector))
	VectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := VectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return vector, nil
}

// NormalizeMetadata converts metadata values to the canonical scalar types
// string, bool, int64 and float64. Any other value yields ErrUnsupportedValue.
func NormalizeMetadata(m core.Metadata) (core.Metadata, error) {
	out := make(core.Metadata, len(m))
	for k, v := range m {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q has type %T", err, k, v)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case string, bool, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
		return t.String(), nil
	default:
		return nil, ErrUnsupportedValue
	}
}

var (
	// ChunkMUS is the binary serializer for core.Chunk.
	ChunkMUS = chunkMUS{}
	// EntityMUS is the binary serializer for core.Entity.
	EntityMUS = entityMUS{}
	// MetadataMUS is the binary serializer for normalized core.Metadata.
	MetadataMUS = metadataMUS{}
	// VectorMUS is the binary serializer for embedding vectors.
	VectorMUS = vectorMUS{}
)

type chunkMUS struct{}

func (s chunkMUS) Marshal(v core.Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(v.DocumentID, bs)
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += MetadataMUS.Marshal(v.Metadata, bs[n:])
	return n + VectorMUS.Marshal(v.Vector, bs[n:])
}

func (s chunkMUS) Unmarshal(bs []byte) (v core.Chunk, n int, err error) {
	v.DocumentID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = MetadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s chunkMUS) Size(v core.Chunk) (size int) {
	size = ord.String.Size(v.DocumentID)
	size += varint.Int.Size(v.ChunkIndex)
	size += ord.String.Size(v.Content)
	size += MetadataMUS.Size(v.Metadata)
	return size + VectorMUS.Size(v.Vector)
}

type entityMUS struct{}

func (s entityMUS) Marshal(v core.Entity, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.ID), bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	return n + ord.String.Marshal(v.Type, bs[n:])
}

func (s entityMUS) Unmarshal(bs []byte) (v core.Entity, n int, err error) {
	var id uint64
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = core.ID(id)
	var n1 int
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s entityMUS) Size(v core.Entity) (size int) {
	size = varint.Uint64.Size(uint64(v.ID))
	size += ord.String.Size(v.Name)
	return size + ord.String.Size(v.Type)
}

// metadataMUS encodes a map as a length followed by key, tag, value triples
// in key order. Values must already be normalized.
type metadataMUS struct{}

func (s metadataMUS) Marshal(v core.Metadata, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, key := range slices.Sorted(maps.Keys(v)) {
		n += ord.String.Marshal(key, bs[n:])
		switch t := v[key].(type) {
		case string:
			bs[n] = tagString
			n++
			n += ord.String.Marshal(t, bs[n:])
		case bool:
			bs[n] = tagBool
			n++
			n += ord.Bool.Marshal(t, bs[n:])
		case int64:
			bs[n] = tagInt
			n++
			n += varint.Int64.Marshal(t, bs[n:])
		case float64:
			bs[n] = tagFloat
			n++
			n += raw.Float64.Marshal(t, bs[n:])
		}
	}
	return n
}

func (s metadataMUS) Unmarshal(bs []byte) (v core.Metadata, n int, err error) {
	var length int
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = ErrTruncatedData
		return
	}
	v = make(core.Metadata, length)
	for range length {
		var (
			key string
			n1  int
		)
		key, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		if n >= len(bs) {
			err = ErrTruncatedData
			return
		}
		tag := bs[n]
		n++
		switch tag {
		case tagString:
			v[key], n1, err = ord.String.Unmarshal(bs[n:])
		case tagBool:
			v[key], n1, err = ord.Bool.Unmarshal(bs[n:])
		case tagInt:
			v[key], n1, err = varint.Int64.Unmarshal(bs[n:])
		case tagFloat:
			v[key], n1, err = raw.Float64.Unmarshal(bs[n:])
		default:
			err = fmt.Errorf("%w: tag %d", ErrUnsupportedValue, tag)
		}
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s metadataMUS) Size(v core.Metadata) (size int) {
	size = varint.Int.Size(len(v))
	for key, value := range v {
		size += ord.String.Size(key) + 1
		switch t := value.(type) {
		case string:
			size += ord.String.Size(t)
		case bool:
			size += ord.Bool.Size(t)
		case int64:
			size += varint.Int64.Size(t)
		case float64:
			size += raw.Float64.Size(t)
		}
	}
	return size
}

type vectorMUS struct{}

func (s vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (s vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	var length int
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length*4 > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float32, length)
	for i := range v {
		var n1 int
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}
