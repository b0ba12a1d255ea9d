package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vectra/core"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk *core.Chunk
	}{
		{
			name:  "minimal chunk",
			chunk: &core.Chunk{DocumentID: "doc_a", ChunkIndex: 0, Content: "Hello"},
		},
		{
			name: "chunk with metadata and vector",
			chunk: &core.Chunk{
				DocumentID: "doc_b",
				ChunkIndex: 7,
				Content:    "Marie Curie discovered polonium.",
				Metadata: core.Metadata{
					"file_name":   "curie.txt",
					"chunk_index": int64(7),
					"public":      true,
					"score":       0.25,
				},
				Vector: []float32{0.1, -0.2, 0.3},
			},
		},
		{
			name: "unicode content",
			chunk: &core.Chunk{
				DocumentID: "doc_c",
				ChunkIndex: 1,
				Content:    "Skłodowska 🧪",
				Metadata:   core.Metadata{"lang": "pl"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalChunk(tt.chunk)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)

			assert.Equal(t, tt.chunk.DocumentID, decoded.DocumentID)
			assert.Equal(t, tt.chunk.ChunkIndex, decoded.ChunkIndex)
			assert.Equal(t, tt.chunk.Content, decoded.Content)
			assert.Equal(t, tt.chunk.Vector, decoded.Vector)
			assert.Len(t, decoded.Metadata, len(tt.chunk.Metadata))
			for k, v := range tt.chunk.Metadata {
				assert.Equal(t, v, decoded.Metadata[k], "metadata key %s", k)
			}
		})
	}
}

func TestMarshalChunk_NormalizesMetadata(t *testing.T) {
	chunk := &core.Chunk{
		DocumentID: "doc_a",
		Content:    "text",
		Metadata: core.Metadata{
			"int":    3,
			"uint8":  uint8(4),
			"float":  float32(1.5),
			"number": json.Number("12"),
		},
	}

	data, err := MarshalChunk(chunk)
	require.NoError(t, err)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, int64(3), decoded.Metadata["int"])
	assert.Equal(t, int64(4), decoded.Metadata["uint8"])
	assert.Equal(t, 1.5, decoded.Metadata["float"])
	assert.Equal(t, int64(12), decoded.Metadata["number"])

	// The caller's map is untouched.
	assert.Equal(t, 3, chunk.Metadata["int"])
	assert.True(t, core.MatchesFilters(decoded.Metadata, map[string]string{"int": "3", "float": "1.5"}))
}

func TestMarshalChunk_UnsupportedMetadata(t *testing.T) {
	chunk := &core.Chunk{
		DocumentID: "doc_a",
		Content:    "text",
		Metadata:   core.Metadata{"tags": []string{"a", "b"}},
	}

	_, err := MarshalChunk(chunk)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", []byte{0x0a, 'd', 'o'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChunk(tt.data)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalEntity(t *testing.T) {
	entity := &core.Entity{
		ID:   core.IDFromContent("marie curie"),
		Name: "Marie Curie",
		Type: "PERSON",
	}

	decoded, err := UnmarshalEntity(MarshalEntity(entity))
	require.NoError(t, err)
	assert.Equal(t, entity, decoded)
}

func TestMarshalUnmarshalVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty vector", nil},
		{"small vector", []float32{1, 2, 3}},
		{"negative values", []float32{-0.5, 0, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalVector(MarshalVector(tt.vector))
			require.NoError(t, err)
			assert.Equal(t, tt.vector, decoded)
		})
	}
}

func TestUnmarshalVector_Truncated(t *testing.T) {
	data := MarshalVector([]float32{1, 2, 3})
	_, err := UnmarshalVector(data[:len(data)-2])
	assert.Error(t, err)
}
