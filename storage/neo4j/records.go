package neo4j

import (
	"fmt"
	"slices"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// Columns recognised as a row weight, in order of preference.
var weightColumns = []string{"score", "weight", "relevance"}

// DecodeRecords converts Cypher rows into weighted chunks.
//
// A row contributes every Chunk node it returns (directly, inside a list or
// along a path). Rows without nodes are read column-wise when they have a
// content column. The row weight comes from a numeric score, weight or
// relevance column and defaults to 1.0. Chunks are deduplicated by identity
// key, keeping the highest weight, and ordered by weight with ties left in
// row order.
func DecodeRecords(records []*neo4j.Record) ([]*core.GraphRecord, error) {
	var out []*core.GraphRecord
	index := make(map[string]int)

	for _, record := range records {
		weight := recordWeight(record)

		var chunks []*core.Chunk
		for _, value := range record.Values {
			chunks = collectChunks(value, chunks)
		}
		if len(chunks) == 0 {
			if chunk, ok := chunkFromProps(recordMap(record)); ok {
				chunks = append(chunks, chunk)
			}
		}

		for _, chunk := range chunks {
			key := chunk.IdentityKey()
			if i, seen := index[key]; seen {
				if weight > out[i].Weight {
					out[i].Weight = weight
				}
				continue
			}
			index[key] = len(out)
			out = append(out, &core.GraphRecord{Chunk: chunk, Weight: weight})
		}
	}

	if len(records) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("%w: %d rows contained no chunk content", storage.ErrSerializationFailed, len(records))
	}

	slices.SortStableFunc(out, func(a, b *core.GraphRecord) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

func collectChunks(value any, acc []*core.Chunk) []*core.Chunk {
	switch v := value.(type) {
	case neo4j.Node:
		if chunk, ok := chunkFromProps(v.Props); ok {
			acc = append(acc, chunk)
		}
	case neo4j.Path:
		for _, node := range v.Nodes {
			acc = collectChunks(node, acc)
		}
	case []any:
		for _, item := range v {
			acc = collectChunks(item, acc)
		}
	case map[string]any:
		if chunk, ok := chunkFromProps(v); ok {
			acc = append(acc, chunk)
		}
	}
	return acc
}

func recordMap(record *neo4j.Record) map[string]any {
	m := make(map[string]any, len(record.Keys))
	for i, key := range record.Keys {
		if i < len(record.Values) {
			m[key] = record.Values[i]
		}
	}
	return m
}

func recordWeight(record *neo4j.Record) float64 {
	for _, column := range weightColumns {
		value, ok := record.Get(column)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		}
	}
	return 1.0
}

// chunkFromProps builds a chunk from node properties or row columns.
// Every scalar property other than content is kept as metadata.
func chunkFromProps(props map[string]any) (*core.Chunk, bool) {
	content, _ := props["content"].(string)
	if content == "" {
		return nil, false
	}

	chunk := &core.Chunk{Content: content, Metadata: core.Metadata{}}
	for k, v := range props {
		if k == "content" || k == "embedding" {
			continue
		}
		switch v.(type) {
		case string, bool, int64, float64:
			chunk.Metadata[k] = v
		}
	}

	if id, ok := props["document_id"].(string); ok && id != "" {
		chunk.DocumentID = id
	} else if name, ok := props["file_name"].(string); ok && name != "" {
		chunk.DocumentID = core.DocumentIDFromName(name)
	} else {
		chunk.DocumentID = "graph_" + core.HashContent(content)
	}
	if idx, ok := props["chunk_index"].(int64); ok {
		chunk.ChunkIndex = int(idx)
	}
	return chunk, true
}
