package badger

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB with a
// brute-force cosine similarity scan.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Close releases resources. VectorStore has no resources to release;
// the backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}

// Ping delegates to the backend.
func (s *VectorStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// AddChunks stores chunks keyed by identity key.
func (s *VectorStore) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if len(chunk.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", core.ErrInvalidChunk, chunk.IdentityKey())
		}
	}

	return s.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := wb.Set(makeVectorChunkKey(chunk.IdentityKey()), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocument removes every chunk belonging to documentID.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte
		err := scanPrefix(ctx, tx, makeDocumentPrefix(documentID), false, func(item *badger.Item) error {
			keys = append(keys, item.KeyCopy(nil))
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar finds chunks similar to the given vector.
// Results are ordered by cosine similarity descending, ties by identity key.
func (s *VectorStore) FindSimilar(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]*core.ScoredChunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var results []*core.ScoredChunk

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, []byte(vectorChunkPrefix), true, func(item *badger.Item) error {
			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			// Skip chunks without embeddings
			if len(chunk.Vector) == 0 {
				return nil
			}
			if len(chunk.Vector) != len(vector) {
				return fmt.Errorf("%w: query has %d dimensions, %s has %d",
					storage.ErrDimensionMismatch, len(vector), chunk.IdentityKey(), len(chunk.Vector))
			}
			if !core.MatchesFilters(chunk.Metadata, filters) {
				return nil
			}

			results = append(results, &core.ScoredChunk{
				Chunk: chunk,
				Score: cosineSimilarity(vector, chunk.Vector),
			})
			return nil
		})
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.ScoredChunk) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Chunk.IdentityKey(), b.Chunk.IdentityKey())
	})

	// Limit to maxHits
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
