package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

const (
	// MaxHops bounds relationship expansion in entity-pattern queries.
	MaxHops = 2

	directMentionWeight = 1.0
)

// GraphStore implements storage.GraphStore for BadgerDB.
//
// Queries use the entity-pattern dialect: a JSON core.EntityPattern naming
// seed entities, optional relationship types to follow, and a hop count.
// Every chunk mentioning a seed entity scores 1.0; each relationship hop
// halves the weight of the entities it reaches. Weights accumulate per chunk.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{backend: backend}
}

// Dialect returns core.DialectEntityPattern.
func (s *GraphStore) Dialect() core.QueryDialect {
	return core.DialectEntityPattern
}

// Close releases resources. GraphStore has no resources to release.
func (s *GraphStore) Close() error {
	return nil
}

// Ping delegates to the backend.
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// AddDocumentGraph indexes chunks, entities, mentions and relationships.
// Entities are deduplicated by normalized name across documents.
func (s *GraphStore) AddDocumentGraph(ctx context.Context, graph *core.DocumentGraph) error {
	if graph == nil || graph.DocumentID == "" {
		return core.ErrEmptyDocumentID
	}
	for _, chunk := range graph.Chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}
	for _, entity := range graph.Entities {
		if strings.TrimSpace(entity.Name) == "" {
			return core.ErrEmptyEntityName
		}
	}

	chunksByIndex := make(map[int]*core.Chunk, len(graph.Chunks))
	for _, chunk := range graph.Chunks {
		chunksByIndex[chunk.ChunkIndex] = chunk
	}

	return s.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for _, chunk := range graph.Chunks {
			c := *chunk
			c.Vector = nil
			value, err := storage.MarshalChunk(&c)
			if err != nil {
				return err
			}
			if err := wb.Set(makeGraphChunkKey(c.IdentityKey()), value); err != nil {
				return err
			}
		}

		for _, entity := range graph.Entities {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := entity
			e.ID = entityID(e.Name)
			if err := wb.Set(makeEntityKey(e.ID), storage.MarshalEntity(&e)); err != nil {
				return err
			}
			if err := wb.Set(makeEntityNameKey(e.Name), appendID(nil, e.ID)); err != nil {
				return err
			}
		}

		for index, names := range graph.Mentions {
			chunk, ok := chunksByIndex[index]
			if !ok {
				return fmt.Errorf("%w: mention of unknown chunk %d", core.ErrInvalidChunk, index)
			}
			for _, name := range names {
				id := entityID(name)
				if err := wb.Set(makeMentionKey(id, chunk.IdentityKey()), nil); err != nil {
					return err
				}
				if err := wb.Set(makeChunkMentionKey(chunk.IdentityKey(), id), nil); err != nil {
					return err
				}
			}
		}

		for _, rel := range graph.Relationships {
			from, to := entityID(rel.Source), entityID(rel.Target)
			if err := wb.Set(makeRelationKey(relationPrefix, from, to, rel.Type), nil); err != nil {
				return err
			}
			if err := wb.Set(makeRelationKey(reverseRelPrefix, to, from, rel.Type), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocument removes the graph chunks of documentID and the mentions
// that point at them.
func (s *GraphStore) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return core.ErrEmptyDocumentID
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte
		err := scanPrefix(ctx, tx, makeGraphDocumentPrefix(documentID), false, func(item *badger.Item) error {
			keys = append(keys, item.KeyCopy(nil))
			return nil
		})
		if err != nil {
			return err
		}
		err = scanPrefix(ctx, tx, makeDocumentMentionPrefix(documentID), false, func(item *badger.Item) error {
			key := item.KeyCopy(nil)
			identityKey, id, ok := parseChunkMentionKey(key)
			if !ok {
				return nil
			}
			keys = append(keys, key, makeMentionKey(id, identityKey))
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

// ParseEntityPattern decodes and validates an entity-pattern query.
func ParseEntityPattern(query string) (*core.EntityPattern, error) {
	var pattern core.EntityPattern
	dec := json.NewDecoder(strings.NewReader(query))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pattern); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}

	names := pattern.Entities[:0]
	for _, name := range pattern.Entities {
		if normalizeName(name) != "" {
			names = append(names, name)
		}
	}
	pattern.Entities = names
	if len(pattern.Entities) == 0 {
		return nil, fmt.Errorf("%w: pattern names no entities", storage.ErrInvalidQuery)
	}
	if pattern.Hops < 0 {
		return nil, fmt.Errorf("%w: negative hop count", storage.ErrInvalidQuery)
	}
	if pattern.Hops > MaxHops {
		pattern.Hops = MaxHops
	}
	return &pattern, nil
}

// Execute runs an entity-pattern query and returns up to limit chunks,
// heaviest first, ties broken by identity key.
func (s *GraphStore) Execute(ctx context.Context, query string, filters map[string]string, limit int) ([]*core.GraphRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	pattern, err := ParseEntityPattern(query)
	if err != nil {
		return nil, err
	}

	var records []*core.GraphRecord

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		seeds, err := s.resolveEntities(ctx, tx, pattern.Entities)
		if err != nil {
			return err
		}
		reached, err := s.expand(ctx, tx, seeds, pattern.Relationships, pattern.Hops)
		if err != nil {
			return err
		}

		weights := make(map[string]float64)
		for id, weight := range reached {
			err := scanPrefix(ctx, tx, makeMentionPrefix(id), false, func(item *badger.Item) error {
				key := item.Key()
				identityKey := string(key[len(mentionPrefix)+8:])
				weights[identityKey] += weight
				return nil
			})
			if err != nil {
				return err
			}
		}

		for identityKey, weight := range weights {
			chunk, err := readChunk(tx, makeGraphChunkKey(identityKey))
			if err != nil {
				return err
			}
			if chunk == nil || !core.MatchesFilters(chunk.Metadata, filters) {
				continue
			}
			records = append(records, &core.GraphRecord{Chunk: chunk, Weight: weight})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *core.GraphRecord) int {
		if a.Weight > b.Weight {
			return -1
		}
		if a.Weight < b.Weight {
			return 1
		}
		return strings.Compare(a.Chunk.IdentityKey(), b.Chunk.IdentityKey())
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// resolveEntities maps names to entity IDs. Exact normalized matches are
// preferred; a name with no exact match falls back to every entity whose
// name contains it or is contained in it.
func (s *GraphStore) resolveEntities(ctx context.Context, tx *badger.Txn, names []string) ([]core.ID, error) {
	var ids []core.ID
	seen := make(map[core.ID]bool)
	add := func(id core.ID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, name := range names {
		_, err := tx.Get(makeEntityNameKey(name))
		if err == nil {
			add(entityID(name))
			continue
		}
		if err != badger.ErrKeyNotFound {
			return nil, err
		}

		term := normalizeName(name)
		err = scanPrefix(ctx, tx, []byte(entityNamePrefix), false, func(item *badger.Item) error {
			candidate := string(bytes.TrimPrefix(item.Key(), []byte(entityNamePrefix)))
			if strings.Contains(candidate, term) || strings.Contains(term, candidate) {
				add(core.IDFromContent(candidate))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// expand walks relationships breadth-first in both directions. Each entity
// keeps the weight of the shortest path that reached it.
func (s *GraphStore) expand(ctx context.Context, tx *badger.Txn, seeds []core.ID, relTypes []string, hops int) (map[core.ID]float64, error) {
	allowed := make(map[string]bool, len(relTypes))
	for _, t := range relTypes {
		allowed[normalizeRelType(t)] = true
	}

	reached := make(map[core.ID]float64, len(seeds))
	frontier := make([]core.ID, 0, len(seeds))
	for _, id := range seeds {
		reached[id] = directMentionWeight
		frontier = append(frontier, id)
	}

	weight := directMentionWeight
	for range hops {
		weight /= 2
		var next []core.ID
		for _, from := range frontier {
			for _, prefix := range []string{relationPrefix, reverseRelPrefix} {
				err := scanPrefix(ctx, tx, makeRelationPrefix(prefix, from), false, func(item *badger.Item) error {
					to, relType, ok := parseRelationKey(prefix, item.Key())
					if !ok {
						return nil
					}
					if len(allowed) > 0 && !allowed[relType] {
						return nil
					}
					if _, done := reached[to]; done {
						return nil
					}
					reached[to] = weight
					next = append(next, to)
					return nil
				})
				if err != nil {
					return nil, err
				}
			}
		}
		frontier = next
	}
	return reached, nil
}

// readChunk loads a chunk, returning nil when the key does not exist.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
