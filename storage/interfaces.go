package storage

import (
	"context"

	"github.com/poiesic/vectra/core"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	// Ping returns nil when the backend can serve requests.
	Ping(ctx context.Context) error
}

// VectorStore is the semantic index: chunks with embeddings, searched by similarity.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	Pinger

	// AddChunks stores chunks with their embedding vectors.
	// Chunks are keyed by identity key; re-adding a chunk replaces it.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) error

	// DeleteDocument removes every chunk belonging to documentID.
	DeleteDocument(ctx context.Context, documentID string) error

	// FindSimilar returns up to limit chunks most similar to vector, best first.
	// Only chunks whose metadata satisfies every filter are considered.
	FindSimilar(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]*core.ScoredChunk, error)

	// Close releases resources held by the store.
	Close() error
}

// GraphStore is the entity-relationship index.
// Implementations must be thread-safe and support concurrent access.
type GraphStore interface {
	Pinger

	// Dialect names the query language Execute accepts.
	Dialect() core.QueryDialect

	// AddDocumentGraph indexes the chunks, entities and relationships of a document.
	AddDocumentGraph(ctx context.Context, graph *core.DocumentGraph) error

	// DeleteDocument removes every chunk of documentID and the mentions
	// pointing at them. Entities and relationships are shared across
	// documents and are kept.
	DeleteDocument(ctx context.Context, documentID string) error

	// Execute runs a query in the store's dialect and returns up to limit
	// chunks, heaviest first. Returns ErrInvalidQuery when the query cannot
	// be parsed or is not read-only.
	Execute(ctx context.Context, query string, filters map[string]string, limit int) ([]*core.GraphRecord, error)

	// Close releases resources held by the store.
	Close() error
}
