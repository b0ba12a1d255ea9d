package ai

import (
	"context"

	"github.com/poiesic/vectra/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryTranslator turns a natural-language question into a query in the
// dialect a graph store executes.
type QueryTranslator interface {
	// TranslateQuery returns the query text. Unsupported dialects are an error.
	TranslateQuery(ctx context.Context, text string, dialect core.QueryDialect) (string, error)
}

// EntityExtractor finds entities and the relationships between them in text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractGraph returns an empty graph, not an error, when nothing is found.
	ExtractGraph(ctx context.Context, text string) (*ExtractedGraph, error)
}

// ExtractedEntity is a named thing mentioned in text.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExtractedRelationship links two extracted entities by name.
type ExtractedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ExtractedGraph is the output of an EntityExtractor.
type ExtractedGraph struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// QueryTranslator returns the graph query translation service.
	QueryTranslator() QueryTranslator

	// EntityExtractor returns the entity extraction service.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
