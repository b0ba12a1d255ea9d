package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// SemanticRetriever embeds the query and searches the vector store.
type SemanticRetriever struct {
	embedder      ai.Embedder
	store         storage.VectorStore
	cache         EmbeddingCache
	minSimilarity float32
	logger        *slog.Logger
}

var _ Retriever = (*SemanticRetriever)(nil)

// SemanticOption configures a SemanticRetriever.
type SemanticOption func(*SemanticRetriever) error

// WithEmbeddingCache reuses query embeddings across requests.
func WithEmbeddingCache(cache EmbeddingCache) SemanticOption {
	return func(r *SemanticRetriever) error {
		r.cache = cache
		return nil
	}
}

// WithMinSimilarity drops hits scoring below threshold.
// Default is 0, which keeps every hit the store returns.
func WithMinSimilarity(threshold float32) SemanticOption {
	return func(r *SemanticRetriever) error {
		r.minSimilarity = threshold
		return nil
	}
}

// WithSemanticLogger sets a custom logger.
// Default is slog.Default().
func WithSemanticLogger(logger *slog.Logger) SemanticOption {
	return func(r *SemanticRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewSemanticRetriever creates a retriever over embedder and store.
func NewSemanticRetriever(embedder ai.Embedder, store storage.VectorStore, opts ...SemanticOption) (*SemanticRetriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	r := &SemanticRetriever{
		embedder: embedder,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "semantic-retriever")
	return r, nil
}

// Source returns core.SourceSemantic.
func (r *SemanticRetriever) Source() core.SourceTag {
	return core.SourceSemantic
}

// Retrieve embeds query and returns the closest chunks.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, limit int, filters map[string]string) (core.RankedList, error) {
	out := newCollector(core.SourceSemantic, max(limit, 0), filters)
	if limit <= 0 {
		return out.list, nil
	}
	start := time.Now()

	vector, err := r.embed(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return core.RankedList{}, Classify(ctx, core.SourceSemantic, err)
	}

	hits, err := r.store.FindSimilar(ctx, vector, filters, limit)
	if err != nil {
		r.logger.Error("error querying for similar chunks", "err", err)
		return core.RankedList{}, Classify(ctx, core.SourceSemantic, err)
	}

	for _, hit := range hits {
		if hit == nil || hit.Score < r.minSimilarity {
			continue
		}
		if !out.add(hit.Chunk, float64(hit.Score)) {
			break
		}
	}

	r.logger.Debug("semantic retrieval complete",
		"hits", len(hits),
		"results", len(out.list.Items),
		"elapsed", time.Since(start))
	return out.list, nil
}

func (r *SemanticRetriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if vector, ok := r.cache.Get(ctx, query); ok && len(vector) > 0 {
			return vector, nil
		}
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, malformed("empty embedding")
	}

	if r.cache != nil {
		r.cache.Set(ctx, query, vector)
	}
	return vector, nil
}
