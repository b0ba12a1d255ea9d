package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// GraphRetriever translates the query into the graph store's dialect and runs it.
type GraphRetriever struct {
	translator ai.QueryTranslator
	store      storage.GraphStore
	logger     *slog.Logger
}

var _ Retriever = (*GraphRetriever)(nil)

// GraphOption configures a GraphRetriever.
type GraphOption func(*GraphRetriever) error

// WithGraphLogger sets a custom logger.
// Default is slog.Default().
func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(r *GraphRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewGraphRetriever creates a retriever over translator and store.
func NewGraphRetriever(translator ai.QueryTranslator, store storage.GraphStore, opts ...GraphOption) (*GraphRetriever, error) {
	if translator == nil {
		return nil, ErrTranslatorRequired
	}
	if store == nil {
		return nil, ErrGraphStoreRequired
	}

	r := &GraphRetriever{
		translator: translator,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "graph-retriever")
	return r, nil
}

// Source returns core.SourceGraph.
func (r *GraphRetriever) Source() core.SourceTag {
	return core.SourceGraph
}

// Retrieve returns chunks reached by the translated graph query, heaviest first.
func (r *GraphRetriever) Retrieve(ctx context.Context, query string, limit int, filters map[string]string) (core.RankedList, error) {
	out := newCollector(core.SourceGraph, max(limit, 0), filters)
	if limit <= 0 {
		return out.list, nil
	}
	start := time.Now()

	dialect := r.store.Dialect()
	translated, err := r.translator.TranslateQuery(ctx, query, dialect)
	if err != nil {
		r.logger.Error("error translating query", "dialect", dialect, "err", err)
		return core.RankedList{}, Classify(ctx, core.SourceGraph, err)
	}

	records, err := r.store.Execute(ctx, translated, filters, limit)
	if err != nil {
		r.logger.Error("error executing graph query", "dialect", dialect, "query", translated, "err", err)
		return core.RankedList{}, Classify(ctx, core.SourceGraph, err)
	}

	for _, record := range records {
		if record == nil {
			continue
		}
		if !out.add(record.Chunk, record.Weight) {
			break
		}
	}

	r.logger.Debug("graph retrieval complete",
		"dialect", dialect,
		"records", len(records),
		"results", len(out.list.Items),
		"elapsed", time.Since(start))
	return out.list, nil
}
