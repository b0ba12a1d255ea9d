package retrieval

import (
	"context"

	"github.com/poiesic/vectra/core"
)

// Retriever is one retrieval path.
// Implementations must be safe for concurrent use.
type Retriever interface {
	// Source identifies the items this retriever produces.
	Source() core.SourceTag

	// Retrieve returns up to limit items for query, best first, with no
	// duplicate identity keys. Errors are *core.RetrievalError.
	Retrieve(ctx context.Context, query string, limit int, filters map[string]string) (core.RankedList, error)
}

// EmbeddingCache stores query embeddings between requests.
// Misses and cache failures are indistinguishable to callers.
type EmbeddingCache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Set(ctx context.Context, text string, vector []float32)
}

// collector assembles a ranked list, dropping duplicates and items that
// fail the filters, and stops at limit.
type collector struct {
	list    core.RankedList
	seen    map[string]struct{}
	filters map[string]string
	limit   int
}

func newCollector(source core.SourceTag, limit int, filters map[string]string) *collector {
	return &collector{
		list:    core.RankedList{Source: source, Items: make([]core.RetrievalItem, 0, limit)},
		seen:    make(map[string]struct{}, limit),
		filters: filters,
		limit:   limit,
	}
}

// add reports whether the collector can take more items.
func (c *collector) add(chunk *core.Chunk, score float64) bool {
	if len(c.list.Items) >= c.limit {
		return false
	}
	if chunk == nil || chunk.Content == "" {
		return true
	}
	key := chunk.IdentityKey()
	if _, dup := c.seen[key]; dup {
		return true
	}
	if !core.MatchesFilters(chunk.Metadata, c.filters) {
		return true
	}
	c.seen[key] = struct{}{}
	c.list.Items = append(c.list.Items, core.RetrievalItem{
		Content:     chunk.Content,
		IdentityKey: key,
		Source:      c.list.Source,
		NativeScore: score,
		Metadata:    chunk.Metadata.Clone(),
	})
	return len(c.list.Items) < c.limit
}
