package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/vectra/ai"
	aimock "github.com/poiesic/vectra/ai/mock"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
	"github.com/poiesic/vectra/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process EmbeddingCache.
type memoryCache struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

func (c *memoryCache) Get(_ context.Context, text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vectors[text]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vectors == nil {
		c.vectors = map[string][]float32{}
	}
	c.vectors[text] = vector
}

func keys(list core.RankedList) []string {
	out := make([]string, len(list.Items))
	for i, item := range list.Items {
		out[i] = item.IdentityKey
	}
	return out
}

func requireCause(t *testing.T, err error, source core.SourceTag, cause core.FailureCause) {
	t.Helper()
	re, ok := core.AsRetrievalError(err)
	require.True(t, ok, "expected RetrievalError, got %v", err)
	assert.Equal(t, source, re.Source)
	assert.Equal(t, cause, re.Cause, "cause = %s", re.Cause)
}

// newSemanticFixture stores three chunks whose vectors point along fixed axes.
// The embedder maps every query to the x axis.
func newSemanticFixture(t *testing.T) (*aimock.MockEmbedder, *badger.VectorStore) {
	t.Helper()
	vectors, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	err = vectors.AddChunks(context.Background(),
		&core.Chunk{DocumentID: "doc_a", ChunkIndex: 0, Content: "exact", Vector: []float32{1, 0, 0}, Metadata: core.Metadata{"file_name": "a.txt"}},
		&core.Chunk{DocumentID: "doc_a", ChunkIndex: 1, Content: "close", Vector: []float32{0.9, 0.1, 0}, Metadata: core.Metadata{"file_name": "a.txt"}},
		&core.Chunk{DocumentID: "doc_b", ChunkIndex: 0, Content: "orthogonal", Vector: []float32{0, 1, 0}, Metadata: core.Metadata{"file_name": "b.txt"}},
	)
	require.NoError(t, err)

	embedder := aimock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	return embedder, vectors
}

func TestNewSemanticRetriever_Validation(t *testing.T) {
	_, vectors := newSemanticFixture(t)

	_, err := NewSemanticRetriever(nil, vectors)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewSemanticRetriever(aimock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)
}

func TestSemanticRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("best first", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		r, err := NewSemanticRetriever(embedder, vectors)
		require.NoError(t, err)

		list, err := r.Retrieve(ctx, "query", 10, nil)
		require.NoError(t, err)

		assert.Equal(t, core.SourceSemantic, list.Source)
		assert.Equal(t, []string{"doc_a#0", "doc_a#1", "doc_b#0"}, keys(list))
		assert.InDelta(t, 1.0, list.Items[0].NativeScore, 1e-6)
		assert.Equal(t, "exact", list.Items[0].Content)
		assert.Equal(t, core.SourceSemantic, list.Items[0].Source)
		assert.Equal(t, "a.txt", list.Items[0].Metadata["file_name"])
	})

	t.Run("limit", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		r, _ := NewSemanticRetriever(embedder, vectors)

		list, err := r.Retrieve(ctx, "query", 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_a#0", "doc_a#1"}, keys(list))
	})

	t.Run("non-positive limit does not call backends", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		r, _ := NewSemanticRetriever(embedder, vectors)

		list, err := r.Retrieve(ctx, "query", 0, nil)
		require.NoError(t, err)
		assert.Empty(t, list.Items)
		assert.Equal(t, 0, embedder.CallCount())
	})

	t.Run("filters", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		r, _ := NewSemanticRetriever(embedder, vectors)

		list, err := r.Retrieve(ctx, "query", 10, map[string]string{"file_name": "b.txt"})
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_b#0"}, keys(list))

		list, err = r.Retrieve(ctx, "query", 10, map[string]string{"author": "curie"})
		require.NoError(t, err)
		assert.Empty(t, list.Items)
	})

	t.Run("min similarity", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		r, _ := NewSemanticRetriever(embedder, vectors, WithMinSimilarity(0.5))

		list, err := r.Retrieve(ctx, "query", 10, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_a#0", "doc_a#1"}, keys(list))
	})

	t.Run("embedding cache", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		cache := &memoryCache{}
		r, _ := NewSemanticRetriever(embedder, vectors, WithEmbeddingCache(cache))

		first, err := r.Retrieve(ctx, "query", 10, nil)
		require.NoError(t, err)
		second, err := r.Retrieve(ctx, "query", 10, nil)
		require.NoError(t, err)

		assert.Equal(t, keys(first), keys(second))
		assert.Equal(t, 1, embedder.CallCount())
	})
}

func TestSemanticRetriever_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		embed func(context.Context, string) ([]float32, error)
		cause core.FailureCause
	}{
		{
			name:  "embedder unreachable",
			embed: func(context.Context, string) ([]float32, error) { return nil, errors.New("connection refused") },
			cause: core.CauseBackendUnavailable,
		},
		{
			name:  "embedder deadline",
			embed: func(context.Context, string) ([]float32, error) { return nil, context.DeadlineExceeded },
			cause: core.CauseTimeout,
		},
		{
			name:  "empty embedding",
			embed: func(context.Context, string) ([]float32, error) { return []float32{}, nil },
			cause: core.CauseMalformedResponse,
		},
		{
			name:  "dimension mismatch",
			embed: func(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil },
			cause: core.CauseMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, vectors := newSemanticFixture(t)
			embedder.EmbedTextFunc = tt.embed
			r, _ := NewSemanticRetriever(embedder, vectors)

			_, err := r.Retrieve(ctx, "query", 10, nil)
			requireCause(t, err, core.SourceSemantic, tt.cause)
		})
	}

	t.Run("closed store", func(t *testing.T) {
		vectors, _, backend, err := badger.NewMemoryStores()
		require.NoError(t, err)
		require.NoError(t, backend.Close())

		r, _ := NewSemanticRetriever(aimock.NewMockEmbedder(), vectors)
		_, err = r.Retrieve(ctx, "query", 10, nil)
		requireCause(t, err, core.SourceSemantic, core.CauseBackendUnavailable)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		embedder, vectors := newSemanticFixture(t)
		embedder.EmbedTextFunc = func(ctx context.Context, _ string) ([]float32, error) {
			return nil, errors.New("driver: request aborted")
		}
		r, _ := NewSemanticRetriever(embedder, vectors)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Retrieve(cctx, "query", 10, nil)
		requireCause(t, err, core.SourceSemantic, core.CauseTimeout)
	})
}

func newGraphFixture(t *testing.T) *badger.GraphStore {
	t.Helper()
	_, graph, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	err = graph.AddDocumentGraph(context.Background(), &core.DocumentGraph{
		DocumentID: "doc_curie",
		Chunks: []*core.Chunk{
			{DocumentID: "doc_curie", ChunkIndex: 0, Content: "Marie Curie discovered radium.", Metadata: core.Metadata{"file_name": "curie.txt"}},
			{DocumentID: "doc_curie", ChunkIndex: 1, Content: "Radium glows.", Metadata: core.Metadata{"file_name": "radium.txt"}},
		},
		Entities: []core.Entity{
			{Name: "Marie Curie", Type: "person"},
			{Name: "Radium", Type: "substance"},
		},
		Relationships: []core.Relationship{
			{Source: "Marie Curie", Target: "Radium", Type: "DISCOVERED"},
		},
		Mentions: map[int][]string{
			0: {"Marie Curie", "Radium"},
			1: {"Radium"},
		},
	})
	require.NoError(t, err)
	return graph
}

func translatorReturning(query string, err error) *aimock.MockQueryTranslator {
	translator := aimock.NewMockQueryTranslator()
	translator.TranslateQueryFunc = func(context.Context, string, core.QueryDialect) (string, error) {
		return query, err
	}
	return translator
}

func TestNewGraphRetriever_Validation(t *testing.T) {
	graph := newGraphFixture(t)

	_, err := NewGraphRetriever(nil, graph)
	assert.ErrorIs(t, err, ErrTranslatorRequired)

	_, err = NewGraphRetriever(aimock.NewMockQueryTranslator(), nil)
	assert.ErrorIs(t, err, ErrGraphStoreRequired)
}

func TestGraphRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the store dialect", func(t *testing.T) {
		graph := newGraphFixture(t)
		var gotDialect core.QueryDialect
		translator := aimock.NewMockQueryTranslator()
		translator.TranslateQueryFunc = func(_ context.Context, _ string, dialect core.QueryDialect) (string, error) {
			gotDialect = dialect
			return `{"entities":["radium"]}`, nil
		}
		r, err := NewGraphRetriever(translator, graph)
		require.NoError(t, err)

		list, err := r.Retrieve(ctx, "What glows?", 10, nil)
		require.NoError(t, err)

		assert.Equal(t, core.DialectEntityPattern, gotDialect)
		assert.Equal(t, core.SourceGraph, list.Source)
		assert.Equal(t, []string{"doc_curie#0", "doc_curie#1"}, keys(list))
		assert.Equal(t, 1.0, list.Items[0].NativeScore)
		assert.Equal(t, core.SourceGraph, list.Items[1].Source)
	})

	t.Run("limit and filters", func(t *testing.T) {
		graph := newGraphFixture(t)
		r, _ := NewGraphRetriever(translatorReturning(`{"entities":["radium"]}`, nil), graph)

		list, err := r.Retrieve(ctx, "radium", 1, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_curie#0"}, keys(list))

		list, err = r.Retrieve(ctx, "radium", 10, map[string]string{"file_name": "radium.txt"})
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_curie#1"}, keys(list))
	})

	t.Run("default mock translation", func(t *testing.T) {
		graph := newGraphFixture(t)
		r, _ := NewGraphRetriever(aimock.NewMockQueryTranslator(), graph)

		list, err := r.Retrieve(ctx, "Tell me about radium", 10, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, list.Items)
	})
}

func TestGraphRetriever_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("translator produced garbage", func(t *testing.T) {
		r, _ := NewGraphRetriever(translatorReturning("", ai.ErrMalformedOutput), newGraphFixture(t))
		_, err := r.Retrieve(ctx, "radium", 10, nil)
		requireCause(t, err, core.SourceGraph, core.CauseMalformedResponse)
	})

	t.Run("store rejected query", func(t *testing.T) {
		r, _ := NewGraphRetriever(translatorReturning("MATCH (n) RETURN n", nil), newGraphFixture(t))
		_, err := r.Retrieve(ctx, "radium", 10, nil)
		requireCause(t, err, core.SourceGraph, core.CauseMalformedResponse)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("translator unreachable", func(t *testing.T) {
		r, _ := NewGraphRetriever(translatorReturning("", errors.New("dial tcp: refused")), newGraphFixture(t))
		_, err := r.Retrieve(ctx, "radium", 10, nil)
		requireCause(t, err, core.SourceGraph, core.CauseBackendUnavailable)
	})

	t.Run("deadline", func(t *testing.T) {
		translator := aimock.NewMockQueryTranslator()
		translator.TranslateQueryFunc = func(ctx context.Context, _ string, _ core.QueryDialect) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		r, _ := NewGraphRetriever(translator, newGraphFixture(t))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Retrieve(cctx, "radium", 10, nil)
		requireCause(t, err, core.SourceGraph, core.CauseTimeout)
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, Classify(ctx, core.SourceGraph, nil))

	existing := core.NewRetrievalError(core.SourceSemantic, core.CauseMalformedResponse, nil)
	assert.Same(t, existing, Classify(ctx, core.SourceGraph, existing))

	tests := []struct {
		err   error
		cause core.FailureCause
	}{
		{context.Canceled, core.CauseTimeout},
		{ErrMalformedResponse, core.CauseMalformedResponse},
		{storage.ErrSerializationFailed, core.CauseMalformedResponse},
		{storage.ErrStorageClosed, core.CauseBackendUnavailable},
		{errors.New("boom"), core.CauseBackendUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.cause, Classify(ctx, core.SourceGraph, tt.err).Cause)
		})
	}
}
