package mock

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/vectra/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("deterministic unit vectors", func(t *testing.T) {
		m := NewMockEmbedder()

		v1, err := m.EmbedText(ctx, "radium")
		require.NoError(t, err)
		v2, _ := m.EmbedText(ctx, "radium")
		v3, _ := m.EmbedText(ctx, "polonium")

		assert.Len(t, v1, DefaultDimensions)
		assert.Equal(t, v1, v2)
		assert.NotEqual(t, v1, v3)

		var sum float64
		for _, v := range v1 {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
		assert.Equal(t, 3, m.CallCount())
	})

	t.Run("batch matches single", func(t *testing.T) {
		m := &MockEmbedder{Dimensions: 8}

		single, _ := m.EmbedText(ctx, "a")
		batch, err := m.EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, single, batch[0])
		assert.Len(t, batch[1], 8)
	})

	t.Run("custom func and reset", func(t *testing.T) {
		m := NewMockEmbedder()
		boom := errors.New("boom")
		m.EmbedTextFunc = func(context.Context, string) ([]float32, error) { return nil, boom }

		_, err := m.EmbedText(ctx, "x")
		assert.ErrorIs(t, err, boom)

		m.Reset()
		assert.Equal(t, 0, m.CallCount())
		_, err = m.EmbedText(ctx, "x")
		assert.NoError(t, err)
	})
}

func TestMockQueryTranslator(t *testing.T) {
	m := NewMockQueryTranslator()

	query, err := m.TranslateQuery(context.Background(), "Who discovered radium?", core.DialectEntityPattern)
	require.NoError(t, err)

	var pattern core.EntityPattern
	require.NoError(t, json.Unmarshal([]byte(query), &pattern))
	assert.Equal(t, []string{"discovered", "radium"}, pattern.Entities)
	assert.Equal(t, 1, pattern.Hops)

	cypher, err := m.TranslateQuery(context.Background(), "radium", core.DialectCypher)
	require.NoError(t, err)
	assert.Contains(t, cypher, "$limit")
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEntityExtractor(t *testing.T) {
	m := NewMockEntityExtractor()

	graph, err := m.ExtractGraph(context.Background(), "Marie Curie worked in Paris. Pierre Curie did too.")
	require.NoError(t, err)

	names := make([]string, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Marie Curie", "Paris", "Pierre Curie"}, names)
	require.Len(t, graph.Relationships, 2)
	assert.Equal(t, "Marie Curie", graph.Relationships[0].Source)
	assert.Equal(t, "Paris", graph.Relationships[0].Target)
	assert.Equal(t, "RELATED_TO", graph.Relationships[0].Type)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp := p.(*MockProvider)

	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	assert.Same(t, mp.GetMockTranslator(), p.QueryTranslator())
	assert.Same(t, mp.GetMockExtractor(), p.EntityExtractor())
	assert.NoError(t, p.Close())
}
