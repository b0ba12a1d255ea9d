package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vectra/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("canned items truncated to limit", func(t *testing.T) {
		m := NewMockRetriever(core.SourceGraph, Item("d1", "one"), Item("d2", "two"), Item("d3", "three"))

		list, err := m.Retrieve(ctx, "q", 2, map[string]string{"a": "b"})
		require.NoError(t, err)

		assert.Equal(t, core.SourceGraph, list.Source)
		require.Len(t, list.Items, 2)
		assert.Equal(t, core.SourceGraph, list.Items[0].Source)
		assert.Equal(t, 1, m.CallCount())
		assert.Equal(t, []Call{{Query: "q", Limit: 2, Filters: map[string]string{"a": "b"}}}, m.Calls())
	})

	t.Run("fail", func(t *testing.T) {
		m := NewMockRetriever(core.SourceSemantic).Fail(core.CauseBackendUnavailable, errors.New("down"))

		_, err := m.Retrieve(ctx, "q", 10, nil)
		re, ok := core.AsRetrievalError(err)
		require.True(t, ok)
		assert.Equal(t, core.CauseBackendUnavailable, re.Cause)
	})

	t.Run("delay honours deadline", func(t *testing.T) {
		m := NewMockRetriever(core.SourceSemantic, Item("d1", "one"))
		m.Delay = time.Second

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := m.Retrieve(cctx, "q", 10, nil)
		assert.Less(t, time.Since(start), 500*time.Millisecond)

		re, ok := core.AsRetrievalError(err)
		require.True(t, ok)
		assert.Equal(t, core.CauseTimeout, re.Cause)
	})

	t.Run("reset", func(t *testing.T) {
		m := NewMockRetriever(core.SourceSemantic).Fail(core.CauseTimeout, nil)
		_, _ = m.Retrieve(ctx, "q", 1, nil)

		m.Reset()
		assert.Equal(t, 0, m.CallCount())
		assert.Empty(t, m.Calls())
		_, err := m.Retrieve(ctx, "q", 1, nil)
		assert.NoError(t, err)
	})
}
