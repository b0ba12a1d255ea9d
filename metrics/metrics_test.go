package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/orchestrator"
	"github.com/poiesic/vectra/retrieval/mock"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrRegistererRequired)

	reg := prometheus.NewRegistry()
	_, err = New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err, "registering twice on one registry should fail")
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result *core.HybridQueryResult
		err    error
		want   string
	}{
		{"success", &core.HybridQueryResult{}, nil, OutcomeSuccess},
		{"partial", &core.HybridQueryResult{Partial: true}, nil, OutcomePartial},
		{"validation", nil, fmt.Errorf("%w: %w", core.ErrInvalidQueryRequest, core.ErrEmptyQuery), OutcomeValidationError},
		{"fusion", nil, fmt.Errorf("%w: %w", core.ErrFusion, core.ErrInvalidRRFK), OutcomeFusionError},
		{"retrieval", nil, core.NewRetrievalError(core.SourceGraph, core.CauseTimeout, context.DeadlineExceeded), OutcomeRetrievalError},
		{"other", nil, errors.New("boom"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.result, tt.err))
		})
	}
}

func TestMonitor_Hooks(t *testing.T) {
	m := newTestMonitor(t)

	m.AdapterFinished(core.SourceSemantic, 4, 20*time.Millisecond, nil)
	m.AdapterFinished(core.SourceGraph, 0, 5*time.Millisecond,
		core.NewRetrievalError(core.SourceGraph, core.CauseMalformedResponse, nil))
	m.AdapterFinished(core.SourceGraph, 0, time.Millisecond, errors.New("raw"))
	m.AfterFusion(1, 4)
	m.Finish(core.QueryRequest{Mode: core.QueryModeHybrid}, &core.HybridQueryResult{Partial: true}, nil, 30*time.Millisecond)
	m.Finish(core.QueryRequest{Mode: "keyword"}, nil, errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFailures.WithLabelValues("graph", "malformed_response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFailures.WithLabelValues("graph", "backend_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("hybrid", OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unknown", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partials))
	assert.Equal(t, 1, testutil.CollectAndCount(m.adapterResults))
	assert.Equal(t, 2, testutil.CollectAndCount(m.adapterLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fusionLists))
}

func TestMonitor_WithOrchestrator(t *testing.T) {
	m := newTestMonitor(t)

	semantic := mock.NewMockRetriever(core.SourceSemantic, mock.Item("d1", "one"), mock.Item("d2", "two"))
	graph := mock.NewMockRetriever(core.SourceGraph).Fail(core.CauseBackendUnavailable, errors.New("neo4j down"))

	o, err := orchestrator.New(semantic, graph, orchestrator.DefaultConfig(), orchestrator.WithMonitor(m))
	require.NoError(t, err)

	result, err := o.Execute(context.Background(), core.QueryRequest{Text: "radium", Mode: core.QueryModeHybrid, Limit: 5})
	require.NoError(t, err)
	require.True(t, result.Partial)

	_, err = o.Execute(context.Background(), core.QueryRequest{Text: " ", Mode: core.QueryModeVector, Limit: 5})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("hybrid", OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("vector", OutcomeValidationError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFailures.WithLabelValues("graph", "backend_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partials))
}

func TestMonitor_SuccessfulQueries(t *testing.T) {
	m := newTestMonitor(t)

	semantic := mock.NewMockRetriever(core.SourceSemantic, mock.Item("d1", "one"))
	graph := mock.NewMockRetriever(core.SourceGraph, mock.Item("d2", "two"))
	o, err := orchestrator.New(semantic, graph, orchestrator.DefaultConfig(), orchestrator.WithMonitor(m))
	require.NoError(t, err)

	for _, mode := range []core.QueryMode{core.QueryModeVector, core.QueryModeGraph, core.QueryModeHybrid} {
		result, err := o.Execute(context.Background(), core.QueryRequest{Text: "radium", Mode: mode, Limit: 5})
		require.NoError(t, err, "mode %s", mode)
		require.False(t, result.Partial)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(string(mode), OutcomeSuccess)))
	}

	assert.Equal(t, 0, testutil.CollectAndCount(m.adapterFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.adapterResults))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.partials))
}
