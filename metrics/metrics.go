// Package metrics exports query execution metrics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/orchestrator"
)

const namespace = "vectra"

// Request outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomePartial         = "partial"
	OutcomeValidationError = "validation_error"
	OutcomeRetrievalError  = "retrieval_error"
	OutcomeFusionError     = "fusion_error"
	OutcomeError           = "error"
)

// ErrRegistererRequired is returned when no registerer is provided.
var ErrRegistererRequired = errors.New("prometheus registerer required")

// Monitor records orchestrator runs as Prometheus metrics.
// It is safe for concurrent use.
type Monitor struct {
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	adapterLatency  *prometheus.HistogramVec
	adapterResults  *prometheus.HistogramVec
	adapterFailures *prometheus.CounterVec
	fusionLists     prometheus.Histogram
	fusedResults    prometheus.Histogram
	partials        prometheus.Counter
}

var _ orchestrator.Monitor = (*Monitor)(nil)

// New creates a monitor and registers its collectors on reg.
func New(reg prometheus.Registerer) (*Monitor, error) {
	if reg == nil {
		return nil, ErrRegistererRequired
	}

	m := &Monitor{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Hybrid queries executed, by mode and outcome",
		}, []string{"mode", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_ms",
			Help:      "End-to-end query latency in milliseconds",
			Buckets:   []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200, 2500, 5000},
		}, []string{"mode"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retriever_latency_ms",
			Help:      "Latency of retriever calls in milliseconds",
			Buckets:   []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200, 2500, 5000},
		}, []string{"source"}),
		adapterResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retriever_results",
			Help:      "Number of results returned by a retriever",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"source"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retriever_failures_total",
			Help:      "Retriever failures, by source and cause",
		}, []string{"source", "cause"}),
		fusionLists: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fusion_input_lists",
			Help:      "Number of ranked lists fused per query",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		fusedResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fusion_results",
			Help:      "Number of results after fusion and truncation",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		partials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_results_total",
			Help:      "Queries answered with a partial result",
		}),
	}

	collectors := []prometheus.Collector{
		m.requests, m.requestLatency, m.adapterLatency, m.adapterResults,
		m.adapterFailures, m.fusionLists, m.fusedResults, m.partials,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Monitor) Start(core.QueryRequest) {}

func (m *Monitor) StateChanged(from, to orchestrator.State) {}

func (m *Monitor) AdapterFinished(source core.SourceTag, results int, elapsed time.Duration, err error) {
	m.adapterLatency.WithLabelValues(string(source)).Observe(milliseconds(elapsed))
	if err != nil {
		cause := core.CauseBackendUnavailable
		if re, ok := core.AsRetrievalError(err); ok {
			cause = re.Cause
		}
		m.adapterFailures.WithLabelValues(string(source), cause.String()).Inc()
		return
	}
	m.adapterResults.WithLabelValues(string(source)).Observe(float64(results))
}

func (m *Monitor) AfterFusion(inputLists, results int) {
	m.fusionLists.Observe(float64(inputLists))
	m.fusedResults.Observe(float64(results))
}

func (m *Monitor) Finish(req core.QueryRequest, result *core.HybridQueryResult, err error, elapsed time.Duration) {
	mode := string(req.Mode)
	if !isKnownMode(req.Mode) {
		mode = "unknown"
	}
	outcome := Outcome(result, err)
	m.requests.WithLabelValues(mode, outcome).Inc()
	m.requestLatency.WithLabelValues(mode).Observe(milliseconds(elapsed))
	if outcome == OutcomePartial {
		m.partials.Inc()
	}
}

// Outcome classifies the result of one query.
func Outcome(result *core.HybridQueryResult, err error) string {
	switch {
	case err == nil && result != nil && result.Partial:
		return OutcomePartial
	case err == nil:
		return OutcomeSuccess
	case core.IsValidationError(err):
		return OutcomeValidationError
	case core.IsFusionError(err):
		return OutcomeFusionError
	}
	if _, ok := core.AsRetrievalError(err); ok {
		return OutcomeRetrievalError
	}
	return OutcomeError
}

func isKnownMode(mode core.QueryMode) bool {
	switch mode {
	case core.QueryModeVector, core.QueryModeGraph, core.QueryModeHybrid:
		return true
	}
	return false
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
