package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/fusion"
	"github.com/poiesic/vectra/retrieval"
)

// Defaults for Config.
const (
	DefaultRRFK           = fusion.DefaultK
	DefaultResultLimit    = 10
	DefaultAdapterTimeout = 5 * time.Second
)

// Config carries the deployment settings the orchestrator consumes.
type Config struct {
	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int
	// DefaultResultLimit applies to requests that leave Limit at zero.
	DefaultResultLimit int
	// AdapterTimeout is the shared deadline for all retrievers of one request.
	AdapterTimeout time.Duration
}

// DefaultConfig returns k=60, 10 results and a five second deadline.
func DefaultConfig() Config {
	return Config{
		RRFK:               DefaultRRFK,
		DefaultResultLimit: DefaultResultLimit,
		AdapterTimeout:     DefaultAdapterTimeout,
	}
}

// Validate checks the limit and timeout. RRFK is checked by the fuser.
func (c Config) Validate() error {
	if c.DefaultResultLimit < core.MinResultLimit || c.DefaultResultLimit > core.MaxResultLimit {
		return fmt.Errorf("%w: default result limit %d outside %d..%d",
			ErrInvalidConfig, c.DefaultResultLimit, core.MinResultLimit, core.MaxResultLimit)
	}
	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("%w: adapter timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Orchestrator runs hybrid queries. It holds no per-request state and is
// safe for concurrent use.
type Orchestrator struct {
	retrievers map[core.SourceTag]retrieval.Retriever
	fuser      *fusion.Fuser
	config     Config
	monitor    Monitor
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMonitor observes every run. Default is a no-op monitor.
func WithMonitor(monitor Monitor) Option {
	return func(o *Orchestrator) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		o.monitor = monitor
		return nil
	}
}

// New creates an orchestrator. Either retriever may be nil, in which case
// requests that need it fail with CauseBackendUnavailable.
func New(semantic, graph retrieval.Retriever, config Config, opts ...Option) (*Orchestrator, error) {
	if semantic == nil && graph == nil {
		return nil, ErrNoRetrievers
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	fuser, err := fusion.NewFuser(config.RRFK)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		retrievers: make(map[core.SourceTag]retrieval.Retriever, 2),
		fuser:      fuser,
		config:     config,
		monitor:    noopMonitor{},
		logger:     slog.Default(),
	}
	if semantic != nil {
		o.retrievers[core.SourceSemantic] = semantic
	}
	if graph != nil {
		o.retrievers[core.SourceGraph] = graph
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

// Config returns the settings the orchestrator was built with.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Execute runs req and returns the fused result.
//
// Errors are a validation error (core.IsValidationError) before any
// retriever is called, a *core.RetrievalError when no ranked list survives,
// or a fusion error (core.IsFusionError).
func (o *Orchestrator) Execute(ctx context.Context, req core.QueryRequest) (*core.HybridQueryResult, error) {
	return o.ExecuteWithMonitor(ctx, req, nil)
}

// ExecuteWithMonitor is Execute with an extra monitor for this run only.
func (o *Orchestrator) ExecuteWithMonitor(ctx context.Context, req core.QueryRequest, monitor Monitor) (*core.HybridQueryResult, error) {
	r := &run{monitor: o.monitor, state: StateRouting}
	if monitor != nil {
		r.monitor = multiMonitor{o.monitor, monitor}
	}
	start := time.Now()
	r.monitor.Start(req)

	result, err := o.execute(ctx, req, r, start)
	elapsed := time.Since(start)
	if err != nil {
		r.to(StateFailed)
		o.logger.Warn("query failed", "mode", req.Mode, "elapsed", elapsed, "err", err)
	}
	r.monitor.Finish(req, result, err, elapsed)
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, req core.QueryRequest, r *run, start time.Time) (*core.HybridQueryResult, error) {
	// Routing
	if req.Limit == 0 {
		req.Limit = o.config.DefaultResultLimit
	}
	if err := core.ValidateQueryRequest(&req); err != nil {
		return nil, err
	}
	sources := route(req.Mode)

	r.to(StateDispatching)
	outcomes := o.dispatch(ctx, req, sources)

	var lists []core.RankedList
	var failures []*core.RetrievalError
	for _, out := range outcomes {
		var adapterErr error
		if out.err != nil {
			adapterErr = out.err
		}
		r.monitor.AdapterFinished(out.source, len(out.list.Items), out.elapsed, adapterErr)
		if out.err != nil {
			o.logger.Warn("retriever failed", "source", out.source, "cause", out.err.Cause, "err", out.err.Err)
			failures = append(failures, out.err)
			continue
		}
		lists = append(lists, out.list)
	}
	if len(lists) == 0 {
		return nil, mostSpecific(failures)
	}

	r.to(StateFusing)
	fused, err := o.fuser.Fuse(lists, req.Limit)
	if err != nil {
		return nil, err
	}
	r.monitor.AfterFusion(len(lists), len(fused))

	r.to(StateFormatting)
	result := &core.HybridQueryResult{
		Query:        req.Text,
		Mode:         req.Mode,
		Items:        fused,
		TotalResults: len(fused),
		Partial:      len(failures) > 0,
	}
	for _, f := range failures {
		result.Failures = append(result.Failures, core.SourceFailure{
			Source:  f.Source,
			Cause:   f.Cause.String(),
			Message: f.Error(),
		})
	}
	result.ExecutionTimeMs = milliseconds(time.Since(start))

	r.to(StateDone)
	o.logger.Debug("query complete",
		"mode", req.Mode,
		"results", result.TotalResults,
		"partial", result.Partial,
		"elapsed_ms", result.ExecutionTimeMs)
	return result, nil
}

// route maps a validated mode to the retrievers it selects, semantic first.
func route(mode core.QueryMode) []core.SourceTag {
	switch mode {
	case core.QueryModeVector:
		return []core.SourceTag{core.SourceSemantic}
	case core.QueryModeGraph:
		return []core.SourceTag{core.SourceGraph}
	default:
		return []core.SourceTag{core.SourceSemantic, core.SourceGraph}
	}
}

type outcome struct {
	source  core.SourceTag
	list    core.RankedList
	err     *core.RetrievalError
	elapsed time.Duration
}

// dispatch runs every selected retriever concurrently under one deadline and
// waits until each has answered or the deadline has passed. Outcomes are in
// the order of sources.
func (o *Orchestrator) dispatch(ctx context.Context, req core.QueryRequest, sources []core.SourceTag) []outcome {
	ctx, cancel := context.WithTimeout(ctx, o.config.AdapterTimeout)
	defer cancel()

	pending := make([]chan outcome, len(sources))
	for i, source := range sources {
		ch := make(chan outcome, 1)
		pending[i] = ch
		go func() {
			ch <- o.invoke(ctx, source, req)
		}()
	}

	outcomes := make([]outcome, len(sources))
	for i, ch := range pending {
		select {
		case out := <-ch:
			outcomes[i] = out
		case <-ctx.Done():
			select {
			case out := <-ch:
				outcomes[i] = out
			default:
				// The retriever ignored cancellation; its answer is dropped.
				outcomes[i] = outcome{
					source:  sources[i],
					err:     core.NewRetrievalError(sources[i], core.CauseTimeout, ctx.Err()),
					elapsed: o.config.AdapterTimeout,
				}
			}
		}
	}
	return outcomes
}

// invoke calls one retriever with its own copy of the filters.
func (o *Orchestrator) invoke(ctx context.Context, source core.SourceTag, req core.QueryRequest) outcome {
	out := outcome{source: source}
	retriever, ok := o.retrievers[source]
	if !ok {
		out.err = core.NewRetrievalError(source, core.CauseBackendUnavailable, ErrRetrieverNotConfigured)
		return out
	}

	filters := maps.Clone(req.Filters)
	start := time.Now()
	var err error
	if recovered := panics.Try(func() {
		out.list, err = retriever.Retrieve(ctx, req.Text, req.Limit, filters)
	}); recovered != nil {
		err = core.NewRetrievalError(source, core.CauseBackendUnavailable, recovered.AsError())
	}
	out.elapsed = time.Since(start)

	if err != nil {
		out.list = core.RankedList{}
		out.err = retrieval.Classify(ctx, source, err)
		return out
	}
	out.list.Source = source
	return out
}

// mostSpecific picks the failure to surface. Earlier failures win ties.
func mostSpecific(failures []*core.RetrievalError) *core.RetrievalError {
	best := failures[0]
	for _, f := range failures[1:] {
		if f.Cause.MoreSpecificThan(best.Cause) {
			best = f
		}
	}
	return best
}

func milliseconds(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}

// run tracks the state of one Execute call.
type run struct {
	state   State
	monitor Monitor
}

func (r *run) to(state State) {
	if !CanTransition(r.state, state) {
		return
	}
	from := r.state
	r.state = state
	r.monitor.StateChanged(from, state)
}
