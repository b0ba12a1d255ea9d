package orchestrator

import (
	"time"

	"github.com/poiesic/vectra/core"
)

// Monitor provides hooks to observe query execution.
// All hooks for one run are called from the goroutine running Execute.
// A Monitor shared between orchestrators or runs must be safe for concurrent use.
type Monitor interface {
	Start(req core.QueryRequest)
	StateChanged(from, to State)
	AdapterFinished(source core.SourceTag, results int, elapsed time.Duration, err error)
	AfterFusion(inputLists, results int)
	Finish(req core.QueryRequest, result *core.HybridQueryResult, err error, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) Start(core.QueryRequest)                                                 {}
func (noopMonitor) StateChanged(State, State)                                               {}
func (noopMonitor) AdapterFinished(core.SourceTag, int, time.Duration, error)               {}
func (noopMonitor) AfterFusion(int, int)                                                    {}
func (noopMonitor) Finish(core.QueryRequest, *core.HybridQueryResult, error, time.Duration) {}

// multiMonitor fans hooks out to several monitors in order.
type multiMonitor []Monitor

var _ Monitor = multiMonitor(nil)

func (m multiMonitor) Start(req core.QueryRequest) {
	for _, mon := range m {
		mon.Start(req)
	}
}

func (m multiMonitor) StateChanged(from, to State) {
	for _, mon := range m {
		mon.StateChanged(from, to)
	}
}

func (m multiMonitor) AdapterFinished(source core.SourceTag, results int, elapsed time.Duration, err error) {
	for _, mon := range m {
		mon.AdapterFinished(source, results, elapsed, err)
	}
}

func (m multiMonitor) AfterFusion(inputLists, results int) {
	for _, mon := range m {
		mon.AfterFusion(inputLists, results)
	}
}

func (m multiMonitor) Finish(req core.QueryRequest, result *core.HybridQueryResult, err error, elapsed time.Duration) {
	for _, mon := range m {
		mon.Finish(req, result, err, elapsed)
	}
}
