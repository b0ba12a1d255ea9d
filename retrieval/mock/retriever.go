// Package mock provides a test double for retrieval.Retriever.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/vectra/core"
)

// Call records the arguments of one Retrieve invocation.
type Call struct {
	Query   string
	Limit   int
	Filters map[string]string
}

// MockRetriever is a test double for retrieval.Retriever.
// By default it returns Items truncated to the requested limit.
type MockRetriever struct {
	// Tag is returned by Source.
	Tag core.SourceTag

	// Items is the canned ranked list.
	Items []core.RetrievalItem

	// Delay makes every call wait before answering. A context that ends
	// first yields a Timeout RetrievalError.
	Delay time.Duration

	// RetrieveFunc is called by Retrieve if set, after Delay.
	RetrieveFunc func(ctx context.Context, query string, limit int, filters map[string]string) (core.RankedList, error)

	callCount atomic.Int64
	mu        sync.Mutex
	calls     []Call
}

// NewMockRetriever creates a mock answering with items tagged source.
func NewMockRetriever(source core.SourceTag, items ...core.RetrievalItem) *MockRetriever {
	for i := range items {
		items[i].Source = source
	}
	return &MockRetriever{Tag: source, Items: items}
}

// Source returns Tag.
func (m *MockRetriever) Source() core.SourceTag {
	return m.Tag
}

// Retrieve returns the canned answer.
func (m *MockRetriever) Retrieve(ctx context.Context, query string, limit int, filters map[string]string) (core.RankedList, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.calls = append(m.calls, Call{Query: query, Limit: limit, Filters: filters})
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return core.RankedList{}, core.NewRetrievalError(m.Tag, core.CauseTimeout, ctx.Err())
		}
	}

	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, query, limit, filters)
	}

	items := m.Items
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	return core.RankedList{Source: m.Tag, Items: append([]core.RetrievalItem(nil), items...)}, nil
}

// Fail makes every call fail with cause.
func (m *MockRetriever) Fail(cause core.FailureCause, err error) *MockRetriever {
	m.RetrieveFunc = func(context.Context, string, int, map[string]string) (core.RankedList, error) {
		return core.RankedList{}, core.NewRetrievalError(m.Tag, cause, err)
	}
	return m
}

// CallCount returns the number of times Retrieve was called.
func (m *MockRetriever) CallCount() int {
	return int(m.callCount.Load())
}

// Calls returns the recorded invocations in order.
func (m *MockRetriever) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Reset clears the call history and custom functions.
func (m *MockRetriever) Reset() {
	m.callCount.Store(0)
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
	m.RetrieveFunc = nil
	m.Delay = 0
}

// Item builds a retrieval item whose identity key is key.
func Item(key, content string) core.RetrievalItem {
	return core.RetrievalItem{
		Content:     content,
		IdentityKey: key,
		Metadata:    core.Metadata{"id": key},
	}
}
