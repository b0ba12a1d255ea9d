package mock

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/vectra/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
type MockEntityExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, uses default capitalized-word extraction.
	ExtractGraphFunc func(ctx context.Context, text string) (*ai.ExtractedGraph, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEntityExtractor creates a mock extractor with default behavior.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractGraph extracts runs of capitalized words as entities.
// Consecutive entities in the text are linked with a RELATED_TO relationship.
func (m *MockEntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.ExtractedGraph, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text)
	}

	graph := &ai.ExtractedGraph{}
	var run []string
	flush := func() {
		if len(run) > 0 {
			graph.Entities = append(graph.Entities, ai.ExtractedEntity{Name: strings.Join(run, " "), Type: "concept"})
			run = nil
		}
	}
	for _, word := range strings.Fields(text) {
		trimmed := strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if trimmed != "" && unicode.IsUpper([]rune(trimmed)[0]) {
			run = append(run, trimmed)
		} else {
			flush()
		}
		// Sentence punctuation ends a run.
		if strings.ContainsAny(word[len(word)-1:], ".,;:!?") {
			flush()
		}
	}
	flush()

	graph = graph.Clean()
	for i := 1; i < len(graph.Entities); i++ {
		graph.Relationships = append(graph.Relationships, ai.ExtractedRelationship{
			Source: graph.Entities[i-1].Name,
			Target: graph.Entities[i].Name,
			Type:   "RELATED_TO",
		})
	}
	return graph, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *MockEntityExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractGraphFunc = nil
}
