package mock

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/poiesic/vectra/core"
)

// MockQueryTranslator is a test double for ai.QueryTranslator.
type MockQueryTranslator struct {
	// TranslateQueryFunc is called by TranslateQuery if set.
	TranslateQueryFunc func(ctx context.Context, text string, dialect core.QueryDialect) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockQueryTranslator creates a mock translator with default behavior.
func NewMockQueryTranslator() *MockQueryTranslator {
	return &MockQueryTranslator{}
}

// TranslateQuery returns a keyword query for the dialect.
// Default behavior: every word of four or more letters becomes an entity
// in an entity pattern with one hop; Cypher requests get a fixed MENTIONS query.
func (m *MockQueryTranslator) TranslateQuery(ctx context.Context, text string, dialect core.QueryDialect) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.TranslateQueryFunc != nil {
		return m.TranslateQueryFunc(ctx, text, dialect)
	}

	words := Keywords(text)
	if dialect == core.DialectCypher {
		return "MATCH (c:Chunk)-[:MENTIONS]->(e:Entity) WHERE e.key IN $keywords RETURN c LIMIT $limit", nil
	}
	data, err := json.Marshal(core.EntityPattern{Entities: words, Hops: 1})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CallCount returns the number of times TranslateQuery was called.
func (m *MockQueryTranslator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockQueryTranslator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.TranslateQueryFunc = nil
}

// Keywords returns the lower-cased words of text with four or more letters.
func Keywords(text string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len([]rune(word)) >= 4 {
			words = append(words, word)
		}
	}
	return words
}
