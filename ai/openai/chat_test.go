package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays canned answers in order and records the prompts it saw.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	jsonMode  []bool
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	f.jsonMode = append(f.jsonMode, opts.JSONMode)

	last := messages[len(messages)-1]
	if text, ok := last.Parts[0].(llms.TextContent); ok {
		f.prompts = append(f.prompts, text.Text)
	}

	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	answer := f.responses[0]
	f.responses = f.responses[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "MATCH (c) RETURN c", "MATCH (c) RETURN c"},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"cypher fence", "```cypher\nMATCH (c) RETURN c\n```", "MATCH (c) RETURN c"},
		{"bare fence", "```\nMATCH (c) RETURN c\n```", "MATCH (c) RETURN c"},
		{"single line fence", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.in))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "éé", truncateRunes("ééé", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}

func TestRepairJSON(t *testing.T) {
	t.Run("missing key quote", func(t *testing.T) {
		broken := `{"entities": [{"name": "Radium", type": "substance"}]}`

		var out ai.ExtractedGraph
		require.NoError(t, json.Unmarshal([]byte(repairJSON(broken)), &out))
		require.Len(t, out.Entities, 1)
		assert.Equal(t, "substance", out.Entities[0].Type)
	})

	t.Run("trailing commas", func(t *testing.T) {
		broken := "{\"entities\": [{\"name\": \"Radium\", \"type\": \"substance\",},\n],}"

		var out ai.ExtractedGraph
		require.NoError(t, json.Unmarshal([]byte(repairJSON(broken)), &out))
		require.Len(t, out.Entities, 1)
		assert.Equal(t, "Radium", out.Entities[0].Name)
	})

	t.Run("string literals untouched", func(t *testing.T) {
		valid := `{"name": "a, type\": ,}", "type": "b"}`
		assert.Equal(t, valid, repairJSON(valid))
	})
}

func TestQueryTranslator_Cypher(t *testing.T) {
	model := &fakeModel{responses: []string{"```cypher\nMATCH (c:Chunk) RETURN c LIMIT $limit;\n```"}}
	translator := &QueryTranslator{client: model, logger: discardLogger()}

	query, err := translator.TranslateQuery(context.Background(), "Who discovered radium?", core.DialectCypher)

	require.NoError(t, err)
	assert.Equal(t, "MATCH (c:Chunk) RETURN c LIMIT $limit", query)
	assert.Equal(t, []string{"Who discovered radium?"}, model.prompts)
	assert.Equal(t, []bool{false}, model.jsonMode)
}

func TestQueryTranslator_CypherEmpty(t *testing.T) {
	translator := &QueryTranslator{client: &fakeModel{responses: []string{"   "}}, logger: discardLogger()}

	_, err := translator.TranslateQuery(context.Background(), "radium", core.DialectCypher)
	assert.ErrorIs(t, err, ai.ErrMalformedOutput)
}

func TestQueryTranslator_EntityPattern(t *testing.T) {
	t.Run("normalizes the pattern", func(t *testing.T) {
		model := &fakeModel{responses: []string{`{"entities":["Marie Curie"," "],"relationships":["discovered"],"hops":1}`}}
		translator := &QueryTranslator{client: model, logger: discardLogger()}

		query, err := translator.TranslateQuery(context.Background(), "What did Marie Curie discover?", core.DialectEntityPattern)
		require.NoError(t, err)

		var pattern core.EntityPattern
		require.NoError(t, json.Unmarshal([]byte(query), &pattern))
		assert.Equal(t, []string{"Marie Curie"}, pattern.Entities)
		assert.Equal(t, []string{"DISCOVERED"}, pattern.Relationships)
		assert.Equal(t, 1, pattern.Hops)
		assert.Equal(t, []bool{true}, model.jsonMode)
	})

	t.Run("retries malformed answers", func(t *testing.T) {
		model := &fakeModel{responses: []string{"not json", `{"entities":["radium"]}`}}
		translator := &QueryTranslator{client: model, logger: discardLogger()}

		query, err := translator.TranslateQuery(context.Background(), "radium", core.DialectEntityPattern)
		require.NoError(t, err)
		assert.Equal(t, `{"entities":["radium"]}`, query)
		assert.Len(t, model.prompts, 2)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		model := &fakeModel{responses: []string{"x", "y", "z", `{"entities":["radium"]}`}}
		translator := &QueryTranslator{client: model, logger: discardLogger()}

		_, err := translator.TranslateQuery(context.Background(), "radium", core.DialectEntityPattern)
		assert.ErrorIs(t, err, ai.ErrMalformedOutput)
		assert.Len(t, model.prompts, maxAttempts)
	})

	t.Run("no entities", func(t *testing.T) {
		translator := &QueryTranslator{client: &fakeModel{responses: []string{`{"entities":[]}`}}, logger: discardLogger()}

		_, err := translator.TranslateQuery(context.Background(), "hello", core.DialectEntityPattern)
		assert.ErrorIs(t, err, ai.ErrMalformedOutput)
	})
}

func TestQueryTranslator_Errors(t *testing.T) {
	t.Run("unsupported dialect", func(t *testing.T) {
		model := &fakeModel{}
		translator := &QueryTranslator{client: model, logger: discardLogger()}

		_, err := translator.TranslateQuery(context.Background(), "radium", core.QueryDialect("sparql"))
		assert.ErrorIs(t, err, ai.ErrUnsupportedDialect)
		assert.Empty(t, model.prompts)
	})

	t.Run("transport error is returned as is", func(t *testing.T) {
		boom := errors.New("connection refused")
		translator := &QueryTranslator{client: &fakeModel{err: boom}, logger: discardLogger()}

		_, err := translator.TranslateQuery(context.Background(), "radium", core.DialectEntityPattern)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ai.ErrMalformedOutput)
	})
}

func TestEntityExtractor_ExtractGraph(t *testing.T) {
	t.Run("parses and cleans", func(t *testing.T) {
		model := &fakeModel{responses: []string{"```json\n" + `{
			"entities": [{"name": "Marie Curie", "type": "Person"}, {"name": "Radium", "type": "substance"}],
			"relationships": [{"source": "Marie Curie", "target": "Radium", "type": "discovered"}]
		}` + "\n```"}}
		extractor := &EntityExtractor{client: model, maxChars: 4000, logger: discardLogger()}

		graph, err := extractor.ExtractGraph(context.Background(), "Marie Curie discovered radium.")
		require.NoError(t, err)

		require.Len(t, graph.Entities, 2)
		assert.Equal(t, "person", graph.Entities[0].Type)
		require.Len(t, graph.Relationships, 1)
		assert.Equal(t, "DISCOVERED", graph.Relationships[0].Type)
	})

	t.Run("truncates input", func(t *testing.T) {
		model := &fakeModel{responses: []string{`{"entities": [], "relationships": []}`}}
		extractor := &EntityExtractor{client: model, maxChars: 10, logger: discardLogger()}

		graph, err := extractor.ExtractGraph(context.Background(), strings.Repeat("a", 50))
		require.NoError(t, err)
		assert.Empty(t, graph.Entities)
		require.Len(t, model.prompts, 1)
		assert.Equal(t, strings.Repeat("a", 10), model.prompts[0])
	})

	t.Run("no choices is malformed", func(t *testing.T) {
		model := &fakeModel{}
		extractor := &EntityExtractor{client: model, maxChars: 100, logger: discardLogger()}

		_, err := extractor.ExtractGraph(context.Background(), "text")
		assert.ErrorIs(t, err, ai.ErrMalformedOutput)
		assert.Len(t, model.prompts, maxAttempts)
	})
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.DefaultConfig())
	require.NoError(t, err)
	defer provider.Close()

	assert.NotNil(t, provider.Embedder())
	assert.NotNil(t, provider.QueryTranslator())
	assert.NotNil(t, provider.EntityExtractor())
}

func TestCheckVectors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		want    int
		wantErr bool
	}{
		{"matching", [][]float32{{1, 0}, {0, 1}}, 2, false},
		{"too few", [][]float32{{1, 0}}, 2, true},
		{"empty vector", [][]float32{{1, 0}, {}}, 2, true},
		{"ragged", [][]float32{{1, 0}, {1, 0, 0}}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkVectors(tt.vectors, tt.want)
			if tt.wantErr {
				assert.ErrorIs(t, err, ai.ErrMalformedOutput)
				return
			}
			assert.NoError(t, err)
		})
	}
}
