package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/tmc/langchaingo/llms"
)

// QueryTranslator implements ai.QueryTranslator over an OpenAI-compatible chat model.
type QueryTranslator struct {
	client llms.Model
	logger *slog.Logger
}

func newQueryTranslator(config *ai.Config) (*QueryTranslator, error) {
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return &QueryTranslator{
		client: client,
		logger: slog.Default().With("component", "openai-translator"),
	}, nil
}

// NewQueryTranslator creates a translator using the provided configuration.
func NewQueryTranslator(config *ai.Config) (ai.QueryTranslator, error) {
	return newQueryTranslator(config)
}

// TranslateQuery rewrites text into the requested dialect.
func (t *QueryTranslator) TranslateQuery(ctx context.Context, text string, dialect core.QueryDialect) (string, error) {
	switch dialect {
	case core.DialectCypher:
		return t.translateCypher(ctx, text)
	case core.DialectEntityPattern:
		return t.translateEntityPattern(ctx, text)
	default:
		return "", fmt.Errorf("%w: %q", ai.ErrUnsupportedDialect, dialect)
	}
}

func (t *QueryTranslator) translateCypher(ctx context.Context, text string) (string, error) {
	query, err := generateText(ctx, t.client, cypherPrompt, text)
	if err != nil {
		t.logger.Error("cypher translation failed", "err", err)
		return "", err
	}
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if query == "" {
		return "", fmt.Errorf("%w: empty cypher query", ai.ErrMalformedOutput)
	}
	t.logger.Debug("translated query", "dialect", core.DialectCypher, "query", query)
	return query, nil
}

func (t *QueryTranslator) translateEntityPattern(ctx context.Context, text string) (string, error) {
	var pattern core.EntityPattern
	if err := generateJSON(ctx, t.client, t.logger, buildEntityPatternPrompt(), text, &pattern); err != nil {
		return "", err
	}

	entities := make([]string, 0, len(pattern.Entities))
	for _, e := range pattern.Entities {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		return "", fmt.Errorf("%w: no entities in pattern", ai.ErrMalformedOutput)
	}
	pattern.Entities = entities
	if pattern.Hops < 0 {
		pattern.Hops = 0
	}
	for i, r := range pattern.Relationships {
		pattern.Relationships[i] = ai.NormalizeRelationshipType(r)
	}

	data, err := json.Marshal(pattern)
	if err != nil {
		return "", err
	}
	t.logger.Debug("translated query", "dialect", core.DialectEntityPattern, "query", string(data))
	return string(data), nil
}
