// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/vectra/ai"
	"github.com/tmc/langchaingo/llms"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client   llms.Model
	maxChars int
	logger   *slog.Logger
}

// newEntityExtractor is an internal constructor that returns the concrete type.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client:   client,
		maxChars: config.MaxExtractionChars,
		logger:   slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractGraph extracts entities and relationships from the leading
// MaxExtractionChars characters of text.
func (e *EntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.ExtractedGraph, error) {
	text = truncateRunes(text, e.maxChars)

	var result ai.ExtractedGraph
	if err := generateJSON(ctx, e.client, e.logger, buildExtractionPrompt(), text, &result); err != nil {
		return nil, err
	}

	graph := result.Clean()
	e.logger.Debug("extracted graph",
		"entities", len(graph.Entities),
		"relationships", len(graph.Relationships))
	return graph, nil
}
