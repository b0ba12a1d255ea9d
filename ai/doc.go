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

// Package ai provides abstractions for the AI services used by Vectra.
//
// Three capabilities are modelled:
//
//   - Embedder: generates vector embeddings from text for the semantic path
//   - QueryTranslator: rewrites a question into a graph store's query dialect
//   - EntityExtractor: pulls entities and relationships out of documents at ingestion
//
// AIProvider aggregates them for convenient initialization.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs through langchaingo
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types; mock constructors
// return concrete types so tests can inject behaviour and assert call counts.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Who discovered radium?")
//	cypher, err := provider.QueryTranslator().TranslateQuery(ctx, "Who discovered radium?", core.DialectCypher)
package ai
