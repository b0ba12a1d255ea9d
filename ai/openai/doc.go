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

// Package openai implements ai.AIProvider against OpenAI-compatible APIs.
//
// Embeddings and chat completions go through langchaingo, so any service
// speaking the OpenAI protocol works (OpenAI itself, Ollama, vLLM, LocalAI).
// Embedding and chat traffic may target different hosts.
//
// Chat calls run in JSON mode at temperature 0. Replies are stripped of
// markdown fences and passed through a small JSON repair step before
// decoding; a reply that still fails to decode is retried up to three times.
//
// # Usage
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithChatModel("qwen2.5:7b"),
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Who discovered radium?")
//	graph, err := provider.EntityExtractor().ExtractGraph(ctx, documentText)
package openai
