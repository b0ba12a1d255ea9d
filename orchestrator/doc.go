// Package orchestrator executes hybrid queries.
//
// An Orchestrator routes a request to the semantic retriever, the graph
// retriever or both, runs them concurrently under one shared deadline,
// fuses the surviving ranked lists with Reciprocal Rank Fusion and formats
// the result. Each run moves through the states
//
//	Routing -> Dispatching -> Fusing -> Formatting -> Done
//
// and may end in Failed from any state before Done.
//
// In hybrid mode one failed retriever is tolerated: the result is fused from
// the other list and marked partial, with the failure recorded. When every
// selected retriever fails the request fails with a *core.RetrievalError
// carrying the most specific cause observed (backend unavailable, then
// malformed response, then timeout).
package orchestrator
