// Package retrieval adapts the vector and graph stores to one ranked-list
// contract consumed by the orchestrator.
//
// A Retriever answers a natural-language query with at most limit items,
// best first, restricted to items whose metadata matches every filter
// exactly. Failures are reported as *core.RetrievalError carrying the
// adapter's source tag and a FailureCause:
//
//   - CauseTimeout when the caller's deadline expires or the context is cancelled
//   - CauseMalformedResponse when a backend or model answer cannot be used
//   - CauseBackendUnavailable for everything else
//
// Two variants are provided. SemanticRetriever embeds the query and runs a
// similarity search; GraphRetriever translates the query into the graph
// store's dialect and executes it.
package retrieval
