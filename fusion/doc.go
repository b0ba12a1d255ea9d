// Package fusion merges independently ranked retrieval lists with
// Reciprocal Rank Fusion.
//
// Each item at zero-based position r in a list contributes 1/(k+r+1) to
// its fused score. Items are grouped by identity key across lists and
// their contributions summed, so evidence found by both the semantic and
// the graph adapter rises above evidence found by only one of them.
//
// The native scores reported by adapters are ignored; only positions
// matter. Fused scores are comparable only within a single Fuse call.
package fusion
