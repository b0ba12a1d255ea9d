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

package ingestion

import (
	"context"

	"github.com/poiesic/vectra/core"
)

// preparedDocument is a chunked document ready for indexing.
type preparedDocument struct {
	document *core.Document
	chunks   []*core.Chunk
}

// processor is an internal interface for indexing a prepared document.
// Implementations handle one index each, the vector store or the graph store.
type processor interface {
	// process indexes the document and returns the number of entities and
	// relationships it produced, zero for processors that produce none.
	process(ctx context.Context, doc *preparedDocument) (processorStats, error)
}

type processorStats struct {
	entities      int
	relationships int
}
