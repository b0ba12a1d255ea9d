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

package fusion

import (
	"fmt"
	"slices"
	"sort"

	"github.com/poiesic/vectra/core"
)

// DefaultK is the conventional RRF damping constant.
const DefaultK = 60

// Fuser performs Reciprocal Rank Fusion with a fixed k.
// A Fuser holds no mutable state and is safe for concurrent use.
type Fuser struct {
	k int
}

// NewFuser creates a Fuser. k must be positive.
func NewFuser(k int) (*Fuser, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrFusion, core.ErrInvalidRRFK, k)
	}
	return &Fuser{k: k}, nil
}

// K returns the damping constant.
func (f *Fuser) K() int {
	return f.k
}

// Contribution returns the RRF contribution of an item at zero-based position.
func Contribution(k, position int) float64 {
	return 1.0 / float64(k+position+1)
}

// sourcePriority orders lists before concatenation so that semantic
// entries precede graph entries on exact score ties.
func sourcePriority(tag core.SourceTag) int {
	switch tag {
	case core.SourceSemantic:
		return 0
	case core.SourceGraph:
		return 1
	default:
		return 2
	}
}

type merged struct {
	result  core.FusedResult
	display float64 // contribution of the occurrence whose fields are kept
}

// Fuse merges lists into one ranked, deduplicated sequence of at most limit
// results. Items are never modified; the kept occurrence is copied and
// annotated with its fused score.
//
// When the same identity key appears in several lists, the display fields
// (content, metadata, source) come from the occurrence with the larger
// single-list contribution. Exact ties prefer the semantic occurrence, then
// the first one seen.
func (f *Fuser) Fuse(lists []core.RankedList, limit int) ([]core.FusedResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrFusion, core.ErrInvalidFusionLimit, limit)
	}
	if len(lists) == 0 {
		return []core.FusedResult{}, nil
	}

	ordered := slices.Clone(lists)
	slices.SortStableFunc(ordered, func(a, b core.RankedList) int {
		return sourcePriority(a.Source) - sourcePriority(b.Source)
	})

	index := make(map[string]int)
	entries := make([]*merged, 0)

	for _, list := range ordered {
		for pos, item := range list.Items {
			contribution := Contribution(f.k, pos)

			i, seen := index[item.IdentityKey]
			if !seen {
				index[item.IdentityKey] = len(entries)
				entries = append(entries, &merged{
					result:  core.FusedResult{RetrievalItem: item, FusedScore: contribution},
					display: contribution,
				})
				continue
			}

			entry := entries[i]
			entry.result.FusedScore += contribution
			if replacesDisplay(contribution, item.Source, entry.display, entry.result.Source) {
				entry.result.RetrievalItem = item
				entry.display = contribution
			}
		}
	}

	results := make([]core.FusedResult, len(entries))
	for i, entry := range entries {
		results[i] = entry.result
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusedScore > results[j].FusedScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// replacesDisplay reports whether a later occurrence should supply the
// display fields of a merged entry.
func replacesDisplay(contribution float64, source core.SourceTag, current float64, currentSource core.SourceTag) bool {
	if contribution != current {
		return contribution > current
	}
	return sourcePriority(source) < sourcePriority(currentSource)
}
