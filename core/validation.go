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

package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinResultLimit is the smallest accepted result limit.
	MinResultLimit = 1
	// MaxResultLimit is the largest accepted result limit.
	MaxResultLimit = 100
)

// ValidateQueryRequest validates a QueryRequest.
// Validation rules:
//   - Text must contain at least one non-whitespace character
//   - Limit must be within MinResultLimit..MaxResultLimit
//   - Mode must be vector, graph or hybrid
//
// Filters are not validated; an empty map means no filtering.
func ValidateQueryRequest(req *QueryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidQueryRequest)
	}

	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQueryRequest, ErrEmptyQuery)
	}

	if req.Limit < MinResultLimit || req.Limit > MaxResultLimit {
		return fmt.Errorf("%w: %w: %d not in %d..%d", ErrInvalidQueryRequest, ErrLimitOutOfRange,
			req.Limit, MinResultLimit, MaxResultLimit)
	}

	if err := ValidateQueryMode(req.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQueryRequest, err)
	}

	return nil
}

// ValidateQueryMode validates that a QueryMode has a known value.
func ValidateQueryMode(mode QueryMode) error {
	switch mode {
	case QueryModeVector, QueryModeGraph, QueryModeHybrid:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

// MatchesFilters reports whether metadata satisfies every filter.
// Filters are an exact-match conjunction over the canonical string form of
// the metadata value. An item missing a filter key never matches.
func MatchesFilters(metadata Metadata, filters map[string]string) bool {
	for key, want := range filters {
		value, ok := metadata[key]
		if !ok {
			return false
		}
		got, ok := ScalarString(value)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// ScalarString renders a metadata scalar in canonical form. Numbers use the
// shortest decimal representation, booleans are "true"/"false".
// Non-scalar values report false.
func ScalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// ValidateChunk validates a Chunk according to domain rules.
// Validation rules:
//   - DocumentID must not be empty
//   - Content must not be empty
//   - ChunkIndex must not be negative
//
// NOT validated:
//   - Vector (empty in the graph store)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocumentID)
	}
	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: negative chunk index %d", ErrInvalidChunk, chunk.ChunkIndex)
	}
	return nil
}

// ValidateDocument validates a Document submitted for ingestion.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	return nil
}
