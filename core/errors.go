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
	"errors"
	"fmt"
)

// Query validation errors. Every specific error is reported wrapped in
// ErrInvalidQueryRequest.
var (
	// ErrInvalidQueryRequest indicates a QueryRequest failed validation.
	ErrInvalidQueryRequest = errors.New("invalid query request")

	// ErrEmptyQuery indicates the query text is empty.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrLimitOutOfRange indicates the result limit is outside 1..MaxResultLimit.
	ErrLimitOutOfRange = errors.New("result limit out of range")

	// ErrUnknownMode indicates an unsupported query mode.
	ErrUnknownMode = errors.New("unknown query mode")
)

// Fusion errors. These signal misconfiguration, not user error.
var (
	// ErrFusion is the parent of every fusion failure.
	ErrFusion = errors.New("fusion failed")

	// ErrInvalidRRFK indicates a non-positive RRF k constant.
	ErrInvalidRRFK = errors.New("rrf k must be a positive integer")

	// ErrInvalidFusionLimit indicates a non-positive fusion limit.
	ErrInvalidFusionLimit = errors.New("fusion limit must be positive")
)

// Domain validation errors for ingested content.
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyDocumentID indicates the DocumentID field is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrEmptyEntityName indicates an entity Name field is empty.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")
)

// FailureCause classifies why an adapter failed.
type FailureCause int

const (
	CauseTimeout FailureCause = iota + 1
	CauseBackendUnavailable
	CauseMalformedResponse
)

func (c FailureCause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseBackendUnavailable:
		return "backend_unavailable"
	case CauseMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// specificity ranks causes when several adapters fail. A real backend
// cause outranks a generic timeout.
func (c FailureCause) specificity() int {
	switch c {
	case CauseBackendUnavailable:
		return 3
	case CauseMalformedResponse:
		return 2
	case CauseTimeout:
		return 1
	default:
		return 0
	}
}

// MoreSpecificThan reports whether c should be surfaced in preference to other.
func (c FailureCause) MoreSpecificThan(other FailureCause) bool {
	return c.specificity() > other.specificity()
}

// RetrievalError is raised by a retrieval adapter.
type RetrievalError struct {
	Source SourceTag
	Cause  FailureCause
	Err    error
}

// NewRetrievalError builds a RetrievalError wrapping err.
func NewRetrievalError(source SourceTag, cause FailureCause, err error) *RetrievalError {
	return &RetrievalError{Source: source, Cause: cause, Err: err}
}

func (e *RetrievalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s retrieval failed: %s", e.Source, e.Cause)
	}
	return fmt.Sprintf("%s retrieval failed: %s: %v", e.Source, e.Cause, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a query validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidQueryRequest)
}

// IsFusionError reports whether err is a fusion failure.
func IsFusionError(err error) bool {
	return errors.Is(err, ErrFusion)
}

// AsRetrievalError extracts a RetrievalError from err's chain.
func AsRetrievalError(err error) (*RetrievalError, bool) {
	var re *RetrievalError
	if errors.As(err, &re) && re != nil {
		return re, true
	}
	return nil, false
}
