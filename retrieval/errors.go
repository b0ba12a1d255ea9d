package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrTranslatorRequired is returned when a query translator is not provided.
	ErrTranslatorRequired = errors.New("query translator required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrMalformedResponse is returned when a backend answer cannot be turned into items.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Classify converts a raw backend error into a RetrievalError for source.
// A context that is already done always yields CauseTimeout, since drivers
// report cancellation in their own error types.
func Classify(ctx context.Context, source core.SourceTag, err error) *core.RetrievalError {
	if err == nil {
		return nil
	}
	if re, ok := core.AsRetrievalError(err); ok {
		return re
	}
	return core.NewRetrievalError(source, causeOf(ctx, err), err)
}

func causeOf(ctx context.Context, err error) core.FailureCause {
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return core.CauseTimeout
	case errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ai.ErrMalformedOutput),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, storage.ErrDimensionMismatch):
		return core.CauseMalformedResponse
	default:
		return core.CauseBackendUnavailable
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
