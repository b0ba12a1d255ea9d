package ingestion

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrTaskNotFound is returned when a task id is unknown.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPipelineClosed is returned by Submit after Release.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrInvalidChunking is returned when chunk size or overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrNoChunks is returned when a document produces no chunks.
	ErrNoChunks = errors.New("document produced no chunks")
)
