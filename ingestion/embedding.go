package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// embeddingProcessor embeds chunks and writes them to the vector store.
type embeddingProcessor struct {
	vectorStore storage.VectorStore
	embedder    ai.Embedder
	logger      *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(vectorStore storage.VectorStore, embedder ai.Embedder, logger *slog.Logger) (processor, error) {
	if vectorStore == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		vectorStore: vectorStore,
		embedder:    embedder,
		logger:      logger.With("processor", "embeddings"),
	}, nil
}

func (ep *embeddingProcessor) process(ctx context.Context, doc *preparedDocument) (processorStats, error) {
	texts := make([]string, len(doc.chunks))
	for i, chunk := range doc.chunks {
		texts[i] = chunk.Content
	}

	ep.logger.Debug("generating embeddings for chunks", "document_id", doc.document.ID, "chunks", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return processorStats{}, err
	}
	if len(embeddings) != len(doc.chunks) {
		return processorStats{}, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(doc.chunks), len(embeddings))
	}

	// Vectors go on copies so the graph processor sees chunks without them.
	chunks := make([]*core.Chunk, len(doc.chunks))
	for i, chunk := range doc.chunks {
		c := *chunk
		c.Vector = embeddings[i]
		chunks[i] = &c
	}

	// Re-ingesting a document replaces all of its chunks.
	if err := ep.vectorStore.DeleteDocument(ctx, doc.document.ID); err != nil {
		ep.logger.Error("error removing previous chunks", "err", err)
		return processorStats{}, err
	}
	if err := ep.vectorStore.AddChunks(ctx, chunks...); err != nil {
		ep.logger.Error("error storing chunks", "err", err)
		return processorStats{}, err
	}
	return processorStats{}, nil
}
