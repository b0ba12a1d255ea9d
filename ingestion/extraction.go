package ingestion

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

// DefaultExtractionChars is how much of a document is sent for entity extraction.
const DefaultExtractionChars = 10000

// graphProcessor extracts entities and relationships and writes the
// document graph to the graph store.
type graphProcessor struct {
	graphStore      storage.GraphStore
	extractor       ai.EntityExtractor
	extractionChars int
	logger          *slog.Logger
}

var _ processor = (*graphProcessor)(nil)

func newGraphProcessor(graphStore storage.GraphStore, extractor ai.EntityExtractor, extractionChars int, logger *slog.Logger) (processor, error) {
	if graphStore == nil {
		return nil, ErrGraphStoreRequired
	}
	if extractor == nil {
		return nil, ErrAIProviderRequired
	}
	if extractionChars < 1 {
		extractionChars = DefaultExtractionChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &graphProcessor{
		graphStore:      graphStore,
		extractor:       extractor,
		extractionChars: extractionChars,
		logger:          logger.With("processor", "graph"),
	}, nil
}

// process indexes the document graph. Extraction failures are logged and
// the document is still indexed with its chunks and no entities.
func (gp *graphProcessor) process(ctx context.Context, doc *preparedDocument) (processorStats, error) {
	sample := leadingRunes(doc.document.Content, gp.extractionChars)

	extracted, err := gp.extractor.ExtractGraph(ctx, sample)
	if err != nil {
		if ctx.Err() != nil {
			return processorStats{}, ctx.Err()
		}
		gp.logger.Warn("entity extraction failed, indexing without entities",
			"document_id", doc.document.ID, "err", err)
		extracted = &ai.ExtractedGraph{}
	}
	extracted = extracted.Clean()

	graph := buildDocumentGraph(doc, extracted)
	gp.logger.Debug("storing document graph", "document_id", doc.document.ID,
		"entities", len(graph.Entities), "relationships", len(graph.Relationships))

	// Re-ingesting a document replaces its chunks and mentions.
	if err := gp.graphStore.DeleteDocument(ctx, doc.document.ID); err != nil {
		gp.logger.Error("error removing previous document graph", "err", err)
		return processorStats{}, err
	}
	if err := gp.graphStore.AddDocumentGraph(ctx, graph); err != nil {
		gp.logger.Error("error storing document graph", "err", err)
		return processorStats{}, err
	}
	return processorStats{entities: len(graph.Entities), relationships: len(graph.Relationships)}, nil
}

// buildDocumentGraph links each entity to the chunks that mention it by
// name, or to the first chunk when none does.
func buildDocumentGraph(doc *preparedDocument, extracted *ai.ExtractedGraph) *core.DocumentGraph {
	graph := &core.DocumentGraph{
		DocumentID: doc.document.ID,
		Chunks:     doc.chunks,
		Mentions:   make(map[int][]string),
	}

	lowered := make([]string, len(doc.chunks))
	for i, chunk := range doc.chunks {
		lowered[i] = strings.ToLower(chunk.Content)
	}

	for _, entity := range extracted.Entities {
		graph.Entities = append(graph.Entities, core.Entity{
			ID:   core.IDFromContent(strings.ToLower(entity.Name)),
			Name: entity.Name,
			Type: entity.Type,
		})

		needle := strings.ToLower(entity.Name)
		linked := false
		for i, text := range lowered {
			if strings.Contains(text, needle) {
				index := doc.chunks[i].ChunkIndex
				graph.Mentions[index] = append(graph.Mentions[index], entity.Name)
				linked = true
			}
		}
		if !linked && len(doc.chunks) > 0 {
			index := doc.chunks[0].ChunkIndex
			graph.Mentions[index] = append(graph.Mentions[index], entity.Name)
		}
	}

	for _, rel := range extracted.Relationships {
		graph.Relationships = append(graph.Relationships, core.Relationship{
			Source: rel.Source,
			Target: rel.Target,
			Type:   rel.Type,
		})
	}
	return graph
}

func leadingRunes(text string, n int) string {
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
