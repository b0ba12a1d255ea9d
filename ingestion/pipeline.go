package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
	"github.com/sourcegraph/conc"
)

// Chunk metadata keys set by the pipeline. They take precedence over
// caller-supplied metadata with the same name.
const (
	MetaDocumentID  = "document_id"
	MetaChunkIndex  = "chunk_index"
	MetaFileName    = "file_name"
	MetaTotalChunks = "total_chunks"
)

// Pipeline orchestrates the ingestion of documents into the vector and graph stores.
type Pipeline struct {
	pool            *ants.Pool
	embeddingProc   processor
	graphProc       processor
	tasks           *taskRegistry
	chunkSize       int
	chunkOverlap    int
	extractionChars int
	chunker         *Chunker
	logger          *slog.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		p.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets how many characters adjacent chunks share.
func WithChunkOverlap(overlap int) Option {
	return func(p *Pipeline) error {
		p.chunkOverlap = overlap
		return nil
	}
}

// WithExtractionChars sets how many leading characters of each document
// are sent for entity extraction.
func WithExtractionChars(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("extraction chars must be positive, got %d", n)
		}
		p.extractionChars = n
		return nil
	}
}

// WithTaskRetention sets how long finished tasks stay queryable and how
// many are kept at most. Defaults are DefaultTaskRetention and
// DefaultMaxFinishedTasks.
func WithTaskRetention(retention time.Duration, maxFinished int) Option {
	return func(p *Pipeline) error {
		if retention <= 0 {
			return fmt.Errorf("task retention must be positive, got %s", retention)
		}
		if maxFinished < 1 {
			return fmt.Errorf("finished task limit must be positive, got %d", maxFinished)
		}
		p.tasks.retention = retention
		p.tasks.maxFinished = maxFinished
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	vectorStore storage.VectorStore,
	graphStore storage.GraphStore,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if vectorStore == nil {
		return nil, ErrVectorStoreRequired
	}
	if graphStore == nil {
		return nil, ErrGraphStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		pool:            pool,
		tasks:           newTaskRegistry(),
		chunkSize:       DefaultChunkSize,
		chunkOverlap:    DefaultChunkOverlap,
		extractionChars: DefaultExtractionChars,
		logger:          slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.pool.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	chunker, err := NewChunker(p.chunkSize, p.chunkOverlap)
	if err != nil {
		p.pool.Release()
		return nil, err
	}
	p.chunker = chunker

	embeddingProc, err := newEmbeddingProcessor(vectorStore, provider.Embedder(), p.logger)
	if err != nil {
		p.pool.Release()
		return nil, err
	}

	graphProc, err := newGraphProcessor(graphStore, provider.EntityExtractor(), p.extractionChars, p.logger)
	if err != nil {
		p.pool.Release()
		return nil, err
	}

	p.embeddingProc = embeddingProc
	p.graphProc = graphProc

	return p, nil
}

// Submit validates a document and queues it for asynchronous ingestion.
// It returns the id of the task tracking the work. The context bounds the
// submission only; processing continues after Submit returns.
func (p *Pipeline) Submit(ctx context.Context, doc core.Document) (string, error) {
	if err := core.ValidateDocument(&doc); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = core.DocumentIDFromName(doc.Name)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", ErrPipelineClosed
	}

	taskID := uuid.NewString()
	p.tasks.add(taskID)
	p.inflight.Add(1)

	err := p.pool.Submit(func() {
		defer p.inflight.Done()
		p.run(taskID, &doc)
	})
	if err != nil {
		p.inflight.Done()
		p.tasks.remove(taskID)
		return "", fmt.Errorf("submitting ingestion task: %w", err)
	}

	p.logger.Info("document queued", "task_id", taskID, "document_id", doc.ID, "file_name", doc.Name)
	return taskID, nil
}

// Ingest processes a document synchronously and returns its result.
func (p *Pipeline) Ingest(ctx context.Context, doc core.Document) (*TaskResult, error) {
	if err := core.ValidateDocument(&doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = core.DocumentIDFromName(doc.Name)
	}
	return p.process(ctx, &doc)
}

// TaskStatus returns the current status of a task.
func (p *Pipeline) TaskStatus(taskID string) (TaskStatus, error) {
	status, ok := p.tasks.get(taskID)
	if !ok {
		return TaskStatus{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return status, nil
}

// Wait blocks until the task finishes or ctx is done.
func (p *Pipeline) Wait(ctx context.Context, taskID string) (TaskStatus, error) {
	status, ok, err := p.tasks.wait(ctx, taskID)
	if !ok {
		return TaskStatus{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return status, err
}

func (p *Pipeline) run(taskID string, doc *core.Document) {
	p.tasks.start(taskID)
	logger := p.logger.With("task_id", taskID, "document_id", doc.ID)
	logger.Debug("processing document")

	result, err := p.process(context.Background(), doc)
	if err != nil {
		logger.Error("error ingesting document", "err", err)
	} else {
		logger.Info("document ingested", "chunks", result.TotalChunks,
			"entities", result.EntitiesCount, "relationships", result.RelationshipsCount)
	}
	p.tasks.finish(taskID, result, err)
}

func (p *Pipeline) process(ctx context.Context, doc *core.Document) (*TaskResult, error) {
	prepared, err := p.prepare(doc)
	if err != nil {
		return nil, err
	}

	var (
		wg                     conc.WaitGroup
		embedErr, graphErr     error
		embedStats, graphStats processorStats
	)
	wg.Go(func() { embedStats, embedErr = p.embeddingProc.process(ctx, prepared) })
	wg.Go(func() { graphStats, graphErr = p.graphProc.process(ctx, prepared) })
	if r := wg.WaitAndRecover(); r != nil {
		return nil, r.AsError()
	}
	if embedErr != nil {
		return nil, fmt.Errorf("indexing chunks: %w", embedErr)
	}
	if graphErr != nil {
		return nil, fmt.Errorf("indexing document graph: %w", graphErr)
	}

	return &TaskResult{
		DocumentID:         doc.ID,
		FileName:           doc.Name,
		TotalChunks:        len(prepared.chunks),
		EntitiesCount:      embedStats.entities + graphStats.entities,
		RelationshipsCount: embedStats.relationships + graphStats.relationships,
	}, nil
}

// prepare splits the document and builds its chunks.
func (p *Pipeline) prepare(doc *core.Document) (*preparedDocument, error) {
	texts, err := p.chunker.Split(doc.Content)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, ErrNoChunks
	}

	fileName := doc.Name
	if i := strings.LastIndexAny(fileName, `/\`); i >= 0 {
		fileName = fileName[i+1:]
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		metadata := doc.Metadata.Clone()
		metadata[MetaDocumentID] = doc.ID
		metadata[MetaChunkIndex] = i
		metadata[MetaFileName] = fileName
		metadata[MetaTotalChunks] = len(texts)
		chunks[i] = &core.Chunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    text,
			Metadata:   metadata,
		}
	}
	return &preparedDocument{document: doc, chunks: chunks}, nil
}

// Release waits for queued documents to finish and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
