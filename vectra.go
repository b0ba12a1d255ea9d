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

package vectra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/ai/openai"
	"github.com/poiesic/vectra/cache"
	"github.com/poiesic/vectra/config"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/ingestion"
	"github.com/poiesic/vectra/metrics"
	"github.com/poiesic/vectra/orchestrator"
	"github.com/poiesic/vectra/retrieval"
	"github.com/poiesic/vectra/storage"
	"github.com/poiesic/vectra/storage/badger"
	"github.com/poiesic/vectra/storage/neo4j"
	"github.com/poiesic/vectra/storage/pgvector"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// ErrConfigRequired is returned when NewEngine gets a nil config.
var ErrConfigRequired = errors.New("config required")

// Engine wires storage, AI services, retrievers, the query orchestrator
// and the ingestion pipeline into one unit.
type Engine struct {
	cfg          *config.Config
	backend      *badger.Backend
	vectorStore  storage.VectorStore
	graphStore   storage.GraphStore
	cache        *cache.RedisEmbeddingCache
	provider     ai.AIProvider
	orchestrator *orchestrator.Orchestrator
	pipeline     *ingestion.Pipeline
	registry     *prometheus.Registry
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger      *slog.Logger
	provider    ai.AIProvider
	vectorStore storage.VectorStore
	graphStore  storage.GraphStore
	registry    *prometheus.Registry
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithAIProvider replaces the OpenAI-compatible provider built from config.
func WithAIProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithStores replaces the stores built from config. The engine closes them.
func WithStores(vectorStore storage.VectorStore, graphStore storage.GraphStore) EngineOption {
	return func(o *engineOptions) {
		o.vectorStore = vectorStore
		o.graphStore = graphStore
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
// Default is a fresh registry with Go runtime and process collectors.
func WithRegistry(registry *prometheus.Registry) EngineOption {
	return func(o *engineOptions) {
		o.registry = registry
	}
}

// NewEngine builds an engine from cfg. ctx bounds connecting to networked backends.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.registry == nil {
		options.registry = prometheus.NewRegistry()
		options.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	e := &Engine{
		cfg:         cfg,
		vectorStore: options.vectorStore,
		graphStore:  options.graphStore,
		provider:    options.provider,
		registry:    options.registry,
		logger:      options.logger.With("component", "engine"),
	}

	if err := e.init(ctx, options.logger); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(ctx context.Context, logger *slog.Logger) error {
	if err := e.openStores(ctx, logger); err != nil {
		return err
	}

	if e.provider == nil {
		provider, err := openai.NewProvider(e.cfg.AI.Provider())
		if err != nil {
			return err
		}
		e.provider = provider
	}

	semanticOpts := []retrieval.SemanticOption{
		retrieval.WithSemanticLogger(logger),
		retrieval.WithMinSimilarity(e.cfg.Query.MinSimilarity),
	}
	if e.cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.Cache.Address,
			Password: e.cfg.Cache.Password,
			DB:       e.cfg.Cache.DB,
		})
		embeddingCache, err := cache.NewRedisEmbeddingCache(client, e.cfg.AI.EmbeddingModel,
			cache.WithTTL(e.cfg.Cache.TTL()),
			cache.WithKeyPrefix(e.cfg.Cache.KeyPrefix),
			cache.WithLogger(logger),
		)
		if err != nil {
			client.Close()
			return err
		}
		e.cache = embeddingCache
		semanticOpts = append(semanticOpts, retrieval.WithEmbeddingCache(embeddingCache))
	}

	semantic, err := retrieval.NewSemanticRetriever(e.provider.Embedder(), e.vectorStore, semanticOpts...)
	if err != nil {
		return err
	}
	graph, err := retrieval.NewGraphRetriever(e.provider.QueryTranslator(), e.graphStore,
		retrieval.WithGraphLogger(logger))
	if err != nil {
		return err
	}

	monitor, err := metrics.New(e.registry)
	if err != nil {
		return err
	}

	e.orchestrator, err = orchestrator.New(semantic, graph, e.cfg.Query.Orchestrator(),
		orchestrator.WithLogger(logger),
		orchestrator.WithMonitor(monitor),
	)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithChunkSize(e.cfg.Ingestion.ChunkSize),
		ingestion.WithChunkOverlap(e.cfg.Ingestion.ChunkOverlap),
		ingestion.WithExtractionChars(e.cfg.Ingestion.ExtractionChars),
		ingestion.WithLogger(logger),
	}
	if e.cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(e.cfg.Ingestion.PoolSize))
	}
	e.pipeline, err = ingestion.NewPipeline(e.vectorStore, e.graphStore, e.provider, pipelineOpts...)
	return err
}

func (e *Engine) openStores(ctx context.Context, logger *slog.Logger) error {
	sc := e.cfg.Storage
	needBadger := (e.vectorStore == nil && sc.VectorBackend == config.BackendBadger) ||
		(e.graphStore == nil && sc.GraphBackend == config.BackendBadger)
	if needBadger {
		backend, err := badger.OpenBackend(sc.BadgerPath, false, badger.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		e.backend = backend
	}

	if e.vectorStore == nil {
		switch sc.VectorBackend {
		case config.BackendPgvector:
			store, err := pgvector.Open(ctx, sc.Postgres.DSN, sc.Postgres.Dimensions,
				pgvector.WithTable(sc.Postgres.Table),
				pgvector.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			e.vectorStore = store
		default:
			e.vectorStore = badger.NewVectorStore(e.backend)
		}
	}

	if e.graphStore == nil {
		switch sc.GraphBackend {
		case config.BackendNeo4j:
			store, err := neo4j.Open(ctx, neo4j.Config{
				URI:      sc.Neo4j.URI,
				Username: sc.Neo4j.User,
				Password: sc.Neo4j.Password,
				Database: sc.Neo4j.Database,
			}, neo4j.WithLogger(logger))
			if err != nil {
				return err
			}
			e.graphStore = store
		default:
			e.graphStore = badger.NewGraphStore(e.backend)
		}
	}
	return nil
}

// Query runs a hybrid query.
func (e *Engine) Query(ctx context.Context, req core.QueryRequest) (*core.HybridQueryResult, error) {
	return e.orchestrator.Execute(ctx, req)
}

// Submit queues a document for ingestion and returns its task id.
func (e *Engine) Submit(ctx context.Context, doc core.Document) (string, error) {
	return e.pipeline.Submit(ctx, doc)
}

// TaskStatus returns the status of an ingestion task.
func (e *Engine) TaskStatus(taskID string) (ingestion.TaskStatus, error) {
	return e.pipeline.TaskStatus(taskID)
}

// WaitTask blocks until an ingestion task finishes or ctx is done.
func (e *Engine) WaitTask(ctx context.Context, taskID string) (ingestion.TaskStatus, error) {
	return e.pipeline.Wait(ctx, taskID)
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Registry returns the Prometheus registry holding the engine metrics.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

// HealthReport is the reachability of each dependency.
type HealthReport struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
	Version  string          `json:"version"`
}

// Health pings every dependency. The status is degraded when any is unreachable.
func (e *Engine) Health(ctx context.Context) HealthReport {
	services := map[string]bool{
		"api":          true,
		"vector_store": e.vectorStore.Ping(ctx) == nil,
		"graph_store":  e.graphStore.Ping(ctx) == nil,
	}
	if e.cache != nil {
		services["cache"] = e.cache.Ping(ctx) == nil
	}

	status := StatusHealthy
	for name, ok := range services {
		if !ok {
			status = StatusDegraded
			e.logger.Warn("dependency unreachable", "service", name)
		}
	}
	return HealthReport{Status: status, Services: services, Version: e.cfg.App.Version}
}

// Ready returns an error when either store is unreachable.
func (e *Engine) Ready(ctx context.Context) error {
	if err := e.vectorStore.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	if err := e.graphStore.Ping(ctx); err != nil {
		return fmt.Errorf("graph store: %w", err)
	}
	return nil
}

// Close waits for queued ingestion, then releases every component.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("error closing embedding cache", "err", err)
		}
	}
	if e.vectorStore != nil {
		if err := e.vectorStore.Close(); err != nil {
			e.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.graphStore != nil {
		if err := e.graphStore.Close(); err != nil {
			e.logger.Error("error closing graph store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
