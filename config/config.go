// Package config loads the vectra deployment configuration.
//
// Values are layered: built-in defaults, then a YAML file, then a .env file
// exported into the environment, then CLI flags and environment variables
// applied by the caller. Packages never read configuration globally; the
// relevant sections are converted into constructor arguments.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/vectra/ai"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/orchestrator"
)

// Storage backend names.
const (
	BackendBadger   = "badger"
	BackendPgvector = "pgvector"
	BackendNeo4j    = "neo4j"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Query     QueryConfig     `yaml:"query"`
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Ingestion IngestionConfig `yaml:"ingestion"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type QueryConfig struct {
	RRFK               int     `yaml:"rrf_k"`
	DefaultResultLimit int     `yaml:"default_result_limit"`
	AdapterTimeoutMs   int     `yaml:"adapter_timeout_ms"`
	MinSimilarity      float32 `yaml:"min_similarity"`
}

// Orchestrator converts the query section into orchestrator settings.
func (q QueryConfig) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		RRFK:               q.RRFK,
		DefaultResultLimit: q.DefaultResultLimit,
		AdapterTimeout:     time.Duration(q.AdapterTimeoutMs) * time.Millisecond,
	}
}

type AIConfig struct {
	EmbeddingHost      string `yaml:"embedding_host"`
	EmbeddingModel     string `yaml:"embedding_model"`
	ChatHost           string `yaml:"chat_host"`
	ChatModel          string `yaml:"chat_model"`
	APIKey             string `yaml:"api_key"`
	MaxExtractionChars int    `yaml:"max_extraction_chars"`
}

// Provider converts the AI section into provider settings.
func (a AIConfig) Provider() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithChatHost(a.ChatHost),
		ai.WithChatModel(a.ChatModel),
		ai.WithAPIKey(a.APIKey),
		ai.WithMaxExtractionChars(a.MaxExtractionChars),
	)
}

type StorageConfig struct {
	VectorBackend string         `yaml:"vector_backend"`
	GraphBackend  string         `yaml:"graph_backend"`
	BadgerPath    string         `yaml:"badger_path"`
	Postgres      PostgresConfig `yaml:"postgres"`
	Neo4j         Neo4jConfig    `yaml:"neo4j"`
}

type PostgresConfig struct {
	DSN        string `yaml:"dsn"`
	Dimensions int    `yaml:"dimensions"`
	Table      string `yaml:"table"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type IngestionConfig struct {
	PoolSize        int `yaml:"pool_size"`
	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	ExtractionChars int `yaml:"extraction_chars"`
}

// Default returns the built-in configuration: embedded Badger storage,
// a local OpenAI-compatible AI service and no cache.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:        "vectra",
			Version:     "0.1.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Query: QueryConfig{
			RRFK:               orchestrator.DefaultRRFK,
			DefaultResultLimit: orchestrator.DefaultResultLimit,
			AdapterTimeoutMs:   int(orchestrator.DefaultAdapterTimeout / time.Millisecond),
		},
		AI: AIConfig{
			EmbeddingHost:      aiDefaults.EmbeddingHost,
			EmbeddingModel:     aiDefaults.EmbeddingModel,
			ChatHost:           aiDefaults.ChatHost,
			ChatModel:          aiDefaults.ChatModel,
			APIKey:             aiDefaults.APIKey,
			MaxExtractionChars: aiDefaults.MaxExtractionChars,
		},
		Storage: StorageConfig{
			VectorBackend: BackendBadger,
			GraphBackend:  BackendBadger,
			BadgerPath:    "./data/vectra",
			Postgres:      PostgresConfig{Dimensions: 768, Table: "vectra_chunks"},
			Neo4j:         Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j", Database: "neo4j"},
		},
		Cache: CacheConfig{
			Address:    "localhost:6379",
			TTLSeconds: 86400,
			KeyPrefix:  "vectra:embedding:",
		},
		Ingestion: IngestionConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			ExtractionChars: 10000,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile exports the variables in a .env file into the process
// environment without overriding variables that are already set.
// A missing file is ignored unless required is true.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Validate checks ranges and backend names.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Query.RRFK > 0, "query.rrf_k must be positive, got %d", c.Query.RRFK)
	check(c.Query.DefaultResultLimit >= core.MinResultLimit && c.Query.DefaultResultLimit <= core.MaxResultLimit,
		"query.default_result_limit must be in %d..%d, got %d", core.MinResultLimit, core.MaxResultLimit, c.Query.DefaultResultLimit)
	check(c.Query.AdapterTimeoutMs > 0, "query.adapter_timeout_ms must be positive, got %d", c.Query.AdapterTimeoutMs)
	check(c.Query.MinSimilarity >= -1 && c.Query.MinSimilarity <= 1, "query.min_similarity must be in -1..1")
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port out of range: %d", c.Server.Port)

	switch c.Storage.VectorBackend {
	case BackendBadger:
	case BackendPgvector:
		check(c.Storage.Postgres.DSN != "", "storage.postgres.dsn is required for the pgvector backend")
		check(c.Storage.Postgres.Dimensions > 0, "storage.postgres.dimensions must be positive")
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q", c.Storage.VectorBackend))
	}
	switch c.Storage.GraphBackend {
	case BackendBadger:
	case BackendNeo4j:
		check(c.Storage.Neo4j.URI != "", "storage.neo4j.uri is required for the neo4j backend")
	default:
		errs = append(errs, fmt.Errorf("unknown graph backend %q", c.Storage.GraphBackend))
	}
	if c.Storage.VectorBackend == BackendBadger || c.Storage.GraphBackend == BackendBadger {
		check(c.Storage.BadgerPath != "", "storage.badger_path is required for the badger backend")
	}

	if c.Cache.Enabled {
		check(c.Cache.Address != "", "cache.address is required when the cache is enabled")
		check(c.Cache.TTLSeconds >= 0, "cache.ttl_seconds must not be negative")
	}

	check(c.Ingestion.PoolSize >= 0, "ingestion.pool_size must not be negative")
	check(c.Ingestion.ChunkSize > 0, "ingestion.chunk_size must be positive")
	check(c.Ingestion.ChunkOverlap >= 0 && c.Ingestion.ChunkOverlap < c.Ingestion.ChunkSize,
		"ingestion.chunk_overlap must be in 0..chunk_size-1, got %d", c.Ingestion.ChunkOverlap)
	check(c.Ingestion.ExtractionChars > 0, "ingestion.extraction_chars must be positive")

	if err := c.AI.Provider().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
