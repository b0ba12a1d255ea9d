package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/vectra/config"
	"github.com/poiesic/vectra/internal/logging"
)

// override maps a flag and its environment variables onto a config field.
type override struct {
	flag  string
	env   []string
	usage string
	apply func(cfg *config.Config, value string) error
}

func setString(field func(*config.Config) *string) func(*config.Config, string) error {
	return func(cfg *config.Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func setInt(field func(*config.Config) *int) func(*config.Config, string) error {
	return func(cfg *config.Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

var overrides = []override{
	{"host", []string{"API_HOST"}, "HTTP listen host",
		setString(func(c *config.Config) *string { return &c.Server.Host })},
	{"port", []string{"API_PORT"}, "HTTP listen port",
		setInt(func(c *config.Config) *int { return &c.Server.Port })},
	{"rrf-k", []string{"RRF_K"}, "Reciprocal Rank Fusion constant",
		setInt(func(c *config.Config) *int { return &c.Query.RRFK })},
	{"max-results", []string{"MAX_RESULTS"}, "Default result limit",
		setInt(func(c *config.Config) *int { return &c.Query.DefaultResultLimit })},
	{"adapter-timeout-ms", []string{"ADAPTER_TIMEOUT_MS"}, "Shared retriever deadline in milliseconds",
		setInt(func(c *config.Config) *int { return &c.Query.AdapterTimeoutMs })},
	{"embedding-host", []string{"EMBEDDING_HOST", "OPENAI_BASE_URL"}, "Embedding service host URL",
		setString(func(c *config.Config) *string { return &c.AI.EmbeddingHost })},
	{"embedding-model", []string{"EMBEDDING_MODEL"}, "Embedding model name",
		setString(func(c *config.Config) *string { return &c.AI.EmbeddingModel })},
	{"chat-host", []string{"CHAT_HOST", "OPENAI_BASE_URL"}, "Chat service host URL",
		setString(func(c *config.Config) *string { return &c.AI.ChatHost })},
	{"chat-model", []string{"LLM_MODEL"}, "Chat model name",
		setString(func(c *config.Config) *string { return &c.AI.ChatModel })},
	{"api-key", []string{"OPENAI_API_KEY"}, "API key for the AI services",
		setString(func(c *config.Config) *string { return &c.AI.APIKey })},
	{"vector-backend", []string{"VECTOR_BACKEND"}, "Vector store backend (badger, pgvector)",
		setString(func(c *config.Config) *string { return &c.Storage.VectorBackend })},
	{"graph-backend", []string{"GRAPH_BACKEND"}, "Graph store backend (badger, neo4j)",
		setString(func(c *config.Config) *string { return &c.Storage.GraphBackend })},
	{"db", []string{"VECTRA_DB"}, "Path to BadgerDB database directory",
		setString(func(c *config.Config) *string { return &c.Storage.BadgerPath })},
	{"postgres-dsn", []string{"POSTGRES_DSN"}, "PostgreSQL connection string for pgvector",
		setString(func(c *config.Config) *string { return &c.Storage.Postgres.DSN })},
	{"neo4j-uri", []string{"NEO4J_URI"}, "Neo4j bolt URI",
		setString(func(c *config.Config) *string { return &c.Storage.Neo4j.URI })},
	{"neo4j-user", []string{"NEO4J_USER"}, "Neo4j user",
		setString(func(c *config.Config) *string { return &c.Storage.Neo4j.User })},
	{"neo4j-password", []string{"NEO4J_PASSWORD"}, "Neo4j password",
		setString(func(c *config.Config) *string { return &c.Storage.Neo4j.Password })},
	{"redis-addr", []string{"REDIS_ADDR"}, "Redis address; enables the embedding cache",
		func(cfg *config.Config, value string) error {
			cfg.Cache.Address = value
			cfg.Cache.Enabled = value != ""
			return nil
		}},
	{"redis-host", []string{"REDIS_HOST"}, "Redis host; enables the embedding cache",
		func(cfg *config.Config, value string) error {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			cfg.Cache.Address = value + ":" + port
			cfg.Cache.Enabled = value != ""
			return nil
		}},
}

func overrideFlags() []cli.Flag {
	flags := make([]cli.Flag, len(overrides))
	for i, o := range overrides {
		flags[i] = &cli.StringFlag{Name: o.flag, Usage: o.usage, EnvVars: o.env}
	}
	return flags
}

// loadConfig layers defaults, the YAML file, the .env file and flag or
// environment overrides. Environment variables are re-read after the .env
// file is loaded, since flags were parsed before it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	envFile := c.String("env-file")
	if err := config.LoadEnvFile(envFile, c.IsSet("env-file")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		value, ok := lookupOverride(c, o)
		if !ok {
			continue
		}
		if err := o.apply(cfg, value); err != nil {
			return nil, fmt.Errorf("invalid value for --%s: %w", o.flag, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookupOverride(c *cli.Context, o override) (string, bool) {
	if c.IsSet(o.flag) {
		return c.String(o.flag), true
	}
	for _, name := range o.env {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func setupLogger(c *cli.Context) error {
	level, err := logging.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(c.App.ErrWriter, level, c.String("log-format"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// parsePairs splits key=value arguments.
func parsePairs(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", v)
		}
		out[key] = value
	}
	return out, nil
}
