// Package cache keeps query embeddings in Redis so repeated questions skip
// the embedding service.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

const (
	// DefaultTTL is how long an embedding stays cached.
	DefaultTTL = 24 * time.Hour
	// DefaultKeyPrefix namespaces cache keys.
	DefaultKeyPrefix = "vectra:embedding:"
)

var (
	// ErrClientRequired is returned when a Redis client is not provided.
	ErrClientRequired = errors.New("redis client required")

	// ErrModelRequired is returned when the embedding model name is empty.
	ErrModelRequired = errors.New("embedding model required")
)

// RedisEmbeddingCache stores mus-encoded vectors under
// <prefix><model>:<hash of text>. Redis failures are logged and treated as misses.
type RedisEmbeddingCache struct {
	client *redis.Client
	model  string
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a RedisEmbeddingCache.
type Option func(*RedisEmbeddingCache) error

// WithTTL sets the entry lifetime. Zero keeps entries until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisEmbeddingCache) error {
		if ttl < 0 {
			return errors.New("cache ttl cannot be negative")
		}
		c.ttl = ttl
		return nil
	}
}

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(c *RedisEmbeddingCache) error {
		c.prefix = prefix
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisEmbeddingCache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewRedisEmbeddingCache creates a cache for embeddings produced by model.
func NewRedisEmbeddingCache(client *redis.Client, model string, opts ...Option) (*RedisEmbeddingCache, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	c := &RedisEmbeddingCache{
		client: client,
		model:  model,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "embedding-cache")
	return c, nil
}

// Key returns the Redis key for text.
func (c *RedisEmbeddingCache) Key(text string) string {
	return c.prefix + c.model + ":" + core.HashContent(text)
}

// Get returns the cached embedding for text.
func (c *RedisEmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.Key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", "err", err)
		return nil, false
	}

	vector, err := storage.UnmarshalVector(data)
	if err != nil {
		c.logger.Warn("discarding undecodable cache entry", "err", err)
		return nil, false
	}
	return vector, true
}

// Set stores vector for text.
func (c *RedisEmbeddingCache) Set(ctx context.Context, text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	if err := c.client.Set(ctx, c.Key(text), storage.MarshalVector(vector), c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "err", err)
	}
}

// Ping checks the Redis connection.
func (c *RedisEmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisEmbeddingCache) Close() error {
	return c.client.Close()
}
