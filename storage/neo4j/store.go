// Package neo4j implements storage.GraphStore on Neo4j.
//
// The graph model is
//
//	(:Chunk {document_id, chunk_index, content, ...metadata})-[:MENTIONS]->(:Entity {key, name, type})
//	(:Entity)-[:RELATES_TO {type}]->(:Entity)
//
// Queries are Cypher, normally produced by translating a natural-language
// question. Only read-only statements are executed.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/internal/retry"
	"github.com/poiesic/vectra/storage"
)

// DefaultDatabase is the database used when none is configured.
const DefaultDatabase = "neo4j"

// ErrDriverRequired is returned when no driver is supplied.
var ErrDriverRequired = errors.New("neo4j driver is required")

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store is a Neo4j-backed GraphStore.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ storage.GraphStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDatabase selects the Neo4j database.
// Default is DefaultDatabase.
func WithDatabase(database string) Option {
	return func(s *Store) error {
		if database != "" {
			s.database = database
		}
		return nil
	}
}

// Open creates a driver, verifies connectivity and ensures the schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, err
	}

	s, err := New(driver, append([]Option{WithDatabase(cfg.Database)}, opts...)...)
	if err != nil {
		driver.Close(ctx)
		return nil, err
	}

	err = retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: retryDelay, Logger: s.logger},
		func(ctx context.Context) error {
			err := driver.VerifyConnectivity(ctx)
			if neo4j.IsNeo4jError(err) {
				// Authentication and other server errors will not fix themselves.
				return retry.Permanent(err)
			}
			return err
		})
	if err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}

	if err := s.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing driver. Close closes the driver.
func New(driver neo4j.DriverWithContext, opts ...Option) (*Store, error) {
	if driver == nil {
		return nil, ErrDriverRequired
	}
	s := &Store{
		driver:   driver,
		database: DefaultDatabase,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "neo4j", "database", s.database)
	return s, nil
}

// Dialect returns core.DialectCypher.
func (s *Store) Dialect() core.QueryDialect {
	return core.DialectCypher
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the driver.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates the lookup index and uniqueness constraint.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
			neo4j.ExecuteQueryWithWritersRouting())
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// AddDocumentGraph merges chunks, entities, mentions and relationships in
// a single write transaction.
func (s *Store) AddDocumentGraph(ctx context.Context, graph *core.DocumentGraph) error {
	if graph == nil || graph.DocumentID == "" {
		return core.ErrEmptyDocumentID
	}
	params, err := documentParams(graph)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, step := range writeStatements {
			result, err := tx.Run(ctx, step.cypher, map[string]any{"rows": params[step.param]})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return wrapError(err)
	}

	s.logger.Debug("indexed document graph",
		"document", graph.DocumentID,
		"chunks", len(graph.Chunks),
		"entities", len(graph.Entities),
		"relationships", len(graph.Relationships))
	return nil
}

// DeleteDocument detaches and deletes every Chunk node of documentID,
// which drops its MENTIONS edges. Entity nodes are left in place.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return core.ErrEmptyDocumentID
	}
	result, err := neo4j.ExecuteQuery(ctx, s.driver, deleteDocumentCypher,
		map[string]any{"document_id": documentID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithWritersRouting())
	if err != nil {
		return wrapError(err)
	}
	s.logger.Debug("deleted document graph",
		"document", documentID,
		"chunks", result.Summary.Counters().NodesDeleted())
	return nil
}

// Execute runs a read-only Cypher query. The parameter $limit is bound to
// the number of rows worth fetching. Rows are decoded into chunks, filtered,
// deduplicated by identity key and ordered by their score column.
func (s *Store) Execute(ctx context.Context, query string, filters map[string]string, limit int) ([]*core.GraphRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if err := CheckReadOnly(query); err != nil {
		return nil, err
	}

	fetch := limit
	if len(filters) > 0 {
		fetch = min(limit*filterOverfetch, maxFetch)
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"limit": fetch},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, wrapError(err)
	}

	records, err := DecodeRecords(result.Records)
	if err != nil {
		return nil, err
	}

	filtered := records[:0]
	for _, r := range records {
		if core.MatchesFilters(r.Chunk.Metadata, filters) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// wrapError marks Cypher client errors (syntax, semantics, access mode) as
// invalid queries. Other errors pass through.
func wrapError(err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement.") {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	return err
}
