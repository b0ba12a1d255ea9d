// Package pgvector implements storage.VectorStore on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/internal/retry"
	"github.com/poiesic/vectra/storage"
)

const (
	// DefaultTable is the chunk table name.
	DefaultTable = "vectra_chunks"

	connectAttempts = 5
	connectDelay    = 500 * time.Millisecond
)

var (
	// ErrDatabaseRequired is returned when no database handle is supplied.
	ErrDatabaseRequired = errors.New("database is required")

	// ErrInvalidDimensions is returned for a non-positive embedding size.
	ErrInvalidDimensions = errors.New("embedding dimensions must be positive")

	// ErrInvalidTable is returned for a table name that is not a plain identifier.
	ErrInvalidTable = errors.New("invalid table name")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a pgvector-backed VectorStore.
type Store struct {
	db         *sql.DB
	table      string
	dimensions int
	ownsDB     bool
	logger     *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithTable sets the chunk table name.
// Default is DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) error {
		if !identifierPattern.MatchString(table) {
			return fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
		s.table = table
		return nil
	}
}

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

// Open connects to dsn, waits for the server to accept connections and
// creates the schema if needed. The returned Store owns the connection pool.
func Open(ctx context.Context, dsn string, dimensions int, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	s, err := New(db, dimensions, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true

	err = retry.Do(ctx, retry.Policy{MaxAttempts: connectAttempts, BaseDelay: connectDelay, Logger: s.logger},
		func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. The caller keeps ownership of db.
func New(db *sql.DB, dimensions int, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	if dimensions <= 0 {
		return nil, ErrInvalidDimensions
	}

	s := &Store{
		db:         db,
		table:      DefaultTable,
		dimensions: dimensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "pgvector", "table", s.table)
	return s, nil
}

// Migrate creates the vector extension, the chunk table and its HNSW index.
func (s *Store) Migrate(ctx context.Context) error {
	table := pq.QuoteIdentifier(s.table)
	index := pq.QuoteIdentifier(s.table + "_embedding_idx")
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (document_id, chunk_index)
		)`, table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, table),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	s.logger.Info("checked/created chunk table", "dimensions", s.dimensions)
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool when the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// AddChunks upserts chunks keyed by (document_id, chunk_index).
func (s *Store) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if len(chunk.Vector) != s.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				storage.ErrDimensionMismatch, chunk.IdentityKey(), len(chunk.Vector), s.dimensions)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(document_id, chunk_index, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, pq.QuoteIdentifier(s.table)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := storage.NormalizeMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Content,
			metaJSON,
			pgvector.NewVector(chunk.Vector),
		)
		if err != nil {
			return wrapError(err)
		}
	}

	return tx.Commit()
}

// DeleteDocument removes every chunk belonging to documentID.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, pq.QuoteIdentifier(s.table)),
		documentID)
	return wrapError(err)
}

// FindSimilar returns chunks ordered by cosine distance. Filters are pushed
// down as exact matches on the text form of metadata fields; a missing key
// yields NULL and excludes the row. Score is 1 - cosine distance.
func (s *Store) FindSimilar(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]*core.ScoredChunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			storage.ErrDimensionMismatch, len(vector), s.dimensions)
	}

	query, args := s.similarityQuery(vector, filters, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var results []*core.ScoredChunk
	for rows.Next() {
		var (
			chunk    core.Chunk
			metaJSON []byte
			score    float64
		)
		if err := rows.Scan(&chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		chunk.Metadata, err = decodeMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.ScoredChunk{Chunk: &chunk, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return results, nil
}

// similarityQuery builds the search statement. Filter keys are visited in
// sorted order so equal requests produce equal SQL.
func (s *Store) similarityQuery(vector []float32, filters map[string]string, limit int) (string, []any) {
	args := []any{pgvector.NewVector(vector)}
	var where []string
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, k, filters[k])
		where = append(where, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}
	args = append(args, limit)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT document_id, chunk_index, content, metadata, 1 - (embedding <=> $1) AS score FROM %s",
		pq.QuoteIdentifier(s.table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY embedding <=> $1, document_id, chunk_index LIMIT $")
	b.WriteString(strconv.Itoa(len(args)))
	return b.String(), args
}

func decodeMetadata(data []byte) (core.Metadata, error) {
	meta := core.Metadata{}
	if len(data) == 0 {
		return meta, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", storage.ErrSerializationFailed, err)
	}
	for k, v := range meta {
		// Nested JSON values cannot be filtered on; keep their text form.
		switch v.(type) {
		case map[string]any, []any, nil:
			raw, _ := json.Marshal(v)
			meta[k] = string(raw)
		}
	}
	return storage.NormalizeMetadata(meta)
}

// wrapError marks data exceptions (SQLSTATE class 22, such as a vector of
// the wrong size) as invalid queries. Other errors pass through.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	return err
}
