package core

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for graph entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// HashContent returns a short hex digest of text, suitable for keys and document ids.
func HashContent(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentIDFromName derives the stable document identifier for a source name.
func DocumentIDFromName(name string) string {
	return "doc_" + HashContent(name)
}

// IdentityKey builds the deduplication key shared by every adapter:
// the source document identifier plus the chunk position.
func IdentityKey(documentID string, chunkIndex int) string {
	return documentID + "#" + strconv.Itoa(chunkIndex)
}

// SourceTag identifies which retrieval adapter produced an item.
type SourceTag string

const (
	// SourceSemantic marks items produced by the embedding index.
	SourceSemantic SourceTag = "semantic"
	// SourceGraph marks items produced by the entity graph.
	SourceGraph SourceTag = "graph"
)

// QueryMode selects which retrieval paths run for a request.
type QueryMode string

const (
	QueryModeVector QueryMode = "vector"
	QueryModeGraph  QueryMode = "graph"
	QueryModeHybrid QueryMode = "hybrid"
)

// QueryDialect names the query language a graph store executes.
type QueryDialect string

const (
	// DialectCypher is the Neo4j query language.
	DialectCypher QueryDialect = "cypher"
	// DialectEntityPattern is the JSON entity pattern understood by the embedded graph store.
	DialectEntityPattern QueryDialect = "entity-pattern"
)

// Metadata is an open mapping of string keys to scalar values
// (string, bool, integer or floating point numbers).
type Metadata map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RetrievalItem is one candidate unit of evidence produced by an adapter.
type RetrievalItem struct {
	Content     string    `json:"content"`
	IdentityKey string    `json:"-"`
	Source      SourceTag `json:"source"`
	NativeScore float64   `json:"-"`
	Metadata    Metadata  `json:"metadata"`
}

// RankedList is the ordered output of one adapter for one query.
// Position 0 is the best item.
type RankedList struct {
	Source SourceTag
	Items  []RetrievalItem
}

// FusedResult is a RetrievalItem annotated with its fused score.
// FusedScore is only comparable to other results of the same fusion run.
type FusedResult struct {
	RetrievalItem
	FusedScore float64 `json:"score"`
}

// QueryRequest is a single hybrid query.
type QueryRequest struct {
	Text    string            `json:"query"`
	Mode    QueryMode         `json:"mode"`
	Limit   int               `json:"max_results"`
	Filters map[string]string `json:"filters,omitempty"`
}

// SourceFailure records an adapter failure tolerated in a partial result.
type SourceFailure struct {
	Source  SourceTag `json:"source"`
	Cause   string    `json:"cause"`
	Message string    `json:"message"`
}

// HybridQueryResult is the formatted answer returned to callers.
type HybridQueryResult struct {
	Query           string          `json:"query"`
	Mode            QueryMode       `json:"mode"`
	Items           []FusedResult   `json:"results"`
	TotalResults    int             `json:"total_results"`
	ExecutionTimeMs float64         `json:"execution_time_ms"`
	Partial         bool            `json:"partial"`
	Failures        []SourceFailure `json:"failures,omitempty"`
}

// Document is a source document submitted for ingestion.
type Document struct {
	ID       string
	Name     string
	Content  string
	Metadata Metadata
}

// Chunk is a positioned slice of a document, the unit stored in both indexes.
type Chunk struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Metadata   Metadata
	Vector     []float32 // Embedding, empty in the graph store
}

// IdentityKey returns the deduplication key for the chunk.
func (c *Chunk) IdentityKey() string {
	return IdentityKey(c.DocumentID, c.ChunkIndex)
}

// ScoredChunk is a vector similarity hit.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// GraphRecord is a chunk reached by a graph query, weighted by the traversal.
type GraphRecord struct {
	Chunk  *Chunk
	Weight float64
}

// Entity is a named node in the knowledge graph.
type Entity struct {
	ID   ID
	Name string
	Type string
}

// Relationship is a typed, directed edge between two entities, referenced by name.
type Relationship struct {
	Source string
	Target string
	Type   string
}

// DocumentGraph is everything a graph store needs to index one document.
type DocumentGraph struct {
	DocumentID    string
	Chunks        []*Chunk
	Entities      []Entity
	Relationships []Relationship
	// Mentions maps chunk index to the names of entities it mentions.
	Mentions map[int][]string
}

// EntityPattern is a query in the entity-pattern dialect.
type EntityPattern struct {
	Entities      []string `json:"entities"`
	Relationships []string `json:"relationships,omitempty"`
	Hops          int      `json:"hops,omitempty"`
}
