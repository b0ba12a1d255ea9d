package neo4j

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/storage"
)

const (
	retryDelay      = 500 * time.Millisecond
	filterOverfetch = 5
	maxFetch        = 500
)

var schemaStatements = []string{
	`CREATE CONSTRAINT entity_key IF NOT EXISTS FOR (e:Entity) REQUIRE e.key IS UNIQUE`,
	`CREATE INDEX chunk_identity IF NOT EXISTS FOR (c:Chunk) ON (c.document_id, c.chunk_index)`,
	`CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)`,
}

const deleteDocumentCypher = `MATCH (c:Chunk {document_id: $document_id}) DETACH DELETE c`

type writeStatement struct {
	param  string
	cypher string
}

var writeStatements = []writeStatement{
	{"chunks", `UNWIND $rows AS row
MERGE (c:Chunk {document_id: row.document_id, chunk_index: row.chunk_index})
SET c += row.metadata, c.content = row.content`},
	{"entities", `UNWIND $rows AS row
MERGE (e:Entity {key: row.key})
SET e.name = row.name, e.type = row.type`},
	{"mentions", `UNWIND $rows AS row
MATCH (c:Chunk {document_id: row.document_id, chunk_index: row.chunk_index})
MERGE (e:Entity {key: row.key})
ON CREATE SET e.name = row.name
MERGE (c)-[:MENTIONS]->(e)`},
	{"relationships", `UNWIND $rows AS row
MERGE (a:Entity {key: row.source})
ON CREATE SET a.name = row.source_name
MERGE (b:Entity {key: row.target})
ON CREATE SET b.name = row.target_name
MERGE (a)-[:RELATES_TO {type: row.type}]->(b)`},
}

// documentParams flattens a document graph into UNWIND rows.
func documentParams(graph *core.DocumentGraph) (map[string][]any, error) {
	params := map[string][]any{}

	for _, chunk := range graph.Chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		meta, err := storage.NormalizeMetadata(chunk.Metadata)
		if err != nil {
			return nil, err
		}
		// Reserved properties win over metadata of the same name.
		delete(meta, "content")
		delete(meta, "document_id")
		delete(meta, "chunk_index")
		params["chunks"] = append(params["chunks"], map[string]any{
			"document_id": chunk.DocumentID,
			"chunk_index": int64(chunk.ChunkIndex),
			"content":     chunk.Content,
			"metadata":    map[string]any(meta),
		})
	}

	for _, entity := range graph.Entities {
		key := entityKey(entity.Name)
		if key == "" {
			return nil, core.ErrEmptyEntityName
		}
		params["entities"] = append(params["entities"], map[string]any{
			"key":  key,
			"name": entity.Name,
			"type": entity.Type,
		})
	}

	for index, names := range graph.Mentions {
		for _, name := range names {
			params["mentions"] = append(params["mentions"], map[string]any{
				"document_id": graph.DocumentID,
				"chunk_index": int64(index),
				"key":         entityKey(name),
				"name":        name,
			})
		}
	}

	for _, rel := range graph.Relationships {
		params["relationships"] = append(params["relationships"], map[string]any{
			"source":      entityKey(rel.Source),
			"source_name": rel.Source,
			"target":      entityKey(rel.Target),
			"target_name": rel.Target,
			"type":        relationshipType(rel.Type),
		})
	}
	return params, nil
}

func entityKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func relationshipType(t string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(t), " ", "_"))
}

var (
	stringLiteral = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|` + "`[^`]*`")
	lineComment   = regexp.MustCompile(`//[^\n]*`)
	writeClause   = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD\s+CSV|IN\s+TRANSACTIONS)\b`)
	writeProc     = regexp.MustCompile(`(?i)\bCALL\s+(db\.create|db\.index|dbms\.|apoc\.(create|merge|refactor|periodic|trigger|schema))`)
)

// CheckReadOnly rejects Cypher that could modify the graph. String literals
// and comments are ignored when looking for write clauses.
func CheckReadOnly(query string) error {
	stripped := stringLiteral.ReplaceAllString(query, "''")
	stripped = lineComment.ReplaceAllString(stripped, "")
	if strings.TrimSpace(stripped) == "" {
		return fmt.Errorf("%w: empty cypher", storage.ErrInvalidQuery)
	}
	if m := writeClause.FindString(stripped); m != "" {
		return fmt.Errorf("%w: write clause %q not allowed", storage.ErrInvalidQuery, strings.ToUpper(m))
	}
	if m := writeProc.FindString(stripped); m != "" {
		return fmt.Errorf("%w: procedure %q not allowed", storage.ErrInvalidQuery, m)
	}
	return nil
}
