package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/vectra/ai"
)

const cypherPrompt = `You are a Neo4j Cypher expert. Convert the user's question into ONE read-only Cypher query.

Graph schema:
- (:Chunk {document_id, chunk_index, content, file_name, ...}) is a passage of a source document.
- (:Entity {key, name, type}) is a named thing. key is the lower-cased name.
- (:Chunk)-[:MENTIONS]->(:Entity)
- (:Entity)-[:RELATES_TO {type}]->(:Entity), type is UPPER_SNAKE_CASE such as DISCOVERED or WORKS_AT.

Rules:
- Return Chunk nodes as a column named c, and optionally a numeric relevance column named score.
- Match entity names case-insensitively with toLower(e.name) CONTAINS '<lower-case term>'.
- End the query with LIMIT $limit.
- Never use CREATE, MERGE, SET, DELETE, REMOVE, DROP, LOAD CSV or procedures that write.
- Output ONLY the query. No explanation, no preamble.

Example:
Question: "Who discovered radium?"
MATCH (c:Chunk)-[:MENTIONS]->(e:Entity)
WHERE toLower(e.name) CONTAINS 'radium'
RETURN c, count(e) AS score
ORDER BY score DESC
LIMIT $limit`

const entityPatternSchema = `{
  "type": "object",
  "properties": {
    "entities": {"type": "array", "items": {"type": "string"}},
    "relationships": {"type": "array", "items": {"type": "string"}},
    "hops": {"type": "integer", "minimum": 0, "maximum": 2}
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const entityPatternPromptTemplate = `Identify the named entities a knowledge graph should be searched for to answer the user's question.

Output ONLY valid JSON which complies with this schema:

%s

Rules:
- "entities" are names as they would appear in documents, e.g. "Marie Curie", "radium".
- "relationships" are optional UPPER_SNAKE_CASE relationship types that connect them, e.g. "DISCOVERED".
- "hops" is how many relationship steps to follow from the entities: 0 for direct mentions, 1 or 2 for related things.
- Do not invent entities that the question does not mention or clearly imply.

Example:
Question: "What did Marie Curie discover?"
{"entities":["Marie Curie"],"relationships":["DISCOVERED"],"hops":1}`

const extractionSchema = `{
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"name": {"type": "string"}, "type": {"type": "string"}},
        "required": ["name", "type"]
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"source": {"type": "string"}, "target": {"type": "string"}, "type": {"type": "string"}},
        "required": ["source", "target", "type"]
      }
    }
  },
  "required": ["entities", "relationships"]
}`

const extractionPromptTemplate = `Extract entities and the relationships between them from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Start your response directly with the
opening brace { and end with the closing brace }:

%s

Rules:
- Entity type must be one of: %s.
- Relationship source and target must be entity names from the "entities" array.
- Relationship type is a short verb phrase in UPPER_SNAKE_CASE, e.g. DEVELOPED, WORKS_AT.
- Include only what the text states or clearly implies. Do not hallucinate.
- If nothing can be identified, return {"entities": [], "relationships": []}.

Example:
Input: "Albert Einstein developed the theory of relativity."
Output:
{
  "entities": [
    {"name": "Albert Einstein", "type": "person"},
    {"name": "Theory of Relativity", "type": "concept"}
  ],
  "relationships": [
    {"source": "Albert Einstein", "target": "Theory of Relativity", "type": "DEVELOPED"}
  ]
}`

func buildEntityPatternPrompt() string {
	return fmt.Sprintf(entityPatternPromptTemplate, entityPatternSchema)
}

func buildExtractionPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate, extractionSchema, strings.Join(ai.EntityTypes, ", "))
}
