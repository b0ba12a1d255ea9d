package badger

import (
	"encoding/binary"
	"strings"

	"github.com/poiesic/vectra/core"
)

// Key prefixes for different data types
const (
	vectorChunkPrefix  = "vchunk:"
	graphChunkPrefix   = "gchunk:"
	entityPrefix       = "entity:"
	entityNamePrefix   = "ename:"
	mentionPrefix      = "mention:"
	chunkMentionPrefix = "cmention:"
	relationPrefix     = "rel:"
	reverseRelPrefix   = "relr:"
)

// makeVectorChunkKey generates a key for an embedded chunk.
// Format: prefix:documentID#chunkIndex
func makeVectorChunkKey(identityKey string) []byte {
	return []byte(vectorChunkPrefix + identityKey)
}

// makeDocumentPrefix matches every embedded chunk of a document.
func makeDocumentPrefix(documentID string) []byte {
	return []byte(vectorChunkPrefix + documentID + "#")
}

// makeGraphChunkKey generates a key for a chunk referenced by the graph.
func makeGraphChunkKey(identityKey string) []byte {
	return []byte(graphChunkPrefix + identityKey)
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return appendID([]byte(entityPrefix), id)
}

// makeEntityNameKey generates the name index key for an entity.
// Format: prefix:normalizedName
func makeEntityNameKey(name string) []byte {
	return []byte(entityNamePrefix + normalizeName(name))
}

// makeMentionKey links an entity to a chunk that mentions it.
// Format: prefix:entityID:identityKey
func makeMentionKey(entityID core.ID, identityKey string) []byte {
	return append(makeMentionPrefix(entityID), identityKey...)
}

// makeMentionPrefix matches every mention of an entity.
func makeMentionPrefix(entityID core.ID) []byte {
	return appendID([]byte(mentionPrefix), entityID)
}

// makeChunkMentionKey is the reverse of a mention key, so a document's
// mentions can be found without scanning every entity.
// Format: prefix:identityKey entityID
func makeChunkMentionKey(identityKey string, entityID core.ID) []byte {
	return appendID([]byte(chunkMentionPrefix+identityKey), entityID)
}

// makeDocumentMentionPrefix matches every reverse mention of a document.
func makeDocumentMentionPrefix(documentID string) []byte {
	return []byte(chunkMentionPrefix + documentID + "#")
}

// parseChunkMentionKey splits a reverse mention key.
func parseChunkMentionKey(key []byte) (string, core.ID, bool) {
	rest := key[len(chunkMentionPrefix):]
	if len(rest) < 8 {
		return "", 0, false
	}
	split := len(rest) - 8
	return string(rest[:split]), core.ID(binary.BigEndian.Uint64(rest[split:])), true
}

// makeGraphDocumentPrefix matches every graph chunk of a document.
func makeGraphDocumentPrefix(documentID string) []byte {
	return []byte(graphChunkPrefix + documentID + "#")
}

// makeRelationKey generates an edge key in one direction.
// Format: prefix:fromID:toID:TYPE
func makeRelationKey(prefix string, from, to core.ID, relType string) []byte {
	buf := appendID([]byte(prefix), from)
	buf = binary.BigEndian.AppendUint64(buf, uint64(to))
	return append(buf, normalizeRelType(relType)...)
}

// makeRelationPrefix matches every edge leaving from in one direction.
func makeRelationPrefix(prefix string, from core.ID) []byte {
	return appendID([]byte(prefix), from)
}

// parseRelationKey extracts the far end and type of an edge key.
func parseRelationKey(prefix string, key []byte) (core.ID, string, bool) {
	rest := key[len(prefix):]
	if len(rest) < 16 {
		return 0, "", false
	}
	to := core.ID(binary.BigEndian.Uint64(rest[8:16]))
	return to, string(rest[16:]), true
}

// Write in BigEndian order so lexicographic sort works correctly
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// entityID derives the content-based ID of an entity from its name.
func entityID(name string) core.ID {
	return core.IDFromContent(normalizeName(name))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func normalizeRelType(relType string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(relType), " ", "_"))
}
