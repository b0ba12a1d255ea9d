package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntityType(t *testing.T) {
	assert.Equal(t, "person", NormalizeEntityType("Person"))
	assert.Equal(t, "chemical_element", NormalizeEntityType(" Chemical  Element "))
	assert.Equal(t, "concept", NormalizeEntityType(""))
}

func TestNormalizeRelationshipType(t *testing.T) {
	assert.Equal(t, "DISCOVERED", NormalizeRelationshipType("discovered"))
	assert.Equal(t, "WORKS_AT", NormalizeRelationshipType("works at"))
	assert.Equal(t, "MARRIED_TO", NormalizeRelationshipType("married-to"))
	assert.Equal(t, "RELATED_TO", NormalizeRelationshipType("  "))
}

func TestExtractedGraph_Clean(t *testing.T) {
	t.Run("nil graph", func(t *testing.T) {
		var g *ExtractedGraph
		out := g.Clean()
		require.NotNil(t, out)
		assert.Empty(t, out.Entities)
		assert.Empty(t, out.Relationships)
	})

	t.Run("drops blanks and duplicates", func(t *testing.T) {
		g := &ExtractedGraph{
			Entities: []ExtractedEntity{
				{Name: "Marie Curie", Type: "Person"},
				{Name: "marie curie", Type: "person"},
				{Name: "  ", Type: "place"},
				{Name: "Radium", Type: ""},
			},
			Relationships: []ExtractedRelationship{
				{Source: "Marie Curie", Target: "Radium", Type: "discovered"},
				{Source: "", Target: "Radium", Type: "discovered"},
			},
		}

		out := g.Clean()

		require.Len(t, out.Entities, 2)
		assert.Equal(t, ExtractedEntity{Name: "Marie Curie", Type: "person"}, out.Entities[0])
		assert.Equal(t, ExtractedEntity{Name: "Radium", Type: "concept"}, out.Entities[1])
		require.Len(t, out.Relationships, 1)
		assert.Equal(t, "DISCOVERED", out.Relationships[0].Type)
	})
}
