package ai

import (
	"strings"
	"unicode"
)

// EntityTypes lists the categories extractors are asked to use.
var EntityTypes = []string{
	"person",
	"organization",
	"place",
	"event",
	"concept",
	"technology",
	"product",
	"work",
	"date",
	"substance",
}

// NormalizeEntityType folds a model-supplied type into the lower_snake form
// used by the stores. Unknown types are kept, empty ones become "concept".
func NormalizeEntityType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "concept"
	}
	return strings.Join(strings.Fields(t), "_")
}

// NormalizeRelationshipType upper-cases a relationship type and joins words
// with underscores, e.g. "works at" -> "WORKS_AT".
func NormalizeRelationshipType(t string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(t), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
	if len(fields) == 0 {
		return "RELATED_TO"
	}
	return strings.ToUpper(strings.Join(fields, "_"))
}

// Clean drops entities without a name, de-duplicates entities by
// case-insensitive name and discards relationships whose endpoints are blank.
func (g *ExtractedGraph) Clean() *ExtractedGraph {
	out := &ExtractedGraph{
		Entities:      []ExtractedEntity{},
		Relationships: []ExtractedRelationship{},
	}
	if g == nil {
		return out
	}

	seen := make(map[string]struct{}, len(g.Entities))
	for _, e := range g.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Entities = append(out.Entities, ExtractedEntity{Name: name, Type: NormalizeEntityType(e.Type)})
	}

	for _, r := range g.Relationships {
		source, target := strings.TrimSpace(r.Source), strings.TrimSpace(r.Target)
		if source == "" || target == "" {
			continue
		}
		out.Relationships = append(out.Relationships, ExtractedRelationship{
			Source: source,
			Target: target,
			Type:   NormalizeRelationshipType(r.Type),
		})
	}
	return out
}
