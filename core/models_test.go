package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "marie curie",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestDocumentIDFromName(t *testing.T) {
	id := DocumentIDFromName("uploads/curie.pdf")
	if !strings.HasPrefix(id, "doc_") {
		t.Errorf("DocumentIDFromName() = %q, want doc_ prefix", id)
	}
	if id != DocumentIDFromName("uploads/curie.pdf") {
		t.Errorf("DocumentIDFromName() is not deterministic")
	}
	if id == DocumentIDFromName("uploads/bohr.pdf") {
		t.Errorf("DocumentIDFromName() collided for different names")
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name  string
		docID string
		index int
		want  string
	}{
		{"first chunk", "doc_a", 0, "doc_a#0"},
		{"later chunk", "doc_a", 12, "doc_a#12"},
		{"empty document", "", 1, "#1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IdentityKey(tt.docID, tt.index); got != tt.want {
				t.Errorf("IdentityKey() = %v, want %v", got, tt.want)
			}
		})
	}

	chunk := &Chunk{DocumentID: "doc_b", ChunkIndex: 4}
	if chunk.IdentityKey() != "doc_b#4" {
		t.Errorf("Chunk.IdentityKey() = %v, want doc_b#4", chunk.IdentityKey())
	}
}

func TestMetadata_Clone(t *testing.T) {
	var nilMeta Metadata
	clone := nilMeta.Clone()
	if clone == nil {
		t.Fatalf("Clone() of nil metadata returned nil")
	}

	orig := Metadata{"a": "1"}
	clone = orig.Clone()
	clone["a"] = "2"
	if orig["a"] != "1" {
		t.Errorf("Clone() shares storage with the original")
	}
}

func TestHybridQueryResult_JSON(t *testing.T) {
	result := HybridQueryResult{
		Query: "radium",
		Mode:  QueryModeHybrid,
		Items: []FusedResult{{
			RetrievalItem: RetrievalItem{
				Content:     "Curie discovered radium.",
				IdentityKey: "doc_a#0",
				Source:      SourceSemantic,
				NativeScore: 0.9,
				Metadata:    Metadata{"file_name": "curie.txt"},
			},
			FusedScore: 0.0328,
		}},
		TotalResults:    1,
		ExecutionTimeMs: 12.5,
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	for _, key := range []string{"query", "mode", "results", "total_results", "execution_time_ms", "partial"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing top-level field %q in %s", key, data)
		}
	}
	if _, ok := decoded["failures"]; ok {
		t.Errorf("failures should be omitted when empty")
	}

	items := decoded["results"].([]any)
	item := items[0].(map[string]any)
	for _, key := range []string{"content", "metadata", "score", "source"} {
		if _, ok := item[key]; !ok {
			t.Errorf("missing result field %q in %s", key, data)
		}
	}
	if _, ok := item["IdentityKey"]; ok {
		t.Errorf("identity key must not be serialized")
	}
	if item["source"] != "semantic" {
		t.Errorf("source = %v, want semantic", item["source"])
	}
}
