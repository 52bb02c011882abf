package pgvector

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

func TestBuildSearchQuery_NoFilters(t *testing.T) {
	sql, args := buildSearchQuery("documents", []float32{0.5, -1}, 5, filter.Filter{})

	if strings.Contains(sql, "WHERE") {
		t.Errorf("unfiltered query must not have a WHERE clause: %s", sql)
	}
	if !strings.Contains(sql, "1 - (embedding <=> $1::vector)") {
		t.Errorf("query must use the canonical similarity expression: %s", sql)
	}
	if !strings.HasSuffix(sql, "ORDER BY similarity DESC LIMIT $2") {
		t.Errorf("query must order by similarity and bind the limit: %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args (vector, limit), got %d", len(args))
	}
	if args[0] != "[0.5,-1]" {
		t.Errorf("vector literal = %v, want [0.5,-1]", args[0])
	}
	if args[1] != 5 {
		t.Errorf("limit arg = %v, want 5", args[1])
	}
}

func TestBuildSearchQuery_FiltersAreBound(t *testing.T) {
	f := filter.Filter{
		CollectionIDs: []string{"apollo", "x'); DROP TABLE documents;--"},
		Tags:          []string{"guidance"},
	}
	sql, args := buildSearchQuery("documents", []float32{1}, 3, f)

	if !strings.Contains(sql, "metadata->>'collection' = ANY($2)") {
		t.Errorf("collection filter must bind $2: %s", sql)
	}
	if !strings.Contains(sql, "metadata->'tags' ?| $3") {
		t.Errorf("tag filter must bind $3: %s", sql)
	}
	// Untrusted values never appear in query text.
	if strings.Contains(sql, "apollo") || strings.Contains(sql, "DROP TABLE") {
		t.Errorf("filter values leaked into query text: %s", sql)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[3] != 3 {
		t.Errorf("limit arg = %v, want 3", args[3])
	}
}

func TestBuildSearchQuery_TagsOnly(t *testing.T) {
	sql, args := buildSearchQuery("documents", []float32{1}, 2, filter.Filter{Tags: []string{"a", "b"}})

	if !strings.Contains(sql, "metadata->'tags' ?| $2") {
		t.Errorf("tag-only filter must bind $2: %s", sql)
	}
	if strings.Contains(sql, "collection") {
		t.Errorf("tag-only filter must not constrain collection: %s", sql)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
}

func TestVectorLiteral(t *testing.T) {
	got := vectorLiteral([]float32{0.1, 0, -2.5})
	if got != "[0.1,0,-2.5]" {
		t.Errorf("vectorLiteral = %q", got)
	}
	if vectorLiteral(nil) != "[]" {
		t.Errorf("empty vector literal = %q", vectorLiteral(nil))
	}
}

// sqlIncludes simulates the inclusion decision the compiled WHERE clause
// makes for a record, so the SQL path can be compared against the in-memory
// predicate without a database.
func sqlIncludes(f filter.Filter, collection string, tags []string) bool {
	if len(f.CollectionIDs) > 0 {
		found := false
		for _, c := range f.CollectionIDs {
			if c == collection {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestFilterParity_SQLvsInMemory(t *testing.T) {
	records := []struct {
		collection string
		tags       []string
	}{
		{"apollo", []string{"guidance", "agc"}},
		{"apollo", []string{"reentry"}},
		{"gemini", []string{"guidance"}},
		{"", nil},
	}
	filters := []filter.Filter{
		{},
		{CollectionIDs: []string{"apollo"}},
		{Tags: []string{"guidance", "telemetry"}},
		{CollectionIDs: []string{"apollo"}, Tags: []string{"guidance"}},
		{CollectionIDs: []string{"mercury"}},
	}

	for fi, f := range filters {
		for ri, rec := range records {
			sql := sqlIncludes(f, rec.collection, rec.tags)
			mem := f.Matches(rec.collection, rec.tags)
			if sql != mem {
				t.Errorf("filter %d, record %d: SQL path includes=%v, in-memory includes=%v",
					fi, ri, sql, mem)
			}
		}
	}
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]byte(`{"documentId": "d1", "chunkIndex": 2}`))
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if meta["documentId"] != "d1" {
		t.Errorf("documentId = %v", meta["documentId"])
	}

	if _, err := parseMetadata([]byte(`{broken`)); err == nil {
		t.Error("expected error for malformed metadata")
	}

	meta, err = parseMetadata(nil)
	if err != nil || meta == nil {
		t.Errorf("nil metadata must parse to empty map, got %v, %v", meta, err)
	}
}

func TestParseTags(t *testing.T) {
	logger := zap.NewNop()
	tags := parseTags([]byte(`["nasa","apollo"]`), logger)
	if len(tags) != 2 || tags[0] != "nasa" {
		t.Errorf("parseTags = %v", tags)
	}
	if got := parseTags([]byte(`{not an array}`), logger); len(got) != 0 {
		t.Errorf("malformed tags must yield empty list, got %v", got)
	}
	if got := parseTags(nil, logger); got == nil || len(got) != 0 {
		t.Errorf("nil tags must yield empty list, got %v", got)
	}
}
