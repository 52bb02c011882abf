package search

import (
	"math"

	"github.com/google/uuid"

	"github.com/kailas-cloud/chunkquery/internal/domain"
)

// unknownDocumentName is reported when the stored metadata carries no name.
const unknownDocumentName = "Unknown Document"

// normalizeAll maps raw backend records into canonical matches. The mapping
// is identical for every adapter so results are indistinguishable in shape.
func normalizeAll(records []domain.Record, backend domain.Backend) []domain.Match {
	matches := make([]domain.Match, len(records))
	for i, rec := range records {
		matches[i] = normalize(rec, backend)
	}
	return matches
}

// normalize enforces the output invariants: ids are never empty (missing
// ones get a fresh unique identifier, never reused across matches), tags
// default to empty, and similarity is never NaN and stays within [0, 1].
func normalize(rec domain.Record, backend domain.Backend) domain.Match {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	return domain.Match{
		Content:      rec.Content,
		DocumentID:   stringOr(meta, "documentId", uuid.NewString),
		DocumentName: stringOrDefault(meta, "documentName", unknownDocumentName),
		ChunkID:      stringOr(meta, "chunkId", uuid.NewString),
		ChunkIndex:   intPtr(meta, "chunkIndex"),
		Tags:         stringSlice(meta, "tags"),
		SourceID:     backend.ID,
		SourceName:   backend.Name,
		SourceKind:   string(backend.Kind),
		Similarity:   sanitizeSimilarity(rec.Similarity),
	}
}

// sanitizeSimilarity coerces NaN to 0 and clamps float drift into [0, 1].
func sanitizeSimilarity(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Min(1, math.Max(0, s))
}

func stringOr(meta map[string]any, key string, generate func() string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return generate()
}

func stringOrDefault(meta map[string]any, key, def string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intPtr reads an optional integer attribute. JSON decoding yields float64,
// the redis adapter yields int; both are accepted.
func intPtr(meta map[string]any, key string) *int {
	switch v := meta[key].(type) {
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	default:
		return nil
	}
}

// stringSlice reads a tag list from metadata that may come as []string
// (redis adapter) or []any (decoded JSON).
func stringSlice(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
