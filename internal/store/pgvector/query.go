package pgvector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// buildSearchQuery compiles the similarity query. All per-request values —
// the query vector, collection ids, tags, and the limit — travel as bound
// parameters; only the pre-validated table name appears in the text.
func buildSearchQuery(table string, vec []float32, k int, f filter.Filter) (string, []any) {
	var sb strings.Builder
	args := []any{vectorLiteral(vec)}

	sb.WriteString("SELECT content, metadata, 1 - (embedding <=> $1::vector) AS similarity FROM ")
	sb.WriteString(table)

	var clauses []string
	if len(f.CollectionIDs) > 0 {
		args = append(args, f.CollectionIDs)
		clauses = append(clauses,
			fmt.Sprintf("metadata->>'collection' = ANY($%d)", len(args)))
	}
	if len(f.Tags) > 0 {
		// jsonb ?| matches when the tags array contains any requested tag.
		args = append(args, f.Tags)
		clauses = append(clauses,
			fmt.Sprintf("metadata->'tags' ?| $%d", len(args)))
	}
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	args = append(args, k)
	sb.WriteString(fmt.Sprintf(" ORDER BY similarity DESC LIMIT $%d", len(args)))

	return sb.String(), args
}

// vectorLiteral renders a pgvector text literal: "[0.1,0.2,...]".
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
