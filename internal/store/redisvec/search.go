package redisvec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// searchEntry is one parsed FT.SEARCH hit.
type searchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// buildKNNQuery compiles the filter into an FT.SEARCH pre-filter and
// attaches the KNN clause: "(@collection:{a|b} @tags:{x|y})=>[KNN k @vector $BLOB]".
// OR within a dimension maps to the TAG alternation syntax, AND across
// dimensions to juxtaposition. Every user value passes through the escaper.
func buildKNNQuery(f filter.Filter, k int, vectorField string) string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", k, vectorField)

	filterStr := buildPreFilter(f)
	if filterStr == "" {
		return "*=>" + knnPart
	}
	return fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
}

func buildPreFilter(f filter.Filter) string {
	var parts []string
	if len(f.CollectionIDs) > 0 {
		parts = append(parts, buildTagFilter("collection", f.CollectionIDs))
	}
	if len(f.Tags) > 0 {
		parts = append(parts, buildTagFilter("tags", f.Tags))
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(key string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, "|"))
}

// parseKNNResult walks the RESP2 2-stride reply: [total, key1, fields1, ...].
// Entries that fail to parse are dropped rather than failing the batch.
func parseKNNResult(raw []rueidis.RedisMessage, scoreField string) []searchEntry {
	if len(raw) == 0 {
		return nil
	}

	total, err := raw[0].AsInt64()
	if err != nil || total == 0 {
		return nil
	}

	entries := make([]searchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := searchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if scoreStr, ok := entry.Fields[scoreField]; ok {
			if s, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-s) // cosine distance → similarity, clamped to [0,1]
			}
			delete(entry.Fields, scoreField)
		}

		entries = append(entries, entry)
	}

	return entries
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// parseNumDocs extracts num_docs from an FT.INFO reply.
func parseNumDocs(raw []rueidis.RedisMessage) int {
	for i := 0; i+1 < len(raw); i += 2 {
		name, err := raw[i].ToString()
		if err != nil || name != "num_docs" {
			continue
		}
		if n, err := raw[i+1].AsInt64(); err == nil {
			return int(n)
		}
		if s, err := raw[i+1].ToString(); err == nil {
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
		}
	}
	return 0
}

// tagEscaper escapes TAG syntax characters in user-supplied filter values.
var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)
