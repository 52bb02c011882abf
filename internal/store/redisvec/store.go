// Package redisvec implements the generic fallback adapter: similarity
// search through the Redis FT.SEARCH nearest-neighbors capability, with no
// direct SQL access to the stored data.
package redisvec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the generic vector adapter over rueidis for Redis 8+.
type Store struct {
	client       rueidis.Client
	index        string
	contentField string
	vectorField  string
	backend      domain.Backend
	embed        Embedder
	logger       *zap.Logger
}

// Config holds connection parameters for a Redis vector store.
type Config struct {
	Addrs        []string
	Password     string
	Index        string
	ContentField string
	VectorField  string
	Embed        Embedder
	Logger       *zap.Logger
}

// New creates a Redis vector store via rueidis.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{
		client:       client,
		index:        cfg.Index,
		contentField: cfg.ContentField,
		vectorField:  cfg.VectorField,
		backend: domain.Backend{
			ID:          "redis-1",
			Name:        "Redis Vector DB",
			Kind:        domain.KindGenericVector,
			Description: "Redis with FT.SEARCH vector similarity",
		},
		embed:  cfg.Embed,
		logger: cfg.Logger,
	}, nil
}

// Backend returns the immutable backend descriptor.
func (s *Store) Backend() domain.Backend { return s.backend }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() { s.client.Close() }

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Search embeds the query and runs a KNN similarity search via FT.SEARCH.
// The filter compiles to a TAG pre-filter; an in-memory guard re-checks each
// hit so the inclusion decision matches the SQL path exactly.
func (s *Store) Search(
	ctx context.Context, query string, k int, f filter.Filter,
) ([]domain.Record, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	queryStr := buildKNNQuery(f, k, s.vectorField)

	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.index, queryStr,
			"PARAMS", "2", "BLOB", vectorToBytes(vec),
			"DIALECT", "2").
		Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, fmt.Errorf("%w: index %q: %w", domain.ErrSchemaMissing, s.index, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}

	entries := parseKNNResult(raw, s.scoreField())

	records := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		rec := s.entryToRecord(e)
		collection, tags := metadataFilterValues(rec.Metadata)
		if !f.Matches(collection, tags) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Status reports connectivity and index document count.
func (s *Store) Status(ctx context.Context) domain.BackendStatus {
	st := domain.BackendStatus{
		Name:   s.backend.Name,
		Status: domain.StatusError,
	}

	if err := s.Ping(ctx); err != nil {
		st.Details = fmt.Sprintf("Failed to connect to Redis: %v", err)
		return st
	}

	cmd := s.client.B().Arbitrary("FT.INFO").Args(s.index).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			st.Status = domain.StatusWarning
			st.Details = fmt.Sprintf("Connected to Redis but index %q does not exist.", s.index)
			return st
		}
		st.Details = fmt.Sprintf("Failed to inspect index: %v", err)
		return st
	}

	count := parseNumDocs(raw)
	st.Status = domain.StatusOK
	st.DocumentCount = count
	st.Details = fmt.Sprintf("Connected to Redis. %d documents found.", count)
	return st
}

// scoreField is the alias FT.SEARCH gives the KNN distance.
func (s *Store) scoreField() string {
	return "__" + s.vectorField + "_score"
}

// entryToRecord maps a redis hash entry onto the raw record shape shared by
// all adapters. Hash fields double as chunk metadata; tags are stored
// comma-separated the way TAG fields are indexed.
func (s *Store) entryToRecord(e searchEntry) domain.Record {
	meta := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		switch k {
		case s.contentField, s.vectorField:
			continue
		case "tags":
			meta[k] = splitTags(v)
		case "chunkIndex":
			if idx, err := strconv.Atoi(v); err == nil {
				meta[k] = idx
			}
		default:
			meta[k] = v
		}
	}

	return domain.Record{
		Content:    e.Fields[s.contentField],
		Metadata:   meta,
		Similarity: e.Score,
	}
}

func splitTags(v string) []string {
	if v == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// metadataFilterValues extracts the collection and tag attributes the filter
// predicate evaluates.
func metadataFilterValues(meta map[string]any) (string, []string) {
	collection, _ := meta["collection"].(string)
	tags, _ := meta["tags"].([]string)
	return collection, tags
}

// vectorToBytes encodes a vector as the little-endian float32 BLOB FT.SEARCH
// expects in PARAMS.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr
// (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
