// Package pgvector implements the SQL fast-path adapter: similarity search
// run directly against PostgreSQL with the pgvector extension for lowest
// latency and full filter fidelity.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the SQL vector adapter over a pgxpool. The pool is shared across
// concurrent searches; per-call exclusivity is pool-level.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	backend domain.Backend
	embed   Embedder
	logger  *zap.Logger
}

// Config holds the adapter settings. Table must be a validated identifier;
// it is the only value interpolated into query text.
type Config struct {
	DSN    string
	Table  string
	Embed  Embedder
	Logger *zap.Logger
}

// New connects a pgvector store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}

	return &Store{
		pool:  pool,
		table: cfg.Table,
		backend: domain.Backend{
			ID:          "pgvector-1",
			Name:        "PostgreSQL Vector DB",
			Kind:        domain.KindSQLVector,
			Description: "Local PostgreSQL with pgvector extension",
		},
		embed:  cfg.Embed,
		logger: cfg.Logger,
	}, nil
}

// Backend returns the immutable backend descriptor.
func (s *Store) Backend() domain.Backend { return s.backend }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Search embeds the query and runs cosine similarity directly in SQL:
// 1 - (embedding <=> query) is the canonical similarity definition for the
// whole system. Filter values are bound parameters, never interpolated.
// Rows that fail to parse are logged and skipped; any query-level error is
// returned so the orchestrator can fall back to the generic path.
func (s *Store) Search(
	ctx context.Context, query string, k int, f filter.Filter,
) ([]domain.Record, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sql, args := buildSearchQuery(s.table, vec, k, f)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgErr(err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			content    string
			rawMeta    []byte
			similarity float64
		)
		if err := rows.Scan(&content, &rawMeta, &similarity); err != nil {
			s.logger.Warn("skipping unreadable row",
				zap.String("backend", s.backend.ID), zap.Error(err))
			continue
		}

		meta, err := parseMetadata(rawMeta)
		if err != nil {
			s.logger.Warn("skipping row with malformed metadata",
				zap.String("backend", s.backend.ID), zap.Error(err))
			continue
		}

		records = append(records, domain.Record{
			Content:    content,
			Metadata:   meta,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgErr(err)
	}

	return records, nil
}

// Status reports connectivity, table presence, document count, and vector
// dimensionality the way the status endpoint expects.
func (s *Store) Status(ctx context.Context) domain.BackendStatus {
	st := domain.BackendStatus{
		Name:   s.backend.Name,
		Status: domain.StatusError,
	}

	var tableExists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)`, s.table).Scan(&tableExists)
	if err != nil {
		st.Details = fmt.Sprintf("Failed to connect to database: %v", err)
		return st
	}

	if !tableExists {
		st.Status = domain.StatusWarning
		st.Details = fmt.Sprintf("Connected to database but table %q does not exist.", s.table)
		return st
	}

	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count); err != nil {
		st.Details = fmt.Sprintf("Failed to count documents: %v", err)
		return st
	}

	// Dimensionality probe is best-effort: an empty table has no vectors.
	var dims int
	err = s.pool.QueryRow(ctx,
		"SELECT vector_dims(embedding) FROM "+s.table+" WHERE embedding IS NOT NULL LIMIT 1",
	).Scan(&dims)
	if err == nil {
		st.Dimensions = dims
	}

	st.Status = domain.StatusOK
	st.DocumentCount = count
	st.Details = fmt.Sprintf("Connected to database. %d documents found.", count)
	return st
}

// Collections reads the collections table. A missing table yields an empty
// list rather than an error; per-row tag parse failures are logged and the
// row keeps an empty tag set.
func (s *Store) Collections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, description, tags FROM collections")
	if err != nil {
		if isUndefinedTable(err) {
			s.logger.Warn("collections table does not exist")
			return nil, nil
		}
		return nil, classifyPgErr(err)
	}
	defer rows.Close()

	var cols []domain.Collection
	for rows.Next() {
		var (
			col         domain.Collection
			description *string
			rawTags     []byte
		)
		if err := rows.Scan(&col.ID, &col.Name, &description, &rawTags); err != nil {
			s.logger.Warn("skipping unreadable collection row", zap.Error(err))
			continue
		}
		if description != nil {
			col.Description = *description
		}
		col.Tags = parseTags(rawTags, s.logger)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgErr(err)
	}

	return cols, nil
}

func parseMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedRecord, err)
	}
	return meta, nil
}

func parseTags(raw []byte, logger *zap.Logger) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		logger.Warn("malformed tags JSON, using empty list", zap.Error(err))
		return []string{}
	}
	return tags
}

// classifyPgErr maps PostgreSQL errors onto the domain taxonomy: a missing
// relation is a schema problem, everything else means the backend is not
// usable for this call.
func classifyPgErr(err error) error {
	if isUndefinedTable(err) {
		return fmt.Errorf("%w: %w", domain.ErrSchemaMissing, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
