package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
	"github.com/kailas-cloud/chunkquery/internal/metrics"
)

// Service orchestrates similarity search across the configured backends:
// SQL fast path first, then a concurrent fan-out over the generic path,
// followed by normalization, a stable merge sort, and truncation to k.
type Service struct {
	adapters       []Adapter
	backendTimeout time.Duration
	logger         *zap.Logger
}

// New creates a search orchestrator owning its adapter set.
func New(adapters []Adapter, backendTimeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		adapters:       adapters,
		backendTimeout: backendTimeout,
		logger:         logger,
	}
}

// Search returns at most k matches ordered by similarity descending.
//
// When the SQL backend is enabled, not excluded by the backend filter, and
// yields a non-empty result, that result is returned directly without
// consulting other enabled backends; matches from other backends are
// silently omitted in that case.
//
// k <= 0 yields an empty list. Unknown backend ids in the filter are
// ignored. A single backend's failure never aborts the others; an embedding
// provider failure aborts the whole call since nothing can be scored
// without a query vector.
func (s *Service) Search(
	ctx context.Context, query string, k int, f filter.Filter,
) ([]domain.Match, error) {
	if k <= 0 {
		return []domain.Match{}, nil
	}

	if matches, ok := s.tryFastPath(ctx, query, k, f); ok {
		return matches, nil
	}

	candidates := s.candidates(f)
	if len(candidates) == 0 {
		return []domain.Match{}, nil
	}

	perBackend := make([][]domain.Match, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range candidates {
		g.Go(func() error {
			matches, err := s.searchBackend(gctx, a, query, k, f)
			if err != nil {
				// Without a query vector no backend can score anything.
				if errors.Is(err, domain.ErrEmbedding) {
					return err
				}
				s.logger.Warn("backend search failed",
					zap.String("backend", a.Backend().ID), zap.Error(err))
				return nil
			}
			perBackend[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Concatenate in registration order so ties keep backend-then-arrival
	// order under the stable sort; the merge is deterministic regardless of
	// which backend task finished first.
	merged := make([]domain.Match, 0, k)
	for _, matches := range perBackend {
		merged = append(merged, matches...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// tryFastPath runs the direct SQL search. Reports ok=false on any error or
// empty result so the caller proceeds to the generic path.
func (s *Service) tryFastPath(
	ctx context.Context, query string, k int, f filter.Filter,
) ([]domain.Match, bool) {
	var sqlAdapter Adapter
	for _, a := range s.adapters {
		if a.Backend().Kind == domain.KindSQLVector {
			sqlAdapter = a
			break
		}
	}
	if sqlAdapter == nil || !f.AllowsBackend(sqlAdapter.Backend().ID) {
		return nil, false
	}

	start := time.Now()
	bctx, cancel := s.backendContext(ctx)
	defer cancel()

	records, err := sqlAdapter.Search(bctx, query, k, f)
	backendID := sqlAdapter.Backend().ID
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(backendID, "fast", "error").Inc()
		s.logger.Warn("fast path failed, falling back to generic search",
			zap.String("backend", backendID), zap.Error(err))
		return nil, false
	}
	metrics.SearchRequestsTotal.WithLabelValues(backendID, "fast", "success").Inc()
	metrics.SearchDuration.WithLabelValues(backendID, "fast").Observe(time.Since(start).Seconds())

	if len(records) == 0 {
		return nil, false
	}

	matches := normalizeAll(records, sqlAdapter.Backend())
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, true
}

// candidates is the intersection of configured backends and the backend
// filter, in registration order.
func (s *Service) candidates(f filter.Filter) []Adapter {
	out := make([]Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		if f.AllowsBackend(a.Backend().ID) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) searchBackend(
	ctx context.Context, a Adapter, query string, k int, f filter.Filter,
) ([]domain.Match, error) {
	backend := a.Backend()
	start := time.Now()

	bctx, cancel := s.backendContext(ctx)
	defer cancel()

	records, err := a.Search(bctx, query, k, f)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(backend.ID, "generic", "error").Inc()
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(backend.ID, "generic", "success").Inc()
	metrics.SearchDuration.WithLabelValues(backend.ID, "generic").Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.WithLabelValues(backend.ID).Observe(float64(len(records)))

	return normalizeAll(records, backend), nil
}

// backendContext caps each per-backend call so no single backend's timeout
// can block the others indefinitely.
func (s *Service) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.backendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.backendTimeout)
}
