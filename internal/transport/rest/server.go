// Package rest exposes the search service over HTTP: a thin routing layer
// over the orchestrator with a narrow, stable JSON contract.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
	"github.com/kailas-cloud/chunkquery/internal/usecase/health"
	"github.com/kailas-cloud/chunkquery/internal/usecase/status"
	"github.com/kailas-cloud/chunkquery/internal/version"
)

// Searcher runs a similarity search.
type Searcher interface {
	Search(ctx context.Context, query string, k int, f filter.Filter) ([]domain.Match, error)
}

// StatusChecker reports per-backend health.
type StatusChecker interface {
	Check(ctx context.Context) status.Report
}

// HealthChecker reports aggregate liveness.
type HealthChecker interface {
	Check(ctx context.Context) (health.Status, map[string]bool)
}

// CollectionLister reads the configured collections. May be nil when no
// backend persists collections.
type CollectionLister interface {
	Collections(ctx context.Context) ([]domain.Collection, error)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	backends    []domain.Backend
	search      Searcher
	status      StatusChecker
	health      HealthChecker
	collections CollectionLister
	defaultK    int
	maxK        int
	logger      *zap.Logger
}

// Config wires a Server.
type Config struct {
	Backends    []domain.Backend
	Search      Searcher
	Status      StatusChecker
	Health      HealthChecker
	Collections CollectionLister
	DefaultK    int
	MaxK        int
	Logger      *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(cfg Config) *Server {
	return &Server{
		backends:    cfg.Backends,
		search:      cfg.Search,
		status:      cfg.Status,
		health:      cfg.Health,
		collections: cfg.Collections,
		defaultK:    cfg.DefaultK,
		maxK:        cfg.MaxK,
		logger:      cfg.Logger,
	}
}

// Routes mounts the handlers on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/vector-stores", s.listBackends)
	r.Get("/vector-stores/status", s.backendStatus)
	r.Get("/collections", s.listCollections)
	r.Get("/search", s.searchDocuments)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// listBackends handles GET /vector-stores.
func (s *Server) listBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backends)
}

// backendStatus handles GET /vector-stores/status. Always 200: a backend
// being down is detail, not a response failure.
func (s *Server) backendStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Check(r.Context()))
}

// listCollections handles GET /collections.
func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	if s.collections == nil {
		writeJSON(w, http.StatusOK, []domain.Collection{})
		return
	}

	cols, err := s.collections.Collections(r.Context())
	if err != nil {
		s.logger.Error("list collections failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if cols == nil {
		cols = []domain.Collection{}
	}
	writeJSON(w, http.StatusOK, cols)
}

// searchDocuments handles GET /search. A well-formed request always gets a
// 200 with a (possibly empty) list; only malformed parameters are 4xx.
func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query parameter is required")
		return
	}

	k := s.defaultK
	if raw := q.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "k must be an integer")
			return
		}
		k = parsed
	}
	if k > s.maxK {
		k = s.maxK
	}

	f := filter.Filter{
		BackendIDs:    q["backend_id"],
		CollectionIDs: q["collection_id"],
		Tags:          q["tag"],
	}

	matches, err := s.search.Search(r.Context(), query, k, f)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			s.logger.Warn("search failed: embedding provider", zap.Error(err))
			writeError(w, http.StatusBadGateway, "embedding_provider_error",
				"embedding provider error")
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	st, _ := s.health.Check(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(st),
		"version": version.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
