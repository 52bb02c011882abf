package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chunkquery/internal/config"
	logpkg "github.com/kailas-cloud/chunkquery/internal/logger"
	"github.com/kailas-cloud/chunkquery/internal/metrics"
	"github.com/kailas-cloud/chunkquery/internal/store"
	"github.com/kailas-cloud/chunkquery/internal/store/pgvector"
	"github.com/kailas-cloud/chunkquery/internal/store/redisvec"
	openaiEmb "github.com/kailas-cloud/chunkquery/internal/transport/openai"
	"github.com/kailas-cloud/chunkquery/internal/transport/rest"
	healthuc "github.com/kailas-cloud/chunkquery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/chunkquery/internal/usecase/search"
	statusuc "github.com/kailas-cloud/chunkquery/internal/usecase/status"
	"github.com/kailas-cloud/chunkquery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chunkquery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("pgvector_enabled", cfg.Backends.PGVector.Enabled),
		zap.Bool("redis_enabled", cfg.Backends.Redis.Enabled),
	)

	metrics.RegisterSearchMetrics()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	ctx := context.Background()

	// Build one adapter per enabled backend. A backend failing to
	// initialize is logged and skipped so the others still serve; the
	// status endpoint surfaces the gap.
	var (
		adapters []store.Adapter
		closers  []func()
	)

	if cfg.Backends.PGVector.Enabled {
		pg, err := pgvector.New(ctx, pgvector.Config{
			DSN:    cfg.Backends.PGVector.DSN,
			Table:  cfg.Backends.PGVector.Table,
			Embed:  embedder,
			Logger: logger,
		})
		if err != nil {
			logger.Error("Failed to initialize pgvector backend", zap.Error(err))
		} else {
			adapters = append(adapters, pg)
			closers = append(closers, pg.Close)
			logger.Info("pgvector backend registered", zap.String("table", cfg.Backends.PGVector.Table))
		}
	}

	if cfg.Backends.Redis.Enabled {
		rd, err := redisvec.New(redisvec.Config{
			Addrs:        cfg.Backends.Redis.Addrs,
			Password:     cfg.Backends.Redis.Password,
			Index:        cfg.Backends.Redis.Index,
			ContentField: cfg.Backends.Redis.ContentField,
			VectorField:  cfg.Backends.Redis.VectorField,
			Embed:        embedder,
			Logger:       logger,
		})
		if err != nil {
			logger.Error("Failed to initialize redis backend", zap.Error(err))
		} else {
			if err := rd.WaitForReady(ctx, 10*time.Second); err != nil {
				logger.Warn("Redis not ready yet, registering anyway", zap.Error(err))
			}
			adapters = append(adapters, rd)
			closers = append(closers, rd.Close)
			logger.Info("redis backend registered", zap.String("index", cfg.Backends.Redis.Index))
		}
	}

	if len(adapters) == 0 {
		logger.Fatal("No vector backend could be initialized")
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	registry := store.NewRegistry(adapters...)

	var collections rest.CollectionLister
	if cr, ok := registry.FirstCollectionReader(); ok {
		collections = cr
	}

	searchAdapters := make([]searchuc.Adapter, 0, len(adapters))
	checkers := make([]statusuc.Checker, 0, len(adapters))
	pingers := make(map[string]healthuc.Pinger, len(adapters))
	for _, a := range registry.All() {
		searchAdapters = append(searchAdapters, a)
		checkers = append(checkers, a)
		pingers[a.Backend().ID] = a
	}

	searchSvc := searchuc.New(
		searchAdapters,
		time.Duration(cfg.Search.BackendTimeoutSec)*time.Second,
		logger,
	)
	statusSvc := statusuc.New(checkers)
	healthSvc := healthuc.New(pingers)

	server := rest.NewServer(rest.Config{
		Backends:    registry.Backends(),
		Search:      searchSvc,
		Status:      statusSvc,
		Health:      healthSvc,
		Collections: collections,
		DefaultK:    cfg.Search.DefaultK,
		MaxK:        cfg.Search.MaxK,
		Logger:      logger,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
