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

	"github.com/careatlas/caresearch/internal/config"
	"github.com/careatlas/caresearch/internal/db"
	dbRedis "github.com/careatlas/caresearch/internal/db/redis"
	"github.com/careatlas/caresearch/internal/domain"
	logpkg "github.com/careatlas/caresearch/internal/logger"
	"github.com/careatlas/caresearch/internal/metrics"
	doctorrepo "github.com/careatlas/caresearch/internal/repository/doctor"
	"github.com/careatlas/caresearch/internal/repository/embcache"
	hospitalrepo "github.com/careatlas/caresearch/internal/repository/hospital"
	chiTransport "github.com/careatlas/caresearch/internal/transport/chi"
	openaiEmb "github.com/careatlas/caresearch/internal/transport/openai"
	combineduc "github.com/careatlas/caresearch/internal/usecase/combined"
	embeddinguc "github.com/careatlas/caresearch/internal/usecase/embedding"
	healthuc "github.com/careatlas/caresearch/internal/usecase/health"
	indexinguc "github.com/careatlas/caresearch/internal/usecase/indexing"
	searchuc "github.com/careatlas/caresearch/internal/usecase/search"
	"github.com/careatlas/caresearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting caresearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// rueidis speaks to both Redis and Valkey; the driver field only
	// gates unknown values.
	var store db.Store
	switch cfg.Database.Driver {
	case "redis", "valkey":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Build embedder chain — composition root
	embedder := buildEmbedder(cfg.Embedding, logger)
	// Queries repeat far more often than catalog records change, so the
	// cache decorates the query-side embedder only.
	queryEmbedder := embcache.New(
		embedder, store,
		time.Duration(cfg.Indexing.CacheTTLHours)*time.Hour,
		metrics.EmbeddingCacheTotal, logger,
	)
	logger.Info("Embedders created",
		zap.String("primary", cfg.Embedding.Primary),
		zap.String("fallback", cfg.Embedding.Fallback),
	)

	// Create repositories
	hospRepo := hospitalrepo.New(store)
	docRepo := doctorrepo.New(store)

	if err := hospRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create hospital index", zap.Error(err))
	}
	if err := docRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create doctor index", zap.Error(err))
	}

	// Create use case services
	searchDefaults := domain.SearchOptions{
		SemanticWeight:      cfg.Search.SemanticWeight,
		TextWeight:          cfg.Search.TextWeight,
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		Limit:               cfg.Search.DefaultLimit,
	}
	searchSvc := searchuc.New(hospRepo, queryEmbedder, searchDefaults, logger)
	combinedSvc := combineduc.New(hospRepo, docRepo, logger).
		WithLimits(cfg.Search.HospitalLimit, cfg.Search.DoctorLimit)
	indexingSvc := indexinguc.New(hospRepo, hospRepo, hospRepo, hospRepo, embedder, logger).
		WithBatching(cfg.Indexing.BatchSize, time.Duration(cfg.Indexing.BatchDelayMs)*time.Millisecond)
	healthSvc := healthuc.New(store, store, hospRepo.IndexName(), newEmbeddingHealthChecker(embedder))

	// Create chi server
	server := chiTransport.NewServer(searchSvc, combinedSvc, indexingSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, logger))
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

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the provider chain: primary OpenAI-compatible
// provider with an optional fallback provider behind it.
func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) *embeddinguc.FallbackEmbedder {
	primaryCfg := cfg.Providers[cfg.Primary]
	primary := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     primaryCfg.APIKey,
		BaseURL:    primaryCfg.BaseURL,
		Model:      primaryCfg.Model,
		Dimensions: primaryCfg.Dimensions,
		Provider:   cfg.Primary,
		Logger:     logger,
	})

	var fallback domain.Embedder
	if cfg.Fallback != "" {
		fbCfg := cfg.Providers[cfg.Fallback]
		fallback = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     fbCfg.APIKey,
			BaseURL:    fbCfg.BaseURL,
			Model:      fbCfg.Model,
			Dimensions: fbCfg.Dimensions,
			Provider:   cfg.Fallback,
			Logger:     logger,
		})
	}

	dims := primaryCfg.Dimensions
	if dims == 0 {
		dims = domain.VectorDimensions
	}
	return embeddinguc.NewFallbackEmbedder(
		primary, cfg.Primary,
		fallback, cfg.Fallback,
		dims, logger,
	)
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
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
