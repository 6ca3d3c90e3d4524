package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/config"
	"github.com/fraim-dev/contextd/internal/db"
	dbEmbedded "github.com/fraim-dev/contextd/internal/db/embedded"
	dbRedis "github.com/fraim-dev/contextd/internal/db/redis"
	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	logpkg "github.com/fraim-dev/contextd/internal/logger"
	"github.com/fraim-dev/contextd/internal/metrics"
	documentrepo "github.com/fraim-dev/contextd/internal/repository/document"
	"github.com/fraim-dev/contextd/internal/repository/embcache"
	projectrepo "github.com/fraim-dev/contextd/internal/repository/project"
	"github.com/fraim-dev/contextd/internal/repository/resultcache"
	searchrepo "github.com/fraim-dev/contextd/internal/repository/search"
	chiTransport "github.com/fraim-dev/contextd/internal/transport/chi"
	"github.com/fraim-dev/contextd/internal/transport/llm"
	mcpTransport "github.com/fraim-dev/contextd/internal/transport/mcp"
	openaiEmb "github.com/fraim-dev/contextd/internal/transport/openai"
	"github.com/fraim-dev/contextd/internal/transport/rerank"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
	documentuc "github.com/fraim-dev/contextd/internal/usecase/document"
	embeddinguc "github.com/fraim-dev/contextd/internal/usecase/embedding"
	healthuc "github.com/fraim-dev/contextd/internal/usecase/health"
	projectuc "github.com/fraim-dev/contextd/internal/usecase/project"
	searchuc "github.com/fraim-dev/contextd/internal/usecase/search"
	transformuc "github.com/fraim-dev/contextd/internal/usecase/transform"
	"github.com/fraim-dev/contextd/internal/version"
	"github.com/fraim-dev/contextd/internal/worker"
)

func main() {
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

	logger.Info("Starting contextd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "embedded":
		store = dbEmbedded.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Embedder chain — composition root.
	// OpenAI -> Retry -> Cached -> Instruction; the instruction sits above the
	// cache so document and query renditions of the same text never collide.
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	retried := embeddinguc.NewRetryEmbedder(base,
		cfg.Embedding.MaxAttempts,
		time.Duration(cfg.Embedding.RetryBackoffMs)*time.Millisecond,
		logger)
	cached := embcache.New(retried, store, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger)

	docEmbedder := withInstruction(cached, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(cached, cfg.Embedding.QueryInstruction)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// The dimension contract is corpus-wide: a provider returning the wrong
	// width would poison every index, so refuse to start.
	validateDimension(ctx, base, logger)

	// Repositories
	projectRepo := projectrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions).
		WithHNSW(projectrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
	docRepo := documentrepo.New(store, cfg.Storage.KeyPrefix)
	searchRepo := searchrepo.New(store, cfg.Storage.KeyPrefix)
	cache := resultcache.New(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Search.CacheTTLSec)*time.Second)

	// Query transformer: optional, pool-bounded so a stuck model call can
	// never stall the orchestrator.
	var transformer searchuc.Transformer
	var pool *worker.Pool
	if cfg.Transform.Enabled {
		model, err := llm.NewTransformer(&llm.Config{
			BaseURL: cfg.Transform.BaseURL,
			APIKey:  cfg.Transform.APIKey,
			Model:   cfg.Transform.Model,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal("Failed to create query transformer", zap.Error(err))
		}
		pool, err = worker.NewPool(cfg.Transform.PoolSize)
		if err != nil {
			logger.Fatal("Failed to create worker pool", zap.Error(err))
		}
		defer pool.Release()
		transformer = transformuc.New(model, pool,
			time.Duration(cfg.Transform.TimeoutMs)*time.Millisecond)
		logger.Info("Query transformer enabled", zap.String("model", cfg.Transform.Model))
	}

	// Reranker: optional; requests asking for it degrade to fused order
	// when unconfigured.
	var reranker domain.Reranker
	if cfg.Rerank.URL != "" {
		reranker = rerank.NewClient(&rerank.Config{
			URL:     cfg.Rerank.URL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Rerank.TimeoutMs) * time.Millisecond,
			Logger:  logger,
		})
		logger.Info("Reranker enabled", zap.String("url", cfg.Rerank.URL))
	}

	// Use case services
	projectSvc := projectuc.New(projectRepo)
	docSvc := documentuc.New(docRepo, projectRepo, docEmbedder)
	searchSvc := searchuc.New(projectRepo, searchRepo, cache, queryEmbedder,
		transformer, reranker, searchuc.Options{
			Weights: searchuc.Weights{
				Vector:  cfg.Search.VectorWeight,
				Lexical: cfg.Search.LexicalWeight,
			},
			RerankTimeout: time.Duration(cfg.Rerank.TimeoutMs) * time.Millisecond,
		})
	deepSvc := deepuc.New(searchSvc, deepuc.Options{
		MaxRounds:     cfg.Deep.MaxRounds,
		TopKPerDomain: request.DefaultTopK,
	})
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(base))

	// HTTP transport
	server := chiTransport.NewServer(searchSvc, deepSvc, projectSvc, docSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Optional MCP server over stdio alongside HTTP.
	mcpCtx, stopMCP := context.WithCancel(ctx)
	defer stopMCP()
	if cfg.MCP.Enabled {
		mcpSrv := mcpTransport.NewServer(searchSvc, deepSvc, logger)
		go func() {
			if err := mcpSrv.Run(mcpCtx, "contextd", version.Version); err != nil &&
				!errors.Is(err, context.Canceled) {
				logger.Error("MCP server stopped", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopMCP()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// batchingEmbedder is an embedder with native batch support.
type batchingEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// withInstruction wraps an embedder with instruction prefixing when configured.
func withInstruction(inner batchingEmbedder, instruction string) batchingEmbedder {
	if instruction == "" {
		return inner
	}
	return domain.NewInstructionEmbedder(inner, instruction)
}

// validateDimension probes the provider once and refuses to start on a
// dimension mismatch. An unreachable provider is transient and only logged:
// per-request retries and the health endpoint cover it.
func validateDimension(ctx context.Context, embedder domain.Embedder, logger *zap.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := embedder.Embed(probeCtx, "dimension probe"); err != nil {
		if errors.Is(err, domain.ErrVectorDimMismatch) {
			logger.Fatal("Embedding dimension mismatch", zap.Error(err))
		}
		logger.Warn("Embedding provider probe failed", zap.Error(err))
	}
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
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
