package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/config"
	"github.com/kailas-cloud/ragline/internal/db"
	dbRedis "github.com/kailas-cloud/ragline/internal/db/redis"
	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/extract"
	logpkg "github.com/kailas-cloud/ragline/internal/logger"
	"github.com/kailas-cloud/ragline/internal/metrics"
	catalogrepo "github.com/kailas-cloud/ragline/internal/repository/catalog"
	"github.com/kailas-cloud/ragline/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/ragline/internal/repository/index"
	"github.com/kailas-cloud/ragline/internal/repository/webcache"
	chiTransport "github.com/kailas-cloud/ragline/internal/transport/chi"
	"github.com/kailas-cloud/ragline/internal/transport/fetch"
	openaiTransport "github.com/kailas-cloud/ragline/internal/transport/openai"
	"github.com/kailas-cloud/ragline/internal/transport/tavily"
	answeruc "github.com/kailas-cloud/ragline/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/ragline/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragline/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragline/internal/usecase/ingest"
	rankuc "github.com/kailas-cloud/ragline/internal/usecase/rank"
	researchuc "github.com/kailas-cloud/ragline/internal/usecase/research"
	synthesisuc "github.com/kailas-cloud/ragline/internal/usecase/synthesis"
	"github.com/kailas-cloud/ragline/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

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

	logger.Info("Starting ragline API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
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
	metrics.RegisterPipelineMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterResearchMetrics()

	// Build embedder chains — composition root. Documents and queries get
	// separate chains because asymmetric models want different instructions.
	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Vector index and document catalog
	vecCfg := domain.VectorConfig{
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		DistanceMetric: "cosine",
		Algorithm:      cfg.Index.Algorithm,
	}
	indexRepo := indexrepo.New(store, vecCfg, logger).WithHNSW(indexrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := indexRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index schema", zap.Error(err))
	}
	catalogRepo := catalogrepo.New(store)

	// Ingestion pipeline
	docChunker, err := ingestuc.NewChunker(domain.ChunkingConfig{
		MaxChunkSize:   cfg.Chunking.MaxChunkSize,
		OverlapSize:    cfg.Chunking.OverlapSize,
		MinChunkSize:   cfg.Chunking.MinChunkSize,
		SplitSentences: cfg.Chunking.SplitSentences,
	})
	if err != nil {
		logger.Fatal("Invalid document chunking config", zap.Error(err))
	}
	ingestSvc := ingestuc.New(extract.New(), docChunker, docEmbedder, indexRepo, catalogRepo, logger).
		WithMaxDocumentBytes(cfg.Ingest.MaxDocumentBytes).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize)

	// Web research path — only wired when a search API key is configured.
	// Pass nil interface (not typed nil pointer!) when web search is off.
	var researcher answeruc.Researcher
	if cfg.Search.APIKey != "" {
		searcher := webcache.New(
			tavily.New(&tavily.Config{
				APIKey:            cfg.Search.APIKey,
				BaseURL:           cfg.Search.BaseURL,
				RequestsPerMinute: cfg.Search.RequestsPerMinute,
				Logger:            logger,
			}),
			store,
			time.Duration(cfg.Search.CacheTTLSec)*time.Second,
			logger,
		)
		fetcher := fetch.New(&fetch.Options{
			Timeout:      time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			Logger:       logger,
		})
		webChunker, cerr := ingestuc.NewChunker(domain.ChunkingConfig{
			MaxChunkSize: cfg.Chunking.WebMaxChunkSize,
			OverlapSize:  cfg.Chunking.WebOverlapSize,
		})
		if cerr != nil {
			logger.Fatal("Invalid web chunking config", zap.Error(cerr))
		}
		researcher = researchuc.New(searcher, fetcher, webChunker, researchuc.Config{
			FetchConcurrency: cfg.Fetch.Concurrency,
			MinSuccessful:    cfg.Fetch.MinSuccessful,
			SnippetFallback:  cfg.Fetch.SnippetFallback,
		}, logger)
		logger.Info("Web research enabled")
	} else {
		logger.Info("Web research disabled: no search API key configured")
	}

	// Query pipeline
	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.Generation.APIKey,
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Logger:  logger,
	})
	synthesisSvc := synthesisuc.New(generator, logger)
	ranker := rankuc.New(queryEmbedder, logger)
	answerSvc := answeruc.New(queryEmbedder, indexRepo, researcher, ranker, synthesisSvc, answeruc.Config{
		DefaultTimeout:          time.Duration(cfg.Answer.DefaultTimeoutSec) * time.Second,
		DefaultTopK:             cfg.Answer.DefaultTopK,
		DefaultMaxContextTokens: cfg.Generation.MaxContextTokens,
		DefaultMaxAnswerTokens:  cfg.Generation.MaxAnswerTokens,
		Temperature:             cfg.Generation.Temperature,
	}, logger)

	// Health service
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(docEmbedder))

	// Create chi server
	server := chiTransport.NewServer(ingestSvc, answerSvc, healthSvc, logger).
		WithMaxUploadBytes(int64(cfg.Ingest.MaxDocumentBytes))

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

// embedder is what the pipelines need from a vectorizer: single-text for
// queries, order-preserving batch for chunks.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// embeddingHealthChecker adapts the embedder chain to health.ProviderChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(e domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: e}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:            embCfg.APIKey,
		BaseURL:           embCfg.BaseURL,
		Model:             embCfg.Model,
		Dimensions:        embCfg.Dimensions,
		Provider:          embCfg.Provider,
		RequestsPerMinute: embCfg.RequestsPerMinute,
		Logger:            logger,
	})

	// Cached
	var chain domain.Embedder = base
	if store != nil {
		chain = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (metrics + batch splitting)
	instrumented := embeddinguc.NewInstrumentedEmbedder(chain, embCfg.Provider, embCfg.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, instruction)
	}

	return instrumented
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
