package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/bootstrap"
	"github.com/kailas-cloud/docqa/internal/chunker"
	"github.com/kailas-cloud/docqa/internal/config"
	"github.com/kailas-cloud/docqa/internal/document"
	"github.com/kailas-cloud/docqa/internal/lock"
	logpkg "github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	chiTransport "github.com/kailas-cloud/docqa/internal/transport/chi"
	"github.com/kailas-cloud/docqa/internal/usecase/answer"
	"github.com/kailas-cloud/docqa/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/usecase/prompt"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
	"github.com/kailas-cloud/docqa/internal/vectorstore"
	"github.com/kailas-cloud/docqa/internal/version"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

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

	logger.Info("Starting docqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("store_path", cfg.Store.Path),
		zap.Bool("allow_update", cfg.Store.UpdatesAllowed()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Redis is optional: embedding cache and cross-process store lock
	redisStore, err := bootstrap.Redis(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisStore != nil {
		defer redisStore.Close()
	}

	embedders := bootstrap.NewEmbedders(cfg.Embedding, redisStore, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", redisStore != nil && cfg.Embedding.Cache),
	)

	provider, err := bootstrap.NewGenerator(ctx, cfg.Generation, logger)
	if err != nil {
		logger.Fatal("Failed to create generation provider", zap.Error(err))
	}
	if !provider.Configured() {
		logger.Warn("Generation API key is not set, requests will fail",
			zap.String("provider", provider.Name()))
	}

	persistent, err := vectorstore.Open(cfg.Store.Path, embedders.Base.Dimension(), logger)
	if err != nil {
		logger.Fatal("Failed to open vector store", zap.Error(err))
	}
	metrics.StoreChunks.Set(float64(persistent.Len()))

	// Pass a nil interface (not a typed nil pointer) when Redis is off.
	var locker answer.Locker = lock.NewKeyed()
	var dbPinger healthuc.DBPinger
	if redisStore != nil {
		locker = lock.NewDistributed(redisStore, "lock:", time.Duration(cfg.Database.LockTTLSec)*time.Second, logger)
		dbPinger = redisStore
	}

	loader := document.NewLoader(document.Options{Logger: logger})
	ingestSvc := ingest.New(loader, chunker.NewRecursive(cfg.Chunking.Size, cfg.Chunking.Overlap), embedders.Document)

	answerSvc := answer.New(answer.Deps{
		Store:    persistent,
		Ingester: ingestSvc,
		Embedder: embedders.Query,
		Fuser: retrieval.NewFuser(retrieval.Budgets{
			Transient:      cfg.Retrieval.TransientK,
			Persistent:     cfg.Retrieval.PersistentK,
			PersistentOnly: cfg.Retrieval.PersistentOnlyK,
		}),
		Assembler: prompt.NewAssembler(cfg.Generation.MaxPromptChars, logger),
		Generator: generation.New(provider, generation.Options{
			Timeout:     cfg.Generation.Timeout(),
			MaxAttempts: cfg.Generation.MaxAttempts,
			Backoff:     cfg.Generation.Backoff(),
			Logger:      logger,
		}),
		Locker: locker,
	}, answer.Options{
		MaxAttempts:       cfg.Pipeline.MaxAttempts,
		InitialRetryDelay: cfg.Pipeline.InitialRetryDelay(),
		MaxConcurrency:    cfg.Generation.MaxConcurrency,
		AllowUpdate:       cfg.Store.UpdatesAllowed(),
	})

	healthSvc := healthuc.New(persistent, dbPinger, bootstrap.NewEmbeddingHealthChecker(embedders.Base))

	server := chiTransport.NewServer(answerSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
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
