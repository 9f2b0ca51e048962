// Package bootstrap builds the shared parts of the docqa binaries from config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/config"
	dbRedis "github.com/kailas-cloud/docqa/internal/db/redis"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/repository/embcache"
	"github.com/kailas-cloud/docqa/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
)

// Redis connects to the configured Redis and waits for it. Returns nil, nil
// when no address is configured.
func Redis(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*dbRedis.Store, error) {
	if !cfg.Enabled() {
		logger.Info("Redis disabled, using in-process locking without embedding cache")
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:     cfg.Addrs,
		Password:  cfg.Password,
		KeyPrefix: cfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to Redis", zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

// Embedders holds the embedder chains for passages and questions, plus the
// base provider for health checks.
type Embedders struct {
	Document domain.Embedder
	Query    domain.Embedder
	Base     *openaiTransport.Embedder
}

// NewEmbedders assembles the decorator chain:
// OpenAI -> Cached (when store is set and caching enabled) -> Instrumented -> Instruction.
func NewEmbedders(cfg config.EmbeddingConfig, store *dbRedis.Store, logger *zap.Logger) Embedders {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil && cfg.Cache {
		embedder = embcache.New(base, store, embcache.Options{
			Namespace:  fmt.Sprintf("%s:%d", cfg.Model, cfg.Dimensions),
			TTL:        cfg.CacheTTL(),
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Model, logger)

	return Embedders{
		Document: withInstruction(embedder, cfg.DocumentInstruction),
		Query:    withInstruction(embedder, cfg.QueryInstruction),
		Base:     base,
	}
}

// withInstruction is the outermost decorator so the cache key includes the instruction.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// NewGenerator returns the single-attempt provider named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (domain.Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return c, nil
	case config.ProviderOpenAI:
		return openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

// EmbeddingHealthChecker adapts an embedder to health.EmbeddingChecker.
type EmbeddingHealthChecker struct {
	embedder domain.Embedder
}

// NewEmbeddingHealthChecker wraps embedder. Embedders without HealthCheck always pass.
func NewEmbeddingHealthChecker(embedder domain.Embedder) *EmbeddingHealthChecker {
	return &EmbeddingHealthChecker{embedder: embedder}
}

// HealthCheck calls the embedder's HealthCheck when it has one.
func (h *EmbeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
