package embedding

import (
	"fmt"

	"github.com/hyperjump/movierec/internal/config"
	"go.uber.org/zap"
)

// Chain is one configured provider seen two ways. Batch is Retrying(Timeout(base)) and
// always reaches the provider, so regeneration gets a fresh vector. Query is Batch behind
// an LRU cache of query texts; it equals Batch when cache_size is 0.
type Chain struct {
	Batch Embedder
	Query Embedder
}

// Close releases the shared provider.
func (c *Chain) Close() error {
	return c.Batch.Close()
}

// New builds the configured provider chain. The timeout bounds each attempt; retries
// re-enter it with a fresh deadline.
func New(cfg *config.ProviderConfig, logger *zap.Logger) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base Embedder
	switch cfg.Type {
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.ResolveAPIKey(),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case "onnx":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create onnx embedder: %w", err)
		}
		base = e
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}

	logger.Info("embedding provider ready",
		zap.String("type", cfg.Type),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", base.Dimensions()))

	var e Embedder = NewTimeoutEmbedder(base, cfg.RequestTimeout)
	if cfg.MaxRetries > 0 {
		e = NewRetryingEmbedder(e, cfg.MaxRetries, cfg.RetryBackoff, logger)
	}
	chain := &Chain{Batch: e, Query: e}
	if cfg.CacheSize > 0 {
		chain.Query = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return chain, nil
}
