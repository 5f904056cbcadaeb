package embedding

import (
	"fmt"

	"github.com/hyperjump/ragdoc/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted in embedding.provider.
const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// New builds the configured embedder wrapped in a cache. An unavailable ONNX
// runtime or model falls back to the hash embedder with a warning.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Embedder
	switch cfg.Provider {
	case ProviderONNX, "":
		emb, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder", zap.Error(err))
			inner = NewHashEmbedder(cfg.Dimensions)
		} else {
			inner = emb
		}
	case ProviderOllama:
		inner = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions, 0)
	case ProviderHash:
		inner = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, hash)", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
