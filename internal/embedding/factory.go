package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tana/internal/config"
)

// Backend names accepted in embedding.provider.
const (
	BackendFastEmbed = "fastembed"
	BackendONNX      = "onnx"
	BackendHash      = "hash"
)

// NewLoader returns a Loader for the configured backend. Nothing is loaded
// until the Loader is called.
func NewLoader(cfg config.EmbeddingConfig) (Loader, error) {
	switch cfg.Provider {
	case BackendFastEmbed, "":
		if d, ok := FastEmbedModelDimension(cfg.Model); ok && d != cfg.Dimensions {
			return nil, fmt.Errorf("model %s produces %d dimensions, configured %d", cfg.Model, d, cfg.Dimensions)
		}
		return func(ctx context.Context) (Embedder, error) {
			e, err := NewFastEmbedEmbedder(FastEmbedConfig{
				Model:     cfg.Model,
				CacheDir:  cfg.CacheDir,
				MaxLength: cfg.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case BackendONNX:
		return func(ctx context.Context) (Embedder, error) {
			e, err := NewONNXEmbedder(ONNXConfig{
				ModelPath:     cfg.ModelPath,
				Dimensions:    cfg.Dimensions,
				MaxTokens:     cfg.MaxTokens,
				TokenizerPath: cfg.TokenizerPath,
				LibraryPath:   cfg.LibraryPath,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case BackendHash:
		return func(ctx context.Context) (Embedder, error) {
			return NewHashEmbedder(cfg.Dimensions), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: fastembed, onnx, hash)", cfg.Provider)
	}
}

// New returns a lazily loading Provider for the configured backend.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (*Provider, error) {
	load, err := NewLoader(cfg)
	if err != nil {
		return nil, err
	}
	backend := cfg.Provider
	if backend == "" {
		backend = BackendFastEmbed
	}
	return NewProvider(backend, cfg.Dimensions, load, logger), nil
}
