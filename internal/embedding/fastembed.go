//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig configures the fastembed backend.
type FastEmbedConfig struct {
	// Model is a fastembed model name such as BAAI/bge-small-en-v1.5.
	Model string
	// CacheDir holds downloaded model files so warm starts need no network.
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedEmbedder runs a local ONNX sentence model through fastembed-go.
type FastEmbedEmbedder struct {
	model     *fastembed.FlagEmbedding
	dimension int
	batchSize int
	mu        sync.RWMutex
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// NewFastEmbedEmbedder loads the model, downloading it into CacheDir if it
// is not already there.
func NewFastEmbedEmbedder(cfg FastEmbedConfig) (*FastEmbedEmbedder, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
	}
	dimension, ok := FastEmbedModelDimension(string(model))
	if !ok {
		dimension, ok = FastEmbedModelDimension(cfg.Model)
	}
	if !ok {
		return nil, fmt.Errorf("fastembed: unsupported model %q", cfg.Model)
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedEmbedder{
		model:     flagEmbed,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

// Embed embeds a single text.
func (f *FastEmbedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts without a passage or query prefix, so a stored
// text and the same text used as a query map to the same vector.
func (f *FastEmbedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return nil, fmt.Errorf("fastembed: embedder closed")
	}

	out, err := f.model.Embed(texts, f.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	return out, nil
}

// Dimensions returns the model's embedding dimension.
func (f *FastEmbedEmbedder) Dimensions() int {
	return f.dimension
}

// Close releases the ONNX session.
func (f *FastEmbedEmbedder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.model == nil {
		return nil
	}
	err := f.model.Destroy()
	f.model = nil
	return err
}
