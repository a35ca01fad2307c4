//go:build !cgo

package embedding

import (
	"context"
	"fmt"
)

var errFastEmbedUnavailable = fmt.Errorf("%w: fastembed requires CGO; use the hash provider instead", ErrModelUnavailable)

// FastEmbedConfig configures the fastembed backend.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedEmbedder is a stub for non-CGO builds.
type FastEmbedEmbedder struct{}

// NewFastEmbedEmbedder returns an error when CGO is not available.
func NewFastEmbedEmbedder(_ FastEmbedConfig) (*FastEmbedEmbedder, error) {
	return nil, errFastEmbedUnavailable
}

func (f *FastEmbedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errFastEmbedUnavailable
}

func (f *FastEmbedEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errFastEmbedUnavailable
}

func (f *FastEmbedEmbedder) Dimensions() int { return 0 }
func (f *FastEmbedEmbedder) Close() error    { return nil }
