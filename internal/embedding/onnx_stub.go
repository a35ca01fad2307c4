//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"
)

// ONNXConfig configures the ONNX backend.
type ONNXConfig struct {
	ModelPath     string
	Dimensions    int
	MaxTokens     int
	TokenizerPath string
	LibraryPath   string
}

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

var errONNXUnavailable = fmt.Errorf("%w: ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime", ErrModelUnavailable)

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_ ONNXConfig) (*ONNXEmbedder, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }
func (e *ONNXEmbedder) Close() error    { return nil }
