// Package embedding turns text into fixed-dimension vectors. Model backends
// are wrapped by a Provider that loads them lazily, once.
package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned when the model cannot be loaded or produces
// output that does not match the request.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Loader constructs a ready-to-use model backend. It is called at most once
// per successful load.
type Loader func(ctx context.Context) (Embedder, error)
