package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/tana/pkg/utils"
)

// HashEmbedder is a deterministic embedder. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the
// same embedding. Used for tests and offline development.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit-length embedding based on the text hash.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	emb := make([]float32, e.dimensions)
	for i := range emb {
		x := mix64(seed + uint64(i+1)*0x9e3779b97f4a7c15)
		// top 24 bits mapped to [-1, 1)
		emb[i] = float32(x>>40)/float32(1<<23) - 1
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
