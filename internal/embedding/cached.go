package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an Embedder with an LRU of embeddings keyed by text.
// Returned vectors are shared with the cache and must not be modified.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached returns inner wrapped in a cache of the given size.
// A size <= 0 disables caching and returns inner unchanged.
func NewCached(inner Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text, computing it on a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds only the texts not already cached, in one inner call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			cacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		cacheLookups.WithLabelValues("miss").Inc()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrModelUnavailable, len(vecs), len(missTexts))
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		c.cache.Add(missTexts[j], v)
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

// Len returns the number of cached embeddings.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Close purges the cache and closes the wrapped embedder.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
