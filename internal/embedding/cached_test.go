package embedding

import (
	"context"
	"sync/atomic"
	"testing"
)

// countingEmbedder counts texts passed to EmbedBatch.
type countingEmbedder struct {
	*HashEmbedder
	texts int32
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&c.texts, int32(len(texts)))
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCached_HitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(4)}
	e, err := NewCached(inner, 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.EmbedBatch(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 2 {
		t.Errorf("inner embedded %d texts, want 2", inner.texts)
	}
	if second[0][0] != first[1][0] || second[1][0] != first[0][0] {
		t.Error("cached vectors returned out of order")
	}
}

func TestCached_Eviction(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(4)}
	e, _ := NewCached(inner, 2)
	ctx := context.Background()

	_, _ = e.EmbedBatch(ctx, []string{"a", "b", "c"}) // a evicted
	_, _ = e.Embed(ctx, "a")
	if inner.texts != 4 {
		t.Errorf("inner embedded %d texts, want 4", inner.texts)
	}
	if c := e.(*Cached); c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

func TestCached_Disabled(t *testing.T) {
	inner := NewHashEmbedder(4)
	e, err := NewCached(inner, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e != Embedder(inner) {
		t.Error("size 0 should return the inner embedder")
	}
}
