package embedding

import (
	"context"
	"testing"
)

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkCached_EmbedBatch(b *testing.B) {
	e, _ := NewCached(NewHashEmbedder(384), 1024)
	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma", "delta"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedBatch(ctx, texts)
	}
}
