package vector

import (
	"context"
	"testing"
)

func TestNewIndex_Memory(t *testing.T) {
	idx, err := NewIndex("memory", 3)
	if err != nil {
		t.Fatalf("NewIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if idx.Type() != string(IndexTypeMemory) {
		t.Errorf("Type=%s, want memory", idx.Type())
	}
}

func TestNewIndex_Empty(t *testing.T) {
	// Empty string should default to memory
	idx, err := NewIndex("", 3)
	if err != nil {
		t.Fatalf("NewIndex(''): %v", err)
	}
	defer idx.Close()

	if idx.Dimensions() != 3 {
		t.Errorf("Dimensions=%d, want 3", idx.Dimensions())
	}
}

func TestNewIndex_Unknown(t *testing.T) {
	_, err := NewIndex("unknown", 3)
	if err == nil {
		t.Fatal("expected error for unknown index type")
	}
}

func TestNewIndex_InvalidDimensions(t *testing.T) {
	if _, err := NewIndex("memory", 0); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestNewIndex_FAISS(t *testing.T) {
	idx, err := NewIndex("faiss", 3)
	if !IsFAISSAvailable() {
		if err == nil {
			t.Fatal("expected error when FAISS is not compiled in")
		}
		return
	}
	if err != nil {
		t.Fatalf("NewIndex(faiss): %v", err)
	}
	defer idx.Close()
	if idx.Type() != string(IndexTypeFAISS) {
		t.Errorf("Type=%s, want faiss", idx.Type())
	}
}
