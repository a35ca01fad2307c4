package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Position != 0 || results[0].Distance != 0 {
		t.Errorf("top result should be position 0 at distance 0, got %+v", results[0])
	}
	if results[1].Position != 1 {
		t.Errorf("second result should be position 1, got %d", results[1].Position)
	}
	if math.Abs(results[1].Distance-0.02) > 1e-6 {
		t.Errorf("second distance=%v, want 0.02", results[1].Distance)
	}
}

func TestMemoryIndex_SearchClampsK(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not ordered by distance: %+v", results)
		}
	}
}

func TestMemoryIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestMemoryIndex_TieBreaksByPosition(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	// Positions 1, 2 and 3 are all at distance 1 from the query.
	_ = idx.Add(ctx, [][]float32{{5, 5}, {1, 0}, {0, 1}, {-1, 0}})

	results, err := idx.Search(ctx, []float32{0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Position != 1 || results[1].Position != 2 {
		t.Errorf("expected positions [1 2], got %+v", results)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()

	err := idx.Add(ctx, [][]float32{{1, 0, 0}, {1, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Add: want ErrDimensionMismatch, got %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("failed Add must not append, Size=%d", idx.Size())
	}

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search: want ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryIndex_Truncate(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})

	if err := idx.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if err := idx.Truncate(5); err == nil {
		t.Error("expected error truncating beyond size")
	}

	// New vectors take the freed positions.
	_ = idx.Add(ctx, [][]float32{{0, 1}})
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if len(results) != 1 || results[0].Position != 1 {
		t.Errorf("expected position 1, got %+v", results)
	}
}

func TestMemoryIndex_ContextCancelled(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), [][]float32{{1, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Search: want context.Canceled, got %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{0, 1}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Add: want context.Canceled, got %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	idx2, _ := NewMemoryIndex(3)
	if err := idx2.Load(path); err != nil {
		t.Fatal(err)
	}
	if idx2.Size() != 3 {
		t.Errorf("loaded Size=%d, want 3", idx2.Size())
	}
	want, _ := idx.Search(ctx, []float32{0, 1, 0}, 3)
	got, _ := idx2.Search(ctx, []float32{0, 1, 0}, 3)
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMemoryIndex_LoadMissing(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
}

func TestMemoryIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(context.Background(), [][]float32{{1, 0, 0}})
	_ = idx.Save(path)

	other, _ := NewMemoryIndex(4)
	if err := other.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryIndex_LoadInvalid(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(good); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"empty":     {},
		"bad magic": append([]byte("XXXX"), data[4:]...),
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte{}, data...), 0, 0, 0, 0),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "case.bin")
			if err := os.WriteFile(path, content, 0644); err != nil {
				t.Fatal(err)
			}
			fresh, _ := NewMemoryIndex(2)
			if err := fresh.Load(path); !errors.Is(err, ErrInvalidIndexFile) {
				t.Errorf("want ErrInvalidIndexFile, got %v", err)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	if Similarity(0) != 1 {
		t.Errorf("Similarity(0)=%v, want 1", Similarity(0))
	}
	if Similarity(1) != 0.5 {
		t.Errorf("Similarity(1)=%v, want 0.5", Similarity(1))
	}
	if Similarity(2) >= Similarity(1) {
		t.Error("Similarity must decrease with distance")
	}
	if !math.IsInf(SquaredL2([]float32{1}, []float32{1, 2}), 1) {
		t.Error("SquaredL2 of mismatched lengths should be +Inf")
	}
	if SquaredL2([]float32{1, 2}, []float32{4, 6}) != 25 {
		t.Error("SquaredL2({1,2},{4,6}) should be 25")
	}
}

func TestTiedPastK(t *testing.T) {
	n := func(d ...float64) []Neighbor {
		out := make([]Neighbor, len(d))
		for i, v := range d {
			out[i] = Neighbor{Position: i, Distance: v}
		}
		return out
	}
	tests := []struct {
		name   string
		sorted []Neighbor
		k      int
		total  int
		want   bool
	}{
		{"next candidate is farther", n(0, 1, 2), 2, 10, false},
		{"next candidate ties the k-th", n(0, 1, 1), 2, 10, true},
		{"everything fetched", n(0, 1, 1), 2, 3, false},
		{"fewer than k fetched", n(0), 2, 10, false},
		{"k of zero", n(0, 0), 0, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tiedPastK(tt.sorted, tt.k, tt.total); got != tt.want {
				t.Errorf("tiedPastK() = %v, want %v", got, tt.want)
			}
		})
	}
}
