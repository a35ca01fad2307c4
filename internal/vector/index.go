// Package vector provides exact nearest-neighbor vector indexes.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidIndexFile is returned when a persisted index cannot be decoded.
	ErrInvalidIndexFile = errors.New("invalid index file")
)

// Index is a flat vector index. Vectors are addressed by insertion position:
// the first vector added is position 0, the next is 1, and so on.
//
// Implementations must be safe for concurrent use.
type Index interface {
	// Add appends vectors at positions Size() .. Size()+len(vectors)-1.
	// Either all vectors are appended or none are.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k nearest neighbors by squared L2 distance,
	// closest first, ties broken by ascending position.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Truncate drops every vector at position n and above.
	Truncate(n int) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit.
type Neighbor struct {
	Position int
	Distance float64 // squared Euclidean distance
}
