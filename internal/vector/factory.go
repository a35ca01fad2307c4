package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses the pure-Go flat index.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses a FAISS IndexFlatL2.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "faiss".
// FAISS requires building with -tags=faiss and having FAISS library installed.
func NewIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		idx, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		idx, err := NewFAISSIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
