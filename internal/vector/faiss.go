//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
#include <faiss/c_api/impl/AuxIndexStructures_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex is an exact flat index backed by FAISS IndexFlatL2. FAISS assigns
// sequential labels to added vectors, so labels are insertion positions.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS IndexFlatL2 with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var index *C.FaissIndexFlatL2
	ret := C.faiss_IndexFlatL2_new_with(&index, C.idx_t(dimensions))
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	return &FAISSIndex{
		index:      index,
		dimensions: dimensions,
	}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors in one FAISS call.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ret := C.faiss_Index_add(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flat[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	// FAISS breaks equal distances arbitrarily, so a lower label tied with
	// the k-th result can be cut off. Fetch more until the tie is inside.
	fetch := min(k+1, ntotal)
	for {
		results, err := f.searchLocked(query, fetch)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(results, func(i, j int) bool { return closer(results[i], results[j]) })
		if !tiedPastK(results, k, ntotal) {
			if len(results) > k {
				results = results[:k]
			}
			return results, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fetch = min(fetch*2, ntotal)
	}
}

// searchLocked runs one FAISS query for n neighbours. Caller holds f.mu.
func (f *FAISSIndex) searchLocked(query []float32, n int) ([]Neighbor, error) {
	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]Neighbor, 0, n)
	for i := 0; i < n; i++ {
		if labels[i] < 0 {
			continue
		}
		results = append(results, Neighbor{Position: int(labels[i]), Distance: float64(distances[i])})
	}
	return results, nil
}

// Truncate removes labels [n, ntotal). IndexFlat compacts on removal, so
// the remaining labels stay 0..n-1.
func (f *FAISSIndex) Truncate(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ntotal := int(C.faiss_Index_ntotal(f.index))
	if n < 0 || n > ntotal {
		return fmt.Errorf("truncate to %d out of range [0, %d]", n, ntotal)
	}
	if n == ntotal {
		return nil
	}

	var sel *C.FaissIDSelectorRange
	if ret := C.faiss_IDSelectorRange_new(&sel, C.idx_t(n), C.idx_t(ntotal)); ret != 0 {
		return fmt.Errorf("create FAISS id selector: %s", faissLastError())
	}
	defer C.faiss_IDSelector_free((*C.FaissIDSelector)(unsafe.Pointer(sel)))

	var removed C.size_t
	ret := C.faiss_Index_remove_ids(f.index, (*C.FaissIDSelector)(unsafe.Pointer(sel)), &removed)
	if ret != 0 {
		return fmt.Errorf("failed to truncate FAISS index: %s", faissLastError())
	}
	if int(removed) != ntotal-n {
		return fmt.Errorf("FAISS truncate removed %d vectors, expected %d", int(removed), ntotal-n)
	}
	return nil
}

// Save writes the index in FAISS's native format and syncs it to disk.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}

	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open saved index: %w", err)
	}
	defer fh.Close()
	if err := fh.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return nil
}

// Load reads the index from path. If the file does not exist, no error is
// returned and the index is unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidIndexFile, faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int(C.faiss_Index_ntotal(f.index))
}

// Dimensions returns the fixed vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
