package vector

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// File header for the memory index: magic, then format version.
var memoryMagic = [4]byte{'T', 'I', 'D', 'X'}

const memoryFormatVersion uint32 = 1

// ctxCheckInterval is how many vectors Search scans between context checks.
const ctxCheckInterval = 4096

// MemoryIndex is an exact flat index using brute-force squared L2 search.
// Vectors are stored contiguously; position i occupies data[i*dim:(i+1)*dim].
type MemoryIndex struct {
	dimensions int
	data       []float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the fixed vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors. Every vector is checked before any is appended.
func (m *MemoryIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != m.dimensions {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(vec), m.dimensions)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vec := range vectors {
		m.data = append(m.data, vec...)
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.data) / m.dimensions
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}

	h := make(neighborHeap, 0, k)
	for pos := 0; pos < n; pos++ {
		if pos%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cand := Neighbor{
			Position: pos,
			Distance: SquaredL2(query, m.data[pos*m.dimensions:(pos+1)*m.dimensions]),
		}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if closer(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := make([]Neighbor, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Neighbor)
	}
	return out, nil
}

// Truncate drops all vectors at position n and above.
func (m *MemoryIndex) Truncate(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := len(m.data) / m.dimensions
	if n < 0 || n > size {
		return fmt.Errorf("truncate to %d out of range [0, %d]", n, size)
	}
	m.data = m.data[:n*m.dimensions]
	return nil
}

// Save persists the index to path. Directory is created if needed. Format: magic (4),
// version (4), dimension (4), n (4), then n*dimension float32 values, little endian.
// The file is synced to stable storage before Save returns.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	le := binary.LittleEndian
	if _, err := bw.Write(memoryMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{memoryFormatVersion, uint32(m.dimensions), uint32(len(m.data) / m.dimensions)}
	if err := binary.Write(bw, le, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, 4)
	for _, v := range m.data {
		le.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return f.Close()
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return fmt.Errorf("%w: read magic: %v", ErrInvalidIndexFile, err)
	}
	if magic != memoryMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidIndexFile, magic[:])
	}
	var header [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: read header: %v", ErrInvalidIndexFile, err)
	}
	version, dim, n := header[0], header[1], header[2]
	if version != memoryFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrInvalidIndexFile, version)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, m.dimensions)
	}

	want := int64(len(memoryMagic)) + 12 + int64(n)*int64(dim)*4
	if fi, err := f.Stat(); err == nil && fi.Size() != want {
		return fmt.Errorf("%w: file is %d bytes, header describes %d", ErrInvalidIndexFile, fi.Size(), want)
	}

	raw := make([]byte, int(n)*int(dim)*4)
	if _, err := io.ReadFull(br, raw); err != nil {
		return fmt.Errorf("%w: read vectors: %v", ErrInvalidIndexFile, err)
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after %d vectors", ErrInvalidIndexFile, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = bytesToFloat32Slice(raw)
	return nil
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data) / m.dimensions
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

// tiedPastK reports whether sorted, the closest fetched of total
// neighbours, may hide a tie at rank k: its last entry has the same
// distance as the k-th and more candidates remain unfetched.
func tiedPastK(sorted []Neighbor, k, total int) bool {
	if len(sorted) <= k-1 || len(sorted) >= total || k <= 0 {
		return false
	}
	return sorted[len(sorted)-1].Distance == sorted[k-1].Distance
}

// closer reports whether a ranks ahead of b: smaller distance, then lower position.
func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Position < b.Position
}

// neighborHeap is a max-heap on rank: the root is the worst of the current top-k.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(x any) { *h = append(*h, x.(Neighbor)) }

func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
