package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/tana/internal/models"
)

// snapshot holds the bytes of a committed index/ledger pair.
type snapshot struct {
	index, ledger []byte
}

func takeSnapshot(t *testing.T, dir string) snapshot {
	t.Helper()
	idx, err := os.ReadFile(filepath.Join(dir, indexFile))
	require.NoError(t, err)
	led, err := os.ReadFile(filepath.Join(dir, ledgerFile))
	require.NoError(t, err)
	return snapshot{index: idx, ledger: led}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// twoGenerations commits one chunk, then a second, and returns both pairs.
func twoGenerations(t *testing.T, root string) (old, next snapshot) {
	t.Helper()
	ctx := context.Background()
	s, err := New(Options{DataRoot: root, Dimensions: testDims})
	require.NoError(t, err)
	defer s.Close()

	dir := workspaceDir(root, "ws1")
	_, err = s.Add(ctx, "ws1", [][]float32{vec(0)}, records("one"))
	require.NoError(t, err)
	old = takeSnapshot(t, dir)
	_, err = s.Add(ctx, "ws1", [][]float32{vec(1)}, records("two"))
	require.NoError(t, err)
	next = takeSnapshot(t, dir)
	return old, next
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{indexFile + tmpSuffix, ledgerFile + tmpSuffix} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s should be gone", name)
	}
}

func TestRecovery_RollForwardBeforeRenames(t *testing.T) {
	root := t.TempDir()
	old, next := twoGenerations(t, root)
	dir := workspaceDir(root, "ws1")

	writeFile(t, filepath.Join(dir, indexFile), old.index)
	writeFile(t, filepath.Join(dir, ledgerFile), old.ledger)
	writeFile(t, filepath.Join(dir, indexFile+tmpSuffix), next.index)
	writeFile(t, filepath.Join(dir, ledgerFile+tmpSuffix), next.ledger)

	s := newTestStore(t, root, 0)
	stats, err := s.Load(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assertNoTempFiles(t, dir)
}

func TestRecovery_RollForwardAfterIndexRename(t *testing.T) {
	root := t.TempDir()
	old, next := twoGenerations(t, root)
	dir := workspaceDir(root, "ws1")

	writeFile(t, filepath.Join(dir, indexFile), next.index)
	writeFile(t, filepath.Join(dir, ledgerFile), old.ledger)
	writeFile(t, filepath.Join(dir, ledgerFile+tmpSuffix), next.ledger)

	s := newTestStore(t, root, 0)
	stats, err := s.Load(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assertNoTempFiles(t, dir)
}

func TestRecovery_RollBackUnreadableLedger(t *testing.T) {
	root := t.TempDir()
	old, next := twoGenerations(t, root)
	dir := workspaceDir(root, "ws1")

	writeFile(t, filepath.Join(dir, indexFile), old.index)
	writeFile(t, filepath.Join(dir, ledgerFile), old.ledger)
	writeFile(t, filepath.Join(dir, indexFile+tmpSuffix), next.index)
	writeFile(t, filepath.Join(dir, ledgerFile+tmpSuffix), next.ledger[:len(next.ledger)/2])

	s := newTestStore(t, root, 0)
	stats, err := s.Load(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assertNoTempFiles(t, dir)
}

func TestRecovery_RollBackChecksumMismatch(t *testing.T) {
	root := t.TempDir()
	old, next := twoGenerations(t, root)
	dir := workspaceDir(root, "ws1")

	writeFile(t, filepath.Join(dir, indexFile), old.index)
	writeFile(t, filepath.Join(dir, ledgerFile), old.ledger)
	writeFile(t, filepath.Join(dir, indexFile+tmpSuffix), old.index)
	writeFile(t, filepath.Join(dir, ledgerFile+tmpSuffix), next.ledger)

	s := newTestStore(t, root, 0)
	stats, err := s.Load(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assertNoTempFiles(t, dir)
}

func TestRecovery_StrayIndexTemp(t *testing.T) {
	root := t.TempDir()
	old, next := twoGenerations(t, root)
	dir := workspaceDir(root, "ws1")

	writeFile(t, filepath.Join(dir, indexFile), old.index)
	writeFile(t, filepath.Join(dir, ledgerFile), old.ledger)
	writeFile(t, filepath.Join(dir, indexFile+tmpSuffix), next.index)

	s := newTestStore(t, root, 0)
	stats, err := s.Load(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assertNoTempFiles(t, dir)
}

func TestLoad_CorruptStates(t *testing.T) {
	cases := map[string]func(t *testing.T, dir string, old, next snapshot){
		"index missing": func(t *testing.T, dir string, _, _ snapshot) {
			require.NoError(t, os.Remove(filepath.Join(dir, indexFile)))
		},
		"ledger missing": func(t *testing.T, dir string, _, _ snapshot) {
			require.NoError(t, os.Remove(filepath.Join(dir, ledgerFile)))
		},
		"checksum mismatch": func(t *testing.T, dir string, old, _ snapshot) {
			writeFile(t, filepath.Join(dir, indexFile), old.index)
		},
		"ledger garbage": func(t *testing.T, dir string, _, _ snapshot) {
			writeFile(t, filepath.Join(dir, ledgerFile), []byte("not msgpack"))
		},
		"count mismatch": func(t *testing.T, dir string, _, next snapshot) {
			doc, err := readLedger(filepath.Join(dir, ledgerFile))
			require.NoError(t, err)
			doc.Records = doc.Records[:1]
			doc.Count = 1
			require.NoError(t, writeLedger(filepath.Join(dir, ledgerFile), doc))
		},
		"local id out of order": func(t *testing.T, dir string, _, _ snapshot) {
			doc, err := readLedger(filepath.Join(dir, ledgerFile))
			require.NoError(t, err)
			doc.Records[0].LocalID, doc.Records[1].LocalID = 1, 0
			require.NoError(t, writeLedger(filepath.Join(dir, ledgerFile), doc))
		},
		"format version": func(t *testing.T, dir string, _, _ snapshot) {
			doc, err := readLedger(filepath.Join(dir, ledgerFile))
			require.NoError(t, err)
			doc.FormatVersion = 99
			require.NoError(t, writeLedger(filepath.Join(dir, ledgerFile), doc))
		},
	}

	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			old, next := twoGenerations(t, root)
			corrupt(t, workspaceDir(root, "ws1"), old, next)

			s := newTestStore(t, root, 0)
			_, err := s.Load(context.Background(), "ws1")
			require.ErrorIs(t, err, ErrCorruptWorkspaceState)
			assert.Empty(t, s.Loaded(), "failed load must not stay resident")

			// Nothing was truncated or rewritten.
			_, err = os.Stat(workspaceDir(root, "ws1"))
			assert.NoError(t, err)
		})
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	root := t.TempDir()
	twoGenerations(t, root)

	s, err := New(Options{DataRoot: root, Dimensions: testDims + 1})
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Load(context.Background(), "ws1")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLedger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ledgerFile)
	doc := &ledgerDoc{
		FormatVersion: ledgerFormatVersion,
		WorkspaceID:   "ws1",
		Generation:    "g",
		Dimension:     testDims,
		IndexType:     "memory",
		IndexChecksum: "abc",
		Count:         1,
		Records:       []models.ChunkRecord{{LocalID: 0, Text: "hello", SourceMetadata: map[string]any{"k": "v"}}},
	}
	require.NoError(t, writeLedger(path, doc))
	got, err := readLedger(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Records[0].Text, got.Records[0].Text)
	assert.Equal(t, "v", got.Records[0].SourceMetadata["k"])
	assert.Equal(t, doc.IndexChecksum, got.IndexChecksum)
}
