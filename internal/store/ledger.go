package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hyperjump/tana/internal/models"
)

const ledgerFormatVersion = 1

// ledgerDoc is the on-disk ledger. IndexChecksum and Count bind it to the
// index file written in the same commit.
type ledgerDoc struct {
	FormatVersion int                  `msgpack:"format_version"`
	WorkspaceID   string               `msgpack:"workspace_id"`
	Generation    string               `msgpack:"generation"`
	Dimension     int                  `msgpack:"dimension"`
	IndexType     string               `msgpack:"index_type"`
	IndexChecksum string               `msgpack:"index_checksum"`
	Count         int                  `msgpack:"count"`
	Records       []models.ChunkRecord `msgpack:"records"`
}

// writeLedger encodes doc to path and syncs it.
func writeLedger(path string, doc *ledgerDoc) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := msgpack.NewEncoder(bw)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return f.Close()
}

// readLedger decodes the ledger at path. Numbers inside source metadata
// decode as int64, uint64 or float64.
func readLedger(path string) (*ledgerDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(f))
	dec.UseLooseInterfaceDecoding(true)
	var doc ledgerDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return &doc, nil
}

// fileChecksum returns the hex sha256 of the file at path.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// syncDir flushes directory entries so completed renames survive a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
