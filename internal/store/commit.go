package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// commit writes the workspace's index and ledger as a pair:
//
//  1. index to index.bin.tmp, synced, checksummed
//  2. ledger carrying that checksum to metadata.msgpack.tmp, synced
//  3. rename index, rename ledger, sync the directory
//
// The index rename is the commit point. An error returned from commit means
// the disk still holds the previous pair and the caller must roll back.
// Failures after the commit point are logged: recoverCommit completes them on
// the next load, and the in-memory state already matches what it will find.
func (s *Store) commit(ctx context.Context, w *workspace) error {
	start := time.Now()
	defer func() { persistDuration.Observe(time.Since(start).Seconds()) }()

	idxPath, ledPath := w.indexPath(), w.ledgerPath()
	idxTmp, ledTmp := idxPath+tmpSuffix, ledPath+tmpSuffix
	abort := func(err error) error {
		_ = os.Remove(idxTmp)
		_ = os.Remove(ledTmp)
		persistFailures.WithLabelValues("prepare").Inc()
		return err
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return abort(fmt.Errorf("%w: create workspace dir: %v", ErrIO, err))
	}
	if err := w.index.Save(idxTmp); err != nil {
		return abort(fmt.Errorf("%w: save index: %v", ErrIO, err))
	}
	sum, err := fileChecksum(idxTmp)
	if err != nil {
		return abort(fmt.Errorf("%w: checksum index: %v", ErrIO, err))
	}

	generation := uuid.NewString()
	doc := &ledgerDoc{
		FormatVersion: ledgerFormatVersion,
		WorkspaceID:   string(w.id),
		Generation:    generation,
		Dimension:     s.dimensions,
		IndexType:     w.index.Type(),
		IndexChecksum: sum,
		Count:         len(w.ledger),
		Records:       w.ledger,
	}
	if err := writeLedger(ledTmp, doc); err != nil {
		return abort(fmt.Errorf("%w: write ledger: %v", ErrIO, err))
	}
	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	if err := os.Rename(idxTmp, idxPath); err != nil {
		return abort(fmt.Errorf("%w: install index: %v", ErrIO, err))
	}
	w.generation = generation

	if err := os.Rename(ledTmp, ledPath); err != nil {
		persistFailures.WithLabelValues("finish").Inc()
		s.logger.Error("ledger rename failed after index commit; will complete on next load",
			zap.String("workspace", string(w.id)),
			zap.String("generation", generation),
			zap.Error(err))
		return nil
	}
	if err := syncDir(w.dir); err != nil {
		s.logger.Warn("sync workspace dir failed",
			zap.String("workspace", string(w.id)),
			zap.Error(err))
	}

	s.logger.Debug("workspace committed",
		zap.String("workspace", string(w.id)),
		zap.Int("count", len(w.ledger)),
		zap.String("generation", generation))
	return nil
}

// recoverCommit settles a commit interrupted by a crash. If the ledger temp
// file decodes and its checksum matches index.bin.tmp, or an index.bin that
// was already renamed, the renames are finished. Otherwise the temp files are
// removed and the previous pair stands.
func (s *Store) recoverCommit(id WorkspaceID, dir string) error {
	idxPath, ledPath := filepath.Join(dir, indexFile), filepath.Join(dir, ledgerFile)
	idxTmp, ledTmp := idxPath+tmpSuffix, ledPath+tmpSuffix

	hasIdxTmp, err := fileExists(idxTmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	hasLedTmp, err := fileExists(ledTmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !hasLedTmp {
		if hasIdxTmp {
			s.logger.Info("removing stray index temp file", zap.String("workspace", string(id)))
			recoveries.WithLabelValues("back").Inc()
			if err := os.Remove(idxTmp); err != nil {
				return fmt.Errorf("%w: remove index temp: %v", ErrIO, err)
			}
		}
		return nil
	}

	rollBack := func(reason string) error {
		s.logger.Warn("rolling back interrupted commit",
			zap.String("workspace", string(id)),
			zap.String("reason", reason))
		recoveries.WithLabelValues("back").Inc()
		for _, p := range []string{idxTmp, ledTmp} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("%w: remove temp file: %v", ErrIO, err)
			}
		}
		return nil
	}

	doc, err := readLedger(ledTmp)
	if err != nil {
		return rollBack("ledger temp file unreadable")
	}

	candidate := idxTmp
	if !hasIdxTmp {
		candidate = idxPath
	}
	sum, err := fileChecksum(candidate)
	if err != nil || sum != doc.IndexChecksum {
		return rollBack("index checksum does not match ledger temp file")
	}

	if hasIdxTmp {
		if err := os.Rename(idxTmp, idxPath); err != nil {
			return fmt.Errorf("%w: install index: %v", ErrIO, err)
		}
	}
	if err := os.Rename(ledTmp, ledPath); err != nil {
		return fmt.Errorf("%w: install ledger: %v", ErrIO, err)
	}
	if err := syncDir(dir); err != nil {
		s.logger.Warn("sync workspace dir failed", zap.String("workspace", string(id)), zap.Error(err))
	}
	s.logger.Info("completed interrupted commit",
		zap.String("workspace", string(id)),
		zap.String("generation", doc.Generation))
	recoveries.WithLabelValues("forward").Inc()
	return nil
}
