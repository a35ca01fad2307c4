// Package store keeps one vector index and one metadata ledger per
// workspace, in lockstep, and persists the pair atomically.
//
// Layout under the data root:
//
//	workspaces/workspace_{id}/index.bin
//	workspaces/workspace_{id}/metadata.msgpack
//
// Position i in the index and entry i in the ledger describe the same chunk,
// and LocalID i is that position. Ids are never reused.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/internal/vector"
	"github.com/hyperjump/tana/pkg/utils"
)

// Options configures a Store.
type Options struct {
	DataRoot   string
	IndexType  string
	Dimensions int
	// MaxLoaded caps resident workspaces; 0 means no limit.
	MaxLoaded int
	Logger    *zap.Logger
}

// Store is the workspace index store. It is safe for concurrent use.
// Operations on one workspace serialise writers and share readers; different
// workspaces do not contend.
type Store struct {
	dataRoot   string
	indexType  string
	dimensions int
	logger     *zap.Logger
	reg        *registry
}

// New returns a Store rooted at opts.DataRoot. Nothing is read until a
// workspace is first used.
func New(opts Options) (*Store, error) {
	if opts.DataRoot == "" {
		return nil, fmt.Errorf("data root is required")
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if opts.MaxLoaded < 0 {
		return nil, fmt.Errorf("max loaded workspaces must be >= 0")
	}
	indexType := opts.IndexType
	if indexType == "" {
		indexType = string(vector.IndexTypeMemory)
	}
	// Fail fast on an unusable backend instead of on first load.
	idx, err := vector.NewIndex(indexType, opts.Dimensions)
	if err != nil {
		return nil, err
	}
	_ = idx.Close()

	s := &Store{
		dataRoot:   opts.DataRoot,
		indexType:  indexType,
		dimensions: opts.Dimensions,
		logger:     utils.LoggerOrNop(opts.Logger),
	}
	s.reg = newRegistry(opts.MaxLoaded, s.loadWorkspace, s.evicted)
	return s, nil
}

// Dimensions returns the vector dimension every workspace uses.
func (s *Store) Dimensions() int { return s.dimensions }

// IndexType returns the vector index backend name.
func (s *Store) IndexType() string { return s.indexType }

func (s *Store) acquire(ctx context.Context, id WorkspaceID) (*workspace, func(), error) {
	if err := id.Validate(); err != nil {
		return nil, nil, err
	}
	return s.reg.acquire(ctx, id)
}

// Load makes the workspace resident and returns its stats. Repeated calls
// for a resident workspace do not touch disk.
func (s *Store) Load(ctx context.Context, id WorkspaceID) (*models.WorkspaceStats, error) {
	w, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	w.mu.RLock()
	defer w.mu.RUnlock()
	return s.statsLocked(w), nil
}

// loadWorkspace reads a workspace from disk, settling any interrupted commit
// first. A workspace with neither file is empty.
func (s *Store) loadWorkspace(ctx context.Context, id WorkspaceID) (*workspace, error) {
	dir := workspaceDir(s.dataRoot, id)
	if err := s.recoverCommit(id, dir); err != nil {
		return nil, err
	}

	idx, err := vector.NewIndex(s.indexType, s.dimensions)
	if err != nil {
		return nil, err
	}
	w := &workspace{id: id, dir: dir, index: idx}

	if err := s.readPair(w); err != nil {
		_ = idx.Close()
		if errors.Is(err, ErrCorruptWorkspaceState) {
			corruptLoads.Inc()
			s.logger.Error("workspace state is corrupt", zap.String("workspace", string(id)), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Debug("workspace loaded",
		zap.String("workspace", string(id)),
		zap.Int("count", len(w.ledger)),
		zap.String("generation", w.generation))
	return w, nil
}

// readPair loads index and ledger into w and checks that they belong together.
func (s *Store) readPair(w *workspace) error {
	idxPath, ledPath := w.indexPath(), w.ledgerPath()
	hasIdx, err := fileExists(idxPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	hasLed, err := fileExists(ledPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	switch {
	case !hasIdx && !hasLed:
		return nil
	case !hasLed:
		return fmt.Errorf("%w: index without ledger", ErrCorruptWorkspaceState)
	case !hasIdx:
		return fmt.Errorf("%w: ledger without index", ErrCorruptWorkspaceState)
	}

	doc, err := readLedger(ledPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptWorkspaceState, err)
	}
	if doc.FormatVersion != ledgerFormatVersion {
		return fmt.Errorf("%w: unsupported ledger format version %d", ErrCorruptWorkspaceState, doc.FormatVersion)
	}
	if doc.WorkspaceID != string(w.id) {
		return fmt.Errorf("%w: ledger belongs to workspace %q", ErrCorruptWorkspaceState, doc.WorkspaceID)
	}
	if doc.Dimension != s.dimensions {
		return fmt.Errorf("%w: workspace has %d dimensions, configured %d", ErrDimensionMismatch, doc.Dimension, s.dimensions)
	}
	if doc.IndexType != w.index.Type() {
		return fmt.Errorf("%w: ledger written for %s index, configured %s", ErrCorruptWorkspaceState, doc.IndexType, w.index.Type())
	}

	sum, err := fileChecksum(idxPath)
	if err != nil {
		return fmt.Errorf("%w: checksum index: %v", ErrIO, err)
	}
	if sum != doc.IndexChecksum {
		return fmt.Errorf("%w: index checksum does not match ledger", ErrCorruptWorkspaceState)
	}

	if err := w.index.Load(idxPath); err != nil {
		switch {
		case errors.Is(err, vector.ErrDimensionMismatch):
			return err
		case errors.Is(err, vector.ErrInvalidIndexFile):
			return fmt.Errorf("%w: %v", ErrCorruptWorkspaceState, err)
		default:
			return fmt.Errorf("%w: load index: %v", ErrIO, err)
		}
	}

	if doc.Count != len(doc.Records) || w.index.Size() != len(doc.Records) {
		return fmt.Errorf("%w: index holds %d vectors, ledger count %d with %d records",
			ErrCorruptWorkspaceState, w.index.Size(), doc.Count, len(doc.Records))
	}
	for i, rec := range doc.Records {
		if rec.LocalID != i {
			return fmt.Errorf("%w: ledger entry %d has local id %d", ErrCorruptWorkspaceState, i, rec.LocalID)
		}
	}

	w.ledger = doc.Records
	w.generation = doc.Generation
	return nil
}

// Add appends vectors and their records to the workspace and persists the
// result. records[i] describes vectors[i]; LocalIDs are assigned here and
// returned in input order. On any error the workspace is unchanged.
func (s *Store) Add(ctx context.Context, id WorkspaceID, vectors [][]float32, records []models.ChunkRecord) ([]int, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", ErrLengthMismatch, len(vectors), len(records))
	}
	for i, v := range vectors {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(v), s.dimensions)
		}
	}
	if len(vectors) == 0 {
		return []int{}, nil
	}

	w, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := len(w.ledger)
	ids := make([]int, len(records))
	added := make([]models.ChunkRecord, len(records))
	for i, rec := range records {
		ids[i] = base + i
		rec.LocalID = base + i
		added[i] = rec
	}

	if err := w.index.Add(ctx, vectors); err != nil {
		return nil, err
	}
	w.ledger = append(w.ledger, added...)

	if err := s.commit(ctx, w); err != nil {
		s.rollback(w, base)
		s.logger.Warn("add rolled back",
			zap.String("workspace", string(id)),
			zap.Int("count", len(records)),
			zap.Error(err))
		return nil, err
	}

	documentsAdded.Add(float64(len(records)))
	return ids, nil
}

// rollback returns w to its first n entries. Caller holds w.mu.
func (s *Store) rollback(w *workspace, n int) {
	if err := w.index.Truncate(n); err != nil {
		s.logger.Error("index truncate failed during rollback",
			zap.String("workspace", string(w.id)), zap.Error(err))
	}
	w.ledger = w.ledger[:n:n]
}

// Persist commits the workspace's current state to disk.
func (s *Store) Persist(ctx context.Context, id WorkspaceID) error {
	w, release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	w.mu.Lock()
	defer w.mu.Unlock()
	return s.commit(ctx, w)
}

// Search returns up to k chunks nearest to query, closest first. An empty
// workspace yields no results.
func (s *Store) Search(ctx context.Context, id WorkspaceID, query []float32, k int) ([]*models.SearchResult, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	w, release, err := s.acquire(ctx, id)
	if err != nil {
		searches.WithLabelValues("error").Inc()
		return nil, err
	}
	defer release()

	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.ledger) == 0 || k <= 0 {
		searches.WithLabelValues("empty").Inc()
		return []*models.SearchResult{}, nil
	}
	neighbors, err := w.index.Search(ctx, query, k)
	if err != nil {
		searches.WithLabelValues("error").Inc()
		return nil, err
	}

	results := make([]*models.SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(w.ledger) {
			searches.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: index position %d beyond ledger of %d", ErrCorruptWorkspaceState, n.Position, len(w.ledger))
		}
		rec := w.ledger[n.Position]
		results = append(results, &models.SearchResult{
			LocalID:        rec.LocalID,
			Text:           rec.Text,
			SourceMetadata: rec.SourceMetadata,
			Rank:           len(results) + 1,
			Similarity:     vector.Similarity(n.Distance),
			Distance:       n.Distance,
		})
	}
	searches.WithLabelValues("hit").Inc()
	return results, nil
}

// Stats reports the workspace's size and health.
func (s *Store) Stats(ctx context.Context, id WorkspaceID) (*models.WorkspaceStats, error) {
	return s.Load(ctx, id)
}

func (s *Store) statsLocked(w *workspace) *models.WorkspaceStats {
	stats := &models.WorkspaceStats{
		WorkspaceID:        string(w.id),
		TotalDocuments:     len(w.ledger),
		IndexSize:          w.index.Size(),
		EmbeddingDimension: s.dimensions,
		IndexType:          w.index.Type(),
		Generation:         w.generation,
	}
	usage, err := DiskUsageBytes(w.indexPath(), w.ledgerPath())
	if err != nil {
		s.logger.Warn("disk usage unavailable", zap.String("workspace", string(w.id)), zap.Error(err))
	}
	stats.DiskUsageBytes = usage
	if stats.TotalDocuments != stats.IndexSize {
		stats.Degraded = true
		degradedStats.Inc()
		s.logger.Error("workspace degraded: ledger and index sizes differ",
			zap.String("workspace", string(w.id)),
			zap.Int("ledger", stats.TotalDocuments),
			zap.Int("index", stats.IndexSize))
	}
	return stats
}

// Loaded returns the ids of resident workspaces, most recently used first.
func (s *Store) Loaded() []WorkspaceID {
	return s.reg.loaded()
}

// Close releases every resident workspace. Committed state is already on
// disk, so nothing is written. The Store is unusable afterwards.
func (s *Store) Close() error {
	var errs []error
	for _, w := range s.reg.close() {
		w.mu.Lock()
		if err := w.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.id, err))
		}
		w.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) evicted(w *workspace) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.index.Close(); err != nil {
		s.logger.Warn("close evicted index", zap.String("workspace", string(w.id)), zap.Error(err))
	}
	s.logger.Debug("workspace evicted", zap.String("workspace", string(w.id)))
}
