// Package retrieval is the entry point for ingestion and query callers. It
// embeds text with an embedding.Embedder and stores or searches the vectors
// in per-workspace indexes.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/tana/internal/embedding"
	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/internal/store"
)

// TracerName identifies spans started by this package.
const TracerName = "github.com/hyperjump/tana/internal/retrieval"

var (
	// ErrInvalidMetadata is returned for metadata values that are not strings or numbers.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrEmptyQuery is returned for a search without query text.
	ErrEmptyQuery = models.ErrEmptyQuery

	// ErrLengthMismatch is returned when texts and metadata differ in length.
	ErrLengthMismatch = store.ErrLengthMismatch
)

// Store is the workspace index store the service writes to and searches.
type Store interface {
	Add(ctx context.Context, id store.WorkspaceID, vectors [][]float32, records []models.ChunkRecord) ([]int, error)
	Search(ctx context.Context, id store.WorkspaceID, query []float32, k int) ([]*models.SearchResult, error)
	Stats(ctx context.Context, id store.WorkspaceID) (*models.WorkspaceStats, error)
	Dimensions() int
}

// Service composes the embedder and the store. Embedding and index search
// run on a bounded pool of workers.
type Service struct {
	embedder embedding.Embedder
	store    Store
	workers  *semaphore.Weighted
	poolSize int
	defaultK int
	maxK     int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers sets how many embedding or search calls may run at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// WithSearchLimits sets the k used when a search does not give one, and the
// largest k a search may ask for. maxK <= 0 means no cap.
func WithSearchLimits(defaultK, maxK int) Option {
	return func(s *Service) {
		if defaultK > 0 {
			s.defaultK = defaultK
		}
		s.maxK = maxK
	}
}

// New returns a Service. The embedder and the store must agree on the vector dimension.
func New(embedder embedding.Embedder, st Store, opts ...Option) (*Service, error) {
	if embedder.Dimensions() != st.Dimensions() {
		return nil, fmt.Errorf("embedder produces %d dimensions, store expects %d", embedder.Dimensions(), st.Dimensions())
	}
	s := &Service{
		embedder: embedder,
		store:    st,
		poolSize: runtime.NumCPU(),
		defaultK: 5,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.workers = semaphore.NewWeighted(int64(s.poolSize))
	return s, nil
}

// AddDocuments embeds texts and appends them to the workspace. metadata[i]
// belongs to texts[i]; its values must be strings or numbers. Returns the
// assigned local ids in input order. Nothing is stored if any step fails.
func (s *Service) AddDocuments(ctx context.Context, workspaceID string, texts []string, metadata []map[string]any) (ids []int, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.add_documents",
		trace.WithAttributes(
			attribute.String("tana.workspace", workspaceID),
			attribute.Int("tana.batch_size", len(texts)),
		))
	defer func() { endSpan(span, err) }()

	id, err := store.ParseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	if len(texts) != len(metadata) {
		return nil, fmt.Errorf("%w: %d texts, %d metadata entries", ErrLengthMismatch, len(texts), len(metadata))
	}
	records := make([]models.ChunkRecord, len(texts))
	for i, text := range texts {
		md, err := normalizeMetadata(metadata[i])
		if err != nil {
			return nil, fmt.Errorf("metadata %d: %w", i, err)
		}
		records[i] = models.ChunkRecord{Text: text, SourceMetadata: md}
	}
	if len(texts) == 0 {
		return []int{}, nil
	}

	start := time.Now()
	var vectors [][]float32
	err = s.withWorker(ctx, func() error {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkVectors(vectors, len(texts)); err != nil {
		return nil, err
	}

	ids, err = s.store.Add(ctx, id, vectors, records)
	if err != nil {
		return nil, err
	}
	s.logger.Info("documents added",
		zap.String("workspace", workspaceID),
		zap.Int("count", len(ids)),
		zap.Duration("took", time.Since(start)))
	return ids, nil
}

// Search embeds query and returns up to k nearest chunks in the workspace,
// closest first. k <= 0 uses the default k; larger values are capped.
func (s *Service) Search(ctx context.Context, workspaceID, query string, k int) (results []*models.SearchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.search",
		trace.WithAttributes(
			attribute.String("tana.workspace", workspaceID),
			attribute.Int("tana.k", k),
		))
	defer func() { endSpan(span, err) }()

	id, err := store.ParseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	q := models.SearchQuery{Query: query, K: k}
	if err := q.Validate(s.defaultK, s.maxK); err != nil {
		return nil, err
	}

	err = s.withWorker(ctx, func() error {
		vectors, err := s.embedder.EmbedBatch(ctx, []string{q.Query})
		if err != nil {
			return err
		}
		if err := s.checkVectors(vectors, 1); err != nil {
			return err
		}
		results, err = s.store.Search(ctx, id, vectors[0], q.K)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("tana.results", len(results)))
	s.logger.Debug("search",
		zap.String("workspace", workspaceID),
		zap.Int("k", q.K),
		zap.Int("count", len(results)))
	return results, nil
}

// Stats reports the workspace's size and health.
func (s *Service) Stats(ctx context.Context, workspaceID string) (stats *models.WorkspaceStats, err error) {
	ctx, span := s.tracer.Start(ctx, "retrieval.stats",
		trace.WithAttributes(attribute.String("tana.workspace", workspaceID)))
	defer func() { endSpan(span, err) }()

	id, err := store.ParseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, id)
}

// withWorker runs fn holding one pool slot. Waiting for a slot ends with ctx.
func (s *Service) withWorker(ctx context.Context, fn func() error) error {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.workers.Release(1)
	return fn()
}

func (s *Service) checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: %d vectors for %d texts", embedding.ErrModelUnavailable, len(vectors), want)
	}
	dims := s.store.Dimensions()
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", embedding.ErrModelUnavailable, i, len(v), dims)
		}
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
