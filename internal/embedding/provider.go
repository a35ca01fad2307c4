package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const loadKey = "model"

// Provider is an Embedder that loads its model on first use. Concurrent first
// callers share one load; a failed load is reported to every waiter and the
// next call tries again.
type Provider struct {
	backend    string
	dimensions int
	load       Loader
	logger     *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	model  Embedder
	closed bool
}

// NewProvider returns a Provider for backend that produces vectors of the
// given dimension. The model is not loaded until Init or the first Embed.
func NewProvider(backend string, dimensions int, load Loader, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		backend:    backend,
		dimensions: dimensions,
		load:       load,
		logger:     logger,
	}
}

// Init loads the model now instead of on first use.
func (p *Provider) Init(ctx context.Context) error {
	_, err := p.get(ctx)
	return err
}

// Loaded reports whether the model is resident.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Backend returns the backend name the provider was created with.
func (p *Provider) Backend() string {
	return p.backend
}

func (p *Provider) get(ctx context.Context) (Embedder, error) {
	p.mu.RLock()
	m, closed := p.model, p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: provider closed", ErrModelUnavailable)
	}
	if m != nil {
		return m, nil
	}

	// The load itself is not tied to any one caller's context, so a caller
	// giving up does not fail the load for the others.
	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(loadKey, func() (any, error) {
		p.mu.RLock()
		m := p.model
		p.mu.RUnlock()
		if m != nil {
			return m, nil
		}
		return p.doLoad(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Embedder), nil
	}
}

func (p *Provider) doLoad(ctx context.Context) (Embedder, error) {
	start := time.Now()
	m, err := p.load(ctx)
	modelLoadDuration.WithLabelValues(p.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		modelLoads.WithLabelValues(p.backend, "error").Inc()
		p.logger.Error("embedding model load failed", zap.String("backend", p.backend), zap.Error(err))
		if errors.Is(err, ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, p.backend, err)
	}
	if d := m.Dimensions(); d != p.dimensions {
		_ = m.Close()
		modelLoads.WithLabelValues(p.backend, "error").Inc()
		return nil, fmt.Errorf("%w: %s produces %d dimensions, configured %d", ErrModelUnavailable, p.backend, d, p.dimensions)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = m.Close()
		return nil, fmt.Errorf("%w: provider closed", ErrModelUnavailable)
	}
	p.model = m
	modelLoads.WithLabelValues(p.backend, "ok").Inc()
	p.logger.Info("embedding model loaded",
		zap.String("backend", p.backend),
		zap.Int("dimensions", p.dimensions),
		zap.Duration("took", time.Since(start)))
	return m, nil
}

// Embed embeds a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, loading the model if needed. The output is checked
// against the request: one vector per text, each of the configured dimension.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	m, err := p.get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := m.EmbedBatch(ctx, texts)
	embedDuration.WithLabelValues(p.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, p.backend, err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", ErrModelUnavailable, p.backend, len(out), len(texts))
	}
	for i, v := range out {
		if len(v) != p.dimensions {
			return nil, fmt.Errorf("%w: %s vector %d has %d dimensions, configured %d", ErrModelUnavailable, p.backend, i, len(v), p.dimensions)
		}
	}
	embeddedTexts.WithLabelValues(p.backend).Add(float64(len(texts)))
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Close releases the model. Later calls fail with ErrModelUnavailable.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}
