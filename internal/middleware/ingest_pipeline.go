package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, b *models.Bar) error
}

// IngestPipeline sits between the bar feeds and the engine.
// It rejects malformed bars and throttles live (unsealed) updates per
// symbol and timeframe. Sealed bars always pass.
type IngestPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  float64
	burst   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	transform func(*models.Bar) *models.Bar
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max live updates per second per symbol and timeframe.
// Zero disables throttling.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *IngestPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBurst sets how many live updates may pass back to back.
func WithBurst(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.burst = n
		}
	}
}

// WithTransform sets a hook applied to every bar before validation.
func WithTransform(fn func(*models.Bar) *models.Bar) PipelineOption {
	return func(p *IngestPipeline) { p.transform = fn }
}

// NormalizeSymbol upper-cases and trims the symbol.
func NormalizeSymbol(b *models.Bar) *models.Bar {
	b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
	return b
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:      proc,
		metrics:   metrics,
		maxRPS:    5, // default live updates per second
		burst:     1,
		limiters:  make(map[string]*rate.Limiter),
		transform: NormalizeSymbol,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles, and forwards a bar downstream.
func (p *IngestPipeline) Process(ctx context.Context, b *models.Bar) error {
	start := time.Now()
	if b == nil {
		p.metrics.RecordDropped("nil_bar")
		return fmt.Errorf("%w: bar nil", models.ErrInvalidBarGeometry)
	}
	if p.transform != nil {
		b = p.transform(b)
	}
	if err := b.Validate(); err != nil {
		p.metrics.RecordDropped("invalid_geometry")
		return err
	}
	if !models.IsValidTimeframe(b.Timeframe) {
		p.metrics.RecordDropped("unknown_timeframe")
		return fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, b.Timeframe)
	}
	if !b.Sealed && !p.allow(b.Symbol+"|"+string(b.Timeframe)) {
		p.metrics.RecordDropped("throttled")
		return nil
	}

	if err := p.proc.Process(ctx, b); err != nil {
		return fmt.Errorf("ingest downstream: %w", err)
	}
	p.metrics.RecordLatency("ingest_process", time.Since(start).Seconds())
	return nil
}

func (p *IngestPipeline) allow(key string) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	lim, ok := p.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.maxRPS), p.burst)
		p.limiters[key] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
