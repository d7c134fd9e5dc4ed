package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"StratEngine/internal/domain/models"
	drepo "StratEngine/internal/domain/repository"
	"StratEngine/pkg/logger"
)

// PlanDispatcher delivers plans and exit signals to the configured sink,
// retrying transient failures with exponential backoff.
type PlanDispatcher struct {
	sink       drepo.PlanSink
	metrics    drepo.Metrics
	logger     *logger.Logger
	backend    string
	maxElapsed time.Duration
}

// NewPlanDispatcher creates a new PlanDispatcher instance.
func NewPlanDispatcher(
	sink drepo.PlanSink,
	metrics drepo.Metrics,
	log *logger.Logger,
	backend string,
	maxElapsed time.Duration,
) *PlanDispatcher {
	if maxElapsed <= 0 {
		maxElapsed = 10 * time.Second
	}
	return &PlanDispatcher{
		sink:       sink,
		metrics:    metrics,
		logger:     log,
		backend:    backend,
		maxElapsed: maxElapsed,
	}
}

func (d *PlanDispatcher) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = d.maxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// PublishPlan sends one plan, accepted or rejected.
func (d *PlanDispatcher) PublishPlan(ctx context.Context, p *models.TradePlan) error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	start := time.Now()
	attempts := 0
	err := d.retry(ctx, func() error {
		attempts++
		return d.sink.PublishPlan(ctx, p)
	})
	if err != nil {
		d.metrics.RecordError("dispatch_plan")
		return fmt.Errorf("dispatch plan %s: %w", p.ID, err)
	}
	if attempts > 1 {
		d.logger.Warn("plan delivered after retries",
			logger.String("backend", d.backend),
			logger.String("plan_id", p.ID),
			logger.Int("attempts", attempts))
	}
	d.metrics.RecordLatency("dispatch_plan", time.Since(start).Seconds())
	return nil
}

// PublishExit sends one exit signal.
func (d *PlanDispatcher) PublishExit(ctx context.Context, e *models.ExitSignal) error {
	if e == nil {
		return fmt.Errorf("exit signal is nil")
	}
	start := time.Now()
	if err := d.retry(ctx, func() error { return d.sink.PublishExit(ctx, e) }); err != nil {
		d.metrics.RecordError("dispatch_exit")
		return fmt.Errorf("dispatch exit %s %s: %w", e.Symbol, e.Timeframe, err)
	}
	d.metrics.RecordLatency("dispatch_exit", time.Since(start).Seconds())
	return nil
}

// Close closes the underlying sink.
func (d *PlanDispatcher) Close() error {
	if d.sink != nil {
		return d.sink.Close()
	}
	return nil
}

var _ drepo.PlanSink = (*PlanDispatcher)(nil)
