package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StratEngine/internal/domain/models"
)

type recorder struct {
	mu   sync.Mutex
	bars []models.Bar
}

func (r *recorder) Process(_ context.Context, b *models.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append(r.bars, *b)
	return nil
}

type countingMetrics struct {
	mu      sync.Mutex
	dropped map[string]int
}

func (m *countingMetrics) RecordBar(string, models.Timeframe) {}
func (m *countingMetrics) RecordTransition(models.PatternKind, models.PatternStatus) {}
func (m *countingMetrics) RecordPlan(bool, models.RejectionReason) {}
func (m *countingMetrics) RecordAlignment(string, int) {}
func (m *countingMetrics) RecordError(string) {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) RecordDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func liveBar() *models.Bar {
	return &models.Bar{
		Symbol: " spy ", Timeframe: models.TF5m,
		OpenTime: time.Date(2024, 8, 12, 13, 30, 0, 0, time.UTC),
		Open:     10, High: 11, Low: 9, Close: 10.5,
	}
}

func TestIngestRejectsBadGeometry(t *testing.T) {
	rec := &recorder{}
	m := &countingMetrics{dropped: map[string]int{}}
	p := NewIngestPipeline(rec, m)

	b := liveBar()
	b.High = 10.2 // below close
	if err := p.Process(context.Background(), b); !errors.Is(err, models.ErrInvalidBarGeometry) {
		t.Fatalf("err = %v", err)
	}
	b = liveBar()
	b.Low = 10.6 // above open
	if err := p.Process(context.Background(), b); !errors.Is(err, models.ErrInvalidBarGeometry) {
		t.Fatalf("err = %v", err)
	}
	b = liveBar()
	b.Timeframe = "2h"
	if err := p.Process(context.Background(), b); !errors.Is(err, models.ErrUnknownTimeframe) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.bars) != 0 || m.dropped["invalid_geometry"] != 2 || m.dropped["unknown_timeframe"] != 1 {
		t.Fatalf("forwarded=%d dropped=%v", len(rec.bars), m.dropped)
	}
}

func TestIngestThrottlesLiveUpdatesOnly(t *testing.T) {
	rec := &recorder{}
	m := &countingMetrics{dropped: map[string]int{}}
	p := NewIngestPipeline(rec, m, WithMaxRPS(0.001), WithBurst(1))

	for i := 0; i < 3; i++ {
		if err := p.Process(context.Background(), liveBar()); err != nil {
			t.Fatal(err)
		}
	}
	sealed := liveBar()
	sealed.Sealed = true
	if err := p.Process(context.Background(), sealed); err != nil {
		t.Fatal(err)
	}

	if len(rec.bars) != 2 || m.dropped["throttled"] != 2 {
		t.Fatalf("forwarded=%d dropped=%v", len(rec.bars), m.dropped)
	}
	if rec.bars[0].Symbol != "SPY" || !rec.bars[1].Sealed {
		t.Fatalf("bars = %+v", rec.bars)
	}
}

func TestIngestThrottleDisabled(t *testing.T) {
	rec := &recorder{}
	p := NewIngestPipeline(rec, &countingMetrics{dropped: map[string]int{}}, WithMaxRPS(0))
	for i := 0; i < 5; i++ {
		_ = p.Process(context.Background(), liveBar())
	}
	if len(rec.bars) != 5 {
		t.Fatalf("forwarded = %d", len(rec.bars))
	}
}
