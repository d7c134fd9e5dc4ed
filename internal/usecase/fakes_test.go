package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"StratEngine/internal/domain/models"
)

type fakeMetrics struct {
	mu      sync.Mutex
	dropped map[string]int
	errs    map[string]int
	bars    int
	plans   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{dropped: map[string]int{}, errs: map[string]int{}}
}

func (m *fakeMetrics) RecordBar(string, models.Timeframe) {
	m.mu.Lock()
	m.bars++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordDropped(reason string) {
	m.mu.Lock()
	m.dropped[reason]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordTransition(models.PatternKind, models.PatternStatus) {}

func (m *fakeMetrics) RecordPlan(bool, models.RejectionReason) {
	m.mu.Lock()
	m.plans++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAlignment(string, int) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errs[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakeSink struct {
	mu       sync.Mutex
	plans    []models.TradePlan
	exits    []models.ExitSignal
	failures int // fail this many calls before succeeding
	calls    int
}

func (s *fakeSink) PublishPlan(_ context.Context, p *models.TradePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.plans = append(s.plans, *p)
	return nil
}

func (s *fakeSink) PublishExit(_ context.Context, e *models.ExitSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits = append(s.exits, *e)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
	plans  []models.TradePlan
}

func (a *fakeAudit) Init(context.Context) error { return nil }

func (a *fakeAudit) Append(_ context.Context, events []models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, events...)
	return nil
}

func (a *fakeAudit) StorePlans(_ context.Context, plans []models.TradePlan) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plans = append(a.plans, plans...)
	return nil
}

func (a *fakeAudit) RecentPlans(_ context.Context, symbol string, limit int) ([]models.TradePlan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.TradePlan
	for i := len(a.plans) - 1; i >= 0 && len(out) < limit; i-- {
		if a.plans[i].Symbol == symbol {
			out = append(out, a.plans[i])
		}
	}
	return out, nil
}

func (a *fakeAudit) Purge(_ context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.events[:0]
	var n int64
	for _, ev := range a.events {
		if ev.At.Before(before) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	a.events = kept
	return n, nil
}

func (a *fakeAudit) Health(context.Context) error { return nil }
func (a *fakeAudit) Close() error { return nil }

func (a *fakeAudit) count(kind models.AuditKind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, ev := range a.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeCache struct {
	mu    sync.Mutex
	snaps map[string]models.ContinuitySnapshot
}

func newFakeCache() *fakeCache { return &fakeCache{snaps: map[string]models.ContinuitySnapshot{}} }

func (c *fakeCache) SetContinuity(_ context.Context, s *models.ContinuitySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[s.Symbol] = *s
	return nil
}

func (c *fakeCache) GetContinuity(_ context.Context, symbol string) (*models.ContinuitySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[symbol]
	if !ok {
		return nil, errors.New("miss")
	}
	return &s, nil
}
