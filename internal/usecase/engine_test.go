package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"StratEngine/internal/domain/models"
	"StratEngine/internal/services/pattern"
	"StratEngine/internal/services/planner"
	"StratEngine/pkg/logger"
)

var monday = time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)

func daily(symbol string, day int, o, h, l, c float64, sealed bool) models.Bar {
	return models.Bar{Symbol: symbol, Timeframe: models.TFDay, OpenTime: monday.AddDate(0, 0, day), Open: o, High: h, Low: l, Close: c, Sealed: sealed}
}

// base, outside down, inside, then a 2U that triggers the long 3-1-2
func threeOneTwoBars(symbol string) []models.Bar {
	return []models.Bar{
		daily(symbol, 0, 100, 105, 95, 100, true),
		daily(symbol, 1, 108, 110.01, 90, 92, true),
		daily(symbol, 2, 97, 100, 96.01, 99, true),
		daily(symbol, 3, 98, 101, 97, 100.5, true),
	}
}

func testConfig(tfs ...models.Timeframe) PipelineConfig {
	cfg := planner.DefaultConfig()
	return PipelineConfig{
		Timeframes:     tfs,
		Location:       time.UTC,
		PatternOptions: []pattern.Option{pattern.WithTick(0.01), pattern.WithTier(models.TierAggressive)},
		Planner:        planner.New(cfg),
		Clock:          func() time.Time { return monday.AddDate(0, 0, 7) },
	}
}

func TestEngineEndToEndAcceptedPlan(t *testing.T) {
	sink := &fakeSink{}
	audit := &fakeAudit{}
	cache := newFakeCache()
	metrics := newFakeMetrics()
	e := NewEngine(testConfig(models.TFDay), metrics, logger.NewNop(),
		WithPlanSink(sink), WithAuditStore(audit), WithSnapshotCache(cache))

	for _, b := range threeOneTwoBars("spy") {
		if _, err := e.Ingest(context.Background(), b); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	if len(sink.plans) != 1 {
		t.Fatalf("plans = %d, want 1", len(sink.plans))
	}
	p := sink.plans[0]
	if !p.Accept || p.Kind != models.PatternThreeOneTwoReversal || p.Direction != models.DirectionLong {
		t.Fatalf("plan = %+v", p)
	}
	if math.Abs(p.EntryTrigger-100.01) > 1e-9 || p.Stop != 96.01 || p.Targets[0] != 110.01 {
		t.Fatalf("levels entry=%v stop=%v targets=%v", p.EntryTrigger, p.Stop, p.Targets)
	}
	if math.Abs(p.RiskReward-0.4) > 1e-9 || p.PositionSize != 500 {
		t.Fatalf("rr=%v size=%d", p.RiskReward, p.PositionSize)
	}
	if p.Alignment.Kind != models.AlignmentFullUp || p.Symbol != "SPY" {
		t.Fatalf("alignment=%+v symbol=%q", p.Alignment, p.Symbol)
	}

	if len(audit.plans) != 1 || audit.count(models.AuditPlanEmitted) != 1 {
		t.Fatalf("audit plans = %d", len(audit.plans))
	}
	if n := audit.count(models.AuditTimeframeSealed); n != 4 {
		t.Fatalf("sealed events = %d, want 4", n)
	}
	if _, err := cache.GetContinuity(context.Background(), "SPY"); err != nil {
		t.Fatalf("continuity not cached: %v", err)
	}
	if metrics.bars != 4 || metrics.plans != 1 {
		t.Fatalf("metrics bars=%d plans=%d", metrics.bars, metrics.plans)
	}
}

func TestEngineRejectsOnConflict(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(testConfig(models.TFDay, models.TFWeek), newFakeMetrics(), logger.NewNop(), WithPlanSink(sink))
	ctx := context.Background()

	week := func(start time.Time, o, h, l, c float64, sealed bool) models.Bar {
		return models.Bar{Symbol: "SPY", Timeframe: models.TFWeek, OpenTime: start, Open: o, High: h, Low: l, Close: c, Sealed: sealed}
	}
	for _, b := range []models.Bar{
		week(monday.AddDate(0, 0, -14), 100, 120, 80, 100, true),
		week(monday.AddDate(0, 0, -7), 100, 110, 90, 105, true), // sealed inside week
	} {
		if _, err := e.Ingest(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	for _, b := range threeOneTwoBars("SPY") {
		if _, err := e.Ingest(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	if len(sink.plans) != 1 {
		t.Fatalf("plans = %d, want 1", len(sink.plans))
	}
	p := sink.plans[0]
	if p.Accept || p.RejectionReason != models.RejectContinuityConflict || p.PositionSize != 0 {
		t.Fatalf("plan = %+v", p)
	}
}

func TestEngineDropsOutOfOrder(t *testing.T) {
	metrics := newFakeMetrics()
	e := NewEngine(testConfig(models.TFDay), metrics, logger.NewNop())
	b := daily("SPY", 0, 100, 105, 95, 100, true)
	if _, err := e.Ingest(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Ingest(context.Background(), b); !errors.Is(err, models.ErrOutOfOrderBar) {
		t.Fatalf("err = %v", err)
	}
	if metrics.dropped["out_of_order"] != 1 {
		t.Fatalf("dropped = %v", metrics.dropped)
	}

	wk := b
	wk.Timeframe = models.TFMonth
	if _, err := e.Ingest(context.Background(), wk); !errors.Is(err, models.ErrUntrackedTimeframe) {
		t.Fatalf("err = %v", err)
	}
}

func TestEngineSymbolAllowList(t *testing.T) {
	metrics := newFakeMetrics()
	e := NewEngine(testConfig(models.TFDay), metrics, logger.NewNop(), WithSymbols("spy"))
	res, err := e.Ingest(context.Background(), daily("QQQ", 0, 1, 2, 1, 2, true))
	if err != nil || res != nil {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if metrics.dropped["unknown_symbol"] != 1 {
		t.Fatalf("dropped = %v", metrics.dropped)
	}
	if got := e.Symbols(); len(got) != 1 || got[0] != "SPY" {
		t.Fatalf("symbols = %v", got)
	}
}

func TestEngineParallelSymbols(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(testConfig(models.TFDay), newFakeMetrics(), logger.NewNop(), WithPlanSink(sink))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sym := fmt.Sprintf("S%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range threeOneTwoBars(sym) {
				if _, err := e.Ingest(context.Background(), b); err != nil {
					t.Errorf("%s: %v", sym, err)
				}
			}
		}()
	}
	wg.Wait()

	if len(e.Symbols()) != 8 || len(sink.plans) != 8 {
		t.Fatalf("symbols=%d plans=%d", len(e.Symbols()), len(sink.plans))
	}
}

func TestEngineRollupDerivesWeekly(t *testing.T) {
	cfg := testConfig(models.TFDay, models.TFWeek)
	cfg.Rollup = true
	e := NewEngine(cfg, newFakeMetrics(), logger.NewNop())
	for _, b := range threeOneTwoBars("SPY") {
		if _, err := e.Ingest(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}
	states, ok := e.Timeframes("SPY")
	if !ok || len(states) != 2 {
		t.Fatalf("states = %+v", states)
	}
	w := states[1]
	if w.Timeframe != models.TFWeek || w.Live == nil {
		t.Fatalf("weekly state = %+v", w)
	}
	if w.PeriodAnchorOpen != 100 || w.LastPrice != 100.5 || w.Live.High != 110.01 || w.Live.Low != 90 {
		t.Fatalf("weekly bar = %+v anchor=%v", w.Live, w.PeriodAnchorOpen)
	}

	weekly := models.Bar{Symbol: "SPY", Timeframe: models.TFWeek, OpenTime: monday.AddDate(0, 0, 7), Open: 1, High: 2, Low: 1, Close: 2}
	if _, err := e.Ingest(context.Background(), weekly); !errors.Is(err, models.ErrUntrackedTimeframe) {
		t.Fatalf("direct weekly bar in rollup mode: %v", err)
	}
}

func TestEngineExitSignals(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(testConfig(models.TFDay), newFakeMetrics(), logger.NewNop(), WithPlanSink(sink))
	for _, b := range []models.Bar{
		daily("SPY", 0, 100, 105, 95, 100, true),
		daily("SPY", 1, 101, 106, 97, 105, true),
		daily("SPY", 2, 104, 105.5, 96, 97, true),
	} {
		if _, err := e.Ingest(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.exits) != 1 || sink.exits[0].Direction != models.DirectionLong {
		t.Fatalf("exits = %+v", sink.exits)
	}
}

type blockingSink struct {
	fakeSink
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSink) PublishPlan(ctx context.Context, p *models.TradePlan) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.fakeSink.PublishPlan(ctx, p)
}

func TestEnginePublishDoesNotHoldSymbolLock(t *testing.T) {
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	e := NewEngine(testConfig(models.TFDay), newFakeMetrics(), logger.NewNop(), WithPlanSink(sink))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, b := range threeOneTwoBars("SPY") {
			if _, err := e.Ingest(ctx, b); err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}
	}()
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("plan never reached the sink")
	}

	queried := make(chan models.ContinuitySnapshot, 1)
	go func() {
		snap, _ := e.Continuity("SPY")
		queried <- snap
	}()
	select {
	case snap := <-queried:
		if snap.Symbol != "SPY" {
			t.Fatalf("snapshot = %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuity query blocked behind a slow sink")
	}

	// the next bar of the same symbol is processed while the sink is still busy
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Ingest(ctx, daily("SPY", 4, 100.5, 102, 100, 101.8, true)); err != nil {
			t.Errorf("Ingest day 4: %v", err)
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		states, _ := e.Timeframes("SPY")
		if len(states) == 1 && states[0].LastPrice == 101.8 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second bar not processed while publish blocked: %+v", states)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(sink.release)
	wg.Wait()
	if len(sink.plans) != 1 || sink.plans[0].Kind != models.PatternThreeOneTwoReversal {
		t.Fatalf("plans = %+v", sink.plans)
	}
}
