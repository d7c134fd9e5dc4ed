package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"StratEngine/internal/domain/models"
	drepo "StratEngine/internal/domain/repository"
	"StratEngine/pkg/logger"
)

type symbolEntry struct {
	// mu guards p and next.
	mu   sync.Mutex
	p    *SymbolPipeline
	next uint64

	// results publish in ticket order without holding mu
	pubMu  sync.Mutex
	turn   *sync.Cond
	served uint64
}

func newSymbolEntry(p *SymbolPipeline) *symbolEntry {
	ent := &symbolEntry{p: p}
	ent.turn = sync.NewCond(&ent.pubMu)
	return ent
}

func (ent *symbolEntry) await(ticket uint64) {
	ent.pubMu.Lock()
	for ent.served != ticket {
		ent.turn.Wait()
	}
	ent.pubMu.Unlock()
}

func (ent *symbolEntry) done() {
	ent.pubMu.Lock()
	ent.served++
	ent.turn.Broadcast()
	ent.pubMu.Unlock()
}

// Engine fans bars out to one pipeline per symbol and performs all I/O
// (sink, audit, cache) once a pipeline returns, outside the pipeline lock.
// Symbols run in parallel; bars of one symbol are serialized.
type Engine struct {
	cfg     PipelineConfig
	allowed map[string]bool

	mu      sync.RWMutex
	symbols map[string]*symbolEntry

	sink    drepo.PlanSink
	audit   drepo.AuditStore
	cache   drepo.SnapshotCache
	metrics drepo.Metrics
	logger  *logger.Logger
}

// EngineOption wires optional adapters.
type EngineOption func(*Engine)

func WithPlanSink(s drepo.PlanSink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

func WithAuditStore(a drepo.AuditStore) EngineOption {
	return func(e *Engine) { e.audit = a }
}

func WithSnapshotCache(c drepo.SnapshotCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithSymbols restricts ingestion to the given symbols. Empty accepts all.
func WithSymbols(symbols ...string) EngineOption {
	return func(e *Engine) {
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				e.allowed[s] = true
			}
		}
	}
}

func NewEngine(cfg PipelineConfig, metrics drepo.Metrics, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:     cfg,
		allowed: make(map[string]bool),
		symbols: make(map[string]*symbolEntry),
		metrics: metrics,
		logger:  log,
	}
	for _, opt := range opts {
		opt(e)
	}
	for s := range e.allowed {
		e.entry(s)
	}
	return e
}

func (e *Engine) entry(symbol string) *symbolEntry {
	e.mu.RLock()
	ent, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if ok {
		return ent
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok = e.symbols[symbol]; ok {
		return ent
	}
	ent = newSymbolEntry(NewSymbolPipeline(symbol, e.cfg))
	e.symbols[symbol] = ent
	return ent
}

func (e *Engine) lookup(symbol string) (*symbolEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.symbols[strings.ToUpper(symbol)]
	return ent, ok
}

// Ingest runs one validated bar through its symbol pipeline and publishes
// the results. Adapter failures are logged and counted, never returned.
func (e *Engine) Ingest(ctx context.Context, bar models.Bar) (*PipelineResult, error) {
	bar.Symbol = strings.ToUpper(bar.Symbol)
	if len(e.allowed) > 0 && !e.allowed[bar.Symbol] {
		e.metrics.RecordDropped("unknown_symbol")
		return nil, nil
	}

	ent := e.entry(bar.Symbol)
	ent.mu.Lock()
	start := time.Now()
	res, err := ent.p.Process(bar)
	if err != nil {
		ent.mu.Unlock()
		switch {
		case errors.Is(err, models.ErrOutOfOrderBar):
			e.metrics.RecordDropped("out_of_order")
			e.logger.Warn("bar dropped", logger.String("symbol", bar.Symbol),
				logger.String("timeframe", string(bar.Timeframe)), logger.Error(err))
		case errors.Is(err, models.ErrUntrackedTimeframe):
			e.metrics.RecordDropped("untracked_timeframe")
		default:
			e.metrics.RecordError("pipeline")
		}
		return nil, err
	}
	res.Continuity.Timeframes = append([]models.TimeframeControl(nil), res.Continuity.Timeframes...)
	ticket := ent.next
	ent.next++
	ent.mu.Unlock()

	ent.await(ticket)
	defer ent.done()

	e.metrics.RecordLatency("pipeline", time.Since(start).Seconds())
	e.metrics.RecordBar(bar.Symbol, bar.Timeframe)

	e.publish(ctx, &res)
	return &res, nil
}

// Process adapts Ingest to the ingest middleware. Bars the pipeline refuses
// are already counted, so only nil bars are reported.
func (e *Engine) Process(ctx context.Context, b *models.Bar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}
	_, err := e.Ingest(ctx, *b)
	if errors.Is(err, models.ErrOutOfOrderBar) || errors.Is(err, models.ErrUntrackedTimeframe) {
		return nil
	}
	return err
}

func (e *Engine) publish(ctx context.Context, res *PipelineResult) {
	snap := res.Continuity
	e.metrics.RecordAlignment(res.Symbol, snap.Aligned(snap.Alignment.Direction))

	var events []models.AuditEvent
	add := func(kind models.AuditKind, tf models.Timeframe, payload any, at time.Time) {
		ev, err := models.NewAuditEvent(kind, res.Symbol, tf, payload, at)
		if err != nil {
			e.logger.Error("encode audit event", logger.String("kind", string(kind)), logger.Error(err))
			return
		}
		events = append(events, ev)
	}

	for _, b := range res.Sealed {
		add(models.AuditTimeframeSealed, b.Timeframe, b, snap.Timestamp)
	}
	for _, c := range res.Couplings {
		add(models.AuditCouplingChanged, c.Timeframe, c.Change, snap.Timestamp)
	}
	for _, t := range res.Transitions {
		e.metrics.RecordTransition(t.Instance.Kind, t.To)
		add(models.AuditPatternTransition, t.Instance.Timeframe, t, t.At)
	}
	for i := range res.Plans {
		p := &res.Plans[i]
		e.metrics.RecordPlan(p.Accept, p.RejectionReason)
		add(models.AuditPlanEmitted, p.Timeframe, p, p.CreatedAt)
		if e.sink != nil {
			if err := e.sink.PublishPlan(ctx, p); err != nil {
				e.logger.Error("publish plan", logger.String("symbol", p.Symbol), logger.String("plan_id", p.ID), logger.Error(err))
			}
		}
	}
	for i := range res.Exits {
		x := &res.Exits[i]
		add(models.AuditExitSignal, x.Timeframe, x, x.At)
		if e.sink != nil {
			if err := e.sink.PublishExit(ctx, x); err != nil {
				e.logger.Error("publish exit", logger.String("symbol", x.Symbol), logger.Error(err))
			}
		}
	}

	if e.audit != nil {
		if len(events) > 0 {
			if err := e.audit.Append(ctx, events); err != nil {
				e.metrics.RecordError("audit_append")
				e.logger.Error("append audit events", logger.String("symbol", res.Symbol), logger.Int("count", len(events)), logger.Error(err))
			}
		}
		if len(res.Plans) > 0 {
			if err := e.audit.StorePlans(ctx, res.Plans); err != nil {
				e.metrics.RecordError("audit_plans")
				e.logger.Error("store plans", logger.String("symbol", res.Symbol), logger.Error(err))
			}
		}
	}

	if e.cache != nil {
		if err := e.cache.SetContinuity(ctx, &snap); err != nil {
			e.metrics.RecordError("cache_set")
			e.logger.Debug("cache continuity", logger.String("symbol", res.Symbol), logger.Error(err))
		}
	}
}

// Continuity returns the latest snapshot for symbol.
func (e *Engine) Continuity(symbol string) (models.ContinuitySnapshot, bool) {
	ent, ok := e.lookup(symbol)
	if !ok {
		return models.ContinuitySnapshot{}, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.p.Continuity(), true
}

// Timeframes returns the ledger state of every tracked timeframe for symbol.
func (e *Engine) Timeframes(symbol string) ([]models.TimeframeState, bool) {
	ent, ok := e.lookup(symbol)
	if !ok {
		return nil, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.p.States(), true
}

// Patterns returns active and recent pattern instances for symbol.
func (e *Engine) Patterns(symbol string, tf models.Timeframe) (active, recent []models.PatternInstance, ok bool) {
	ent, ok := e.lookup(symbol)
	if !ok {
		return nil, nil, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	active, recent = ent.p.Patterns(tf)
	return active, recent, true
}

// Symbols lists every symbol with a pipeline, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.symbols))
	for s := range e.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RefreshCache pushes the latest continuity of every symbol into the cache.
func (e *Engine) RefreshCache(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	n := 0
	for _, s := range e.Symbols() {
		snap, ok := e.Continuity(s)
		if !ok || snap.Timestamp.IsZero() {
			continue
		}
		if err := e.cache.SetContinuity(ctx, &snap); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Audit exposes the configured audit store, nil when auditing is off.
func (e *Engine) Audit() drepo.AuditStore { return e.audit }
