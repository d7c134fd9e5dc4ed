package usecase

import (
	"fmt"
	"time"

	"StratEngine/internal/domain/models"
	"StratEngine/internal/services/continuity"
	"StratEngine/internal/services/ledger"
	"StratEngine/internal/services/pattern"
	"StratEngine/internal/services/planner"
)

// PipelineConfig describes how every symbol pipeline is assembled.
type PipelineConfig struct {
	Timeframes []models.Timeframe
	// Rollup derives every higher timeframe from the smallest one.
	Rollup         bool
	Window         int
	Location       *time.Location
	PatternOptions []pattern.Option
	Planner        *planner.Planner
	Clock          func() time.Time
}

// PipelineResult collects everything one bar produced for a symbol.
type PipelineResult struct {
	Symbol      string
	Sealed      []models.ClassifiedBar
	Couplings   []models.CouplingEvent
	Continuity  models.ContinuitySnapshot
	Transitions []models.PatternEvent
	Plans       []models.TradePlan
	Exits       []models.ExitSignal
}

type applied struct {
	tf  models.Timeframe
	upd ledger.Update
}

// SymbolPipeline runs ledgers, continuity, pattern engines and the planner for
// one symbol in a fixed order. It does no I/O and is not safe for concurrent use.
type SymbolPipeline struct {
	symbol  string
	tfs     []models.Timeframe
	ledgers map[models.Timeframe]*ledger.Ledger
	engines map[models.Timeframe]*pattern.Engine
	rollup  *ledger.Rollup
	planner *planner.Planner
	clock   func() time.Time
	last    models.ContinuitySnapshot
}

func NewSymbolPipeline(symbol string, cfg PipelineConfig) *SymbolPipeline {
	tfs := append([]models.Timeframe(nil), cfg.Timeframes...)
	models.SortAscending(tfs)

	p := &SymbolPipeline{
		symbol:  symbol,
		tfs:     tfs,
		ledgers: make(map[models.Timeframe]*ledger.Ledger, len(tfs)),
		engines: make(map[models.Timeframe]*pattern.Engine, len(tfs)),
		planner: cfg.Planner,
		clock:   cfg.Clock,
	}
	if p.planner == nil {
		p.planner = planner.New(planner.DefaultConfig())
	}
	if p.clock == nil {
		p.clock = time.Now
	}

	opts := []ledger.Option{ledger.WithLocation(cfg.Location)}
	if cfg.Window > 0 {
		opts = append(opts, ledger.WithWindow(cfg.Window))
	}
	for i, tf := range tfs {
		var parent *models.Timeframe
		if i+1 < len(tfs) {
			parent = &tfs[i+1]
		}
		p.ledgers[tf] = ledger.New(symbol, tf, parent, opts...)
		p.engines[tf] = pattern.NewEngine(symbol, tf, cfg.PatternOptions...)
	}
	for i := 0; i+1 < len(tfs); i++ {
		p.ledgers[tfs[i]].Link(p.ledgers[tfs[i+1]])
	}
	if cfg.Rollup && len(tfs) > 1 {
		p.rollup = ledger.NewRollup(tfs[0], tfs[1:], cfg.Location)
	}
	return p
}

// Process applies one bar. A rejected bar leaves every ledger unchanged.
func (p *SymbolPipeline) Process(bar models.Bar) (PipelineResult, error) {
	res := PipelineResult{Symbol: p.symbol}
	base, ok := p.ledgers[bar.Timeframe]
	if !ok || (p.rollup != nil && bar.Timeframe != p.tfs[0]) {
		return res, fmt.Errorf("%w: %s %s", models.ErrUntrackedTimeframe, p.symbol, bar.Timeframe)
	}

	// validate the bar and everything it derives before any ledger moves
	if err := base.Check(bar); err != nil {
		return res, err
	}
	var derived map[models.Timeframe][]models.Bar
	if p.rollup != nil {
		derived = p.rollup.Preview(bar)
		for _, tf := range p.tfs[1:] {
			if err := p.ledgers[tf].Check(derived[tf]...); err != nil {
				return res, fmt.Errorf("rollup %s: %w", tf, err)
			}
		}
		p.rollup.Push(bar)
	}

	// ledgers, ascending
	upd, err := base.Apply(bar)
	if err != nil {
		return res, err
	}
	steps := []applied{{tf: bar.Timeframe, upd: upd}}
	for _, tf := range p.tfs[1:] {
		for _, b := range derived[tf] {
			u, err := p.ledgers[tf].Apply(b)
			if err != nil {
				return res, fmt.Errorf("rollup %s: %w", tf, err)
			}
			steps = append(steps, applied{tf: tf, upd: u})
		}
	}
	at := p.clock()
	for _, s := range steps {
		p.collectSealed(&res, s, at)
	}

	// continuity, once all ledgers are current
	states := make([]models.TimeframeState, 0, len(p.tfs))
	for _, tf := range p.tfs {
		states = append(states, p.ledgers[tf].Snapshot())
	}
	p.last = continuity.Evaluate(p.symbol, states, at)
	res.Continuity = p.last

	// pattern engines, ascending, then plans for anything that went in force
	for _, s := range steps {
		history := p.ledgers[s.tf].History()
		events := p.engines[s.tf].OnUpdate(s.upd, history, at)
		res.Transitions = append(res.Transitions, events...)
		for _, ev := range events {
			if ev.To != models.StatusInForce {
				continue
			}
			res.Plans = append(res.Plans, p.planner.Plan(ev.Instance, p.last, history, at))
		}
	}
	return res, nil
}

func (p *SymbolPipeline) collectSealed(res *PipelineResult, s applied, at time.Time) {
	if s.upd.CouplingChange != nil {
		res.Couplings = append(res.Couplings, models.CouplingEvent{Timeframe: s.tf, Change: *s.upd.CouplingChange})
	}
	var sealed []models.ClassifiedBar
	if s.upd.Implicit != nil {
		sealed = append(sealed, *s.upd.Implicit)
	}
	if s.upd.Sealed != nil {
		sealed = append(sealed, *s.upd.Sealed)
	}
	if len(sealed) == 0 {
		return
	}
	res.Sealed = append(res.Sealed, sealed...)

	// the newly sealed bars sit at the end of the history
	h := p.ledgers[s.tf].History()
	first := len(h) - len(sealed)
	for i := first; i < len(h); i++ {
		if i < 1 {
			continue
		}
		if sig, ok := planner.ExitFor(h[i-1], h[i], at); ok {
			res.Exits = append(res.Exits, sig)
		}
	}
}

// Continuity returns the latest continuity snapshot.
func (p *SymbolPipeline) Continuity() models.ContinuitySnapshot { return p.last }

// States returns a snapshot of every ledger, ascending.
func (p *SymbolPipeline) States() []models.TimeframeState {
	out := make([]models.TimeframeState, 0, len(p.tfs))
	for _, tf := range p.tfs {
		out = append(out, p.ledgers[tf].Snapshot())
	}
	return out
}

// Patterns returns the active and recent instances on tf, or on every
// timeframe when tf is empty.
func (p *SymbolPipeline) Patterns(tf models.Timeframe) (active, recent []models.PatternInstance) {
	for _, t := range p.tfs {
		if tf != "" && t != tf {
			continue
		}
		active = append(active, p.engines[t].Active()...)
		recent = append(recent, p.engines[t].Recent()...)
	}
	return active, recent
}

func (p *SymbolPipeline) Timeframes() []models.Timeframe {
	return append([]models.Timeframe(nil), p.tfs...)
}
