package ledger

import (
	"fmt"
	"time"

	"StratEngine/internal/domain/models"
	"StratEngine/internal/services/classifier"
)

const (
	DefaultWindow = 32
	MinWindow     = 10
)

// Option configures a Ledger.
type Option func(*options)

type options struct {
	window int
	loc    *time.Location
}

// WithWindow bounds the sealed history. Values below MinWindow are raised to it.
func WithWindow(n int) Option {
	return func(o *options) {
		if n < MinWindow {
			n = MinWindow
		}
		o.window = n
	}
}

// WithLocation sets the zone used for calendar period arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// Update describes the effect of one applied bar.
type Update struct {
	Bar models.Bar
	// Tag is the sealed tag when Bar is sealed, otherwise the provisional tag.
	Tag models.ScenarioTag
	// Opened is set on the first update of a new period.
	Opened bool
	// Implicit is the stale live bar sealed because a newer bar arrived.
	Implicit *models.ClassifiedBar
	// Sealed is set when Bar itself sealed.
	Sealed         *models.ClassifiedBar
	CouplingChange *models.CouplingChange
}

// Ledger tracks one (symbol, timeframe): bounded sealed history, the forming
// bar, the period anchor and derived control and coupling.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	symbol string
	tf     models.Timeframe
	parent *models.Timeframe
	loc    *time.Location

	parentLedger *Ledger

	history     *Ring[models.ClassifiedBar]
	live        *models.Bar
	liveTag     models.ScenarioTag
	periodStart time.Time
	anchor      float64
	lastPrice   float64
	coupling    models.Coupling
	control     models.Control
	updatedAt   time.Time
}

// New creates a ledger. parent is the next larger tracked timeframe, nil for the top one.
func New(symbol string, tf models.Timeframe, parent *models.Timeframe, opts ...Option) *Ledger {
	o := options{window: DefaultWindow, loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	var p *models.Timeframe
	if parent != nil {
		v := *parent
		p = &v
	}
	return &Ledger{
		symbol:   symbol,
		tf:       tf,
		parent:   p,
		loc:      o.loc,
		history:  NewRing[models.ClassifiedBar](o.window),
		coupling: models.Decoupled,
		control:  models.ControlNeutral,
	}
}

// Link attaches the parent ledger so coupling can see the parent's period anchor.
func (l *Ledger) Link(parent *Ledger) {
	l.parentLedger = parent
}

func (l *Ledger) Timeframe() models.Timeframe { return l.tf }

// Check reports whether bars, applied in order, would all be accepted. It
// does not change the ledger.
func (l *Ledger) Check(bars ...models.Bar) error {
	last, hasSealed := l.history.Last()
	sealedAt := last.OpenTime
	var liveAt time.Time
	hasLive := l.live != nil
	if hasLive {
		liveAt = l.live.OpenTime
	}
	for _, bar := range bars {
		if bar.Timeframe != "" && bar.Timeframe != l.tf {
			return fmt.Errorf("%w: ledger %s got %s", models.ErrUntrackedTimeframe, l.tf, bar.Timeframe)
		}
		if hasSealed && !bar.OpenTime.After(sealedAt) {
			return fmt.Errorf("%w: %s %s open %s not after sealed %s",
				models.ErrOutOfOrderBar, l.symbol, l.tf, bar.OpenTime.Format(time.RFC3339), sealedAt.Format(time.RFC3339))
		}
		if hasLive && bar.OpenTime.Before(liveAt) {
			return fmt.Errorf("%w: %s %s open %s before live %s",
				models.ErrOutOfOrderBar, l.symbol, l.tf, bar.OpenTime.Format(time.RFC3339), liveAt.Format(time.RFC3339))
		}
		if hasLive && bar.OpenTime.After(liveAt) {
			sealedAt, hasSealed = liveAt, true
		}
		if bar.Sealed {
			sealedAt, hasSealed, hasLive = bar.OpenTime, true, false
		} else {
			liveAt, hasLive = bar.OpenTime, true
		}
	}
	return nil
}

// Apply folds a bar snapshot into the ledger. A bar Check refuses returns
// its error and leaves the ledger unchanged.
func (l *Ledger) Apply(bar models.Bar) (Update, error) {
	if err := l.Check(bar); err != nil {
		return Update{}, err
	}

	bar.Timeframe = l.tf
	upd := Update{Bar: bar}

	if l.live != nil && bar.OpenTime.After(l.live.OpenTime) {
		stale := *l.live
		stale.Sealed = true
		cb := l.seal(stale)
		upd.Implicit = &cb
	}

	if l.live == nil || !bar.OpenTime.Equal(l.live.OpenTime) {
		upd.Opened = true
		upd.CouplingChange = l.rollover(bar)
	}

	l.lastPrice = bar.Close
	l.control = controlOf(l.lastPrice, l.anchor)
	l.updatedAt = bar.OpenTime

	if bar.Sealed {
		cb := l.seal(bar)
		upd.Sealed = &cb
		upd.Tag = cb.Tag
		return upd, nil
	}

	b := bar
	l.live = &b
	l.liveTag = models.ScenarioNone
	if prev, ok := l.history.Last(); ok {
		l.liveTag = classifier.ClassifyLive(prev.Bar, bar)
	}
	upd.Tag = l.liveTag
	return upd, nil
}

func (l *Ledger) seal(bar models.Bar) models.ClassifiedBar {
	cb := models.ClassifiedBar{Bar: bar}
	if prev, ok := l.history.Last(); ok {
		cb.Tag = classifier.Classify(prev.Bar, bar)
	}
	l.history.Push(cb)
	l.live = nil
	l.liveTag = models.ScenarioNone
	return cb
}

func (l *Ledger) rollover(bar models.Bar) *models.CouplingChange {
	l.periodStart = bar.OpenTime
	l.anchor = bar.Open

	next := l.couplingFor(bar)
	if next == l.coupling {
		return nil
	}
	change := &models.CouplingChange{From: l.coupling, To: next, PeriodStart: l.periodStart}
	l.coupling = next
	return change
}

func (l *Ledger) couplingFor(bar models.Bar) models.Coupling {
	if l.parent == nil {
		return models.Decoupled
	}
	parentStart := l.parent.PeriodStart(bar.OpenTime, l.loc)
	if !parentStart.Equal(bar.OpenTime) {
		return models.Decoupled
	}
	if p := l.parentLedger; p != nil && p.periodStart.Equal(parentStart) && p.anchor != bar.Open {
		return models.Decoupled
	}
	return models.Coupled
}

func controlOf(price, anchor float64) models.Control {
	switch {
	case price > anchor:
		return models.ControlBullish
	case price < anchor:
		return models.ControlBearish
	}
	return models.ControlNeutral
}

// History returns a copy of the sealed history, oldest first.
func (l *Ledger) History() []models.ClassifiedBar {
	return l.history.Slice()
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() models.TimeframeState {
	st := models.TimeframeState{
		Symbol:           l.symbol,
		Timeframe:        l.tf,
		PeriodStart:      l.periodStart,
		PeriodAnchorOpen: l.anchor,
		LastPrice:        l.lastPrice,
		History:          l.history.Slice(),
		LiveTag:          l.liveTag,
		Coupling:         l.coupling,
		Control:          l.control,
		UpdatedAt:        l.updatedAt,
	}
	if l.parent != nil {
		p := *l.parent
		st.Parent = &p
	}
	if l.live != nil {
		b := *l.live
		st.Live = &b
	}
	return st
}
