package pattern

import (
	"time"

	"github.com/google/uuid"

	"StratEngine/internal/domain/models"
	"StratEngine/internal/services/ledger"
)

const (
	DefaultTick           = 0.01
	DefaultMaxPendingBars = 3
	DefaultRecentLimit    = 50
)

// Option configures an Engine.
type Option func(*Engine)

func WithTick(tick float64) Option {
	return func(e *Engine) {
		if tick > 0 {
			e.tick = tick
		}
	}
}

func WithTier(tier models.ConfirmationTier) Option {
	return func(e *Engine) {
		if models.IsValidTier(tier) {
			e.tier = tier
		}
	}
}

// WithMaxPendingBars sets how long an inside-bar breakout may stay pending.
func WithMaxPendingBars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPending = n
		}
	}
}

// WithKinds restricts the enabled pattern kinds. Unknown kinds are ignored.
func WithKinds(kinds ...models.PatternKind) Option {
	return func(e *Engine) {
		e.enabled = make(map[models.PatternKind]bool, len(kinds))
		for _, k := range kinds {
			e.enabled[k] = true
		}
	}
}

// WithMatcher registers or overrides the matcher for its kind.
func WithMatcher(m Matcher) Option {
	return func(e *Engine) {
		e.matchers[m.Kind()] = m
	}
}

func WithRecentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentLimit = n
		}
	}
}

// WithIDGenerator replaces uuid-based instance ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

type slot struct {
	inst models.PatternInstance
	// trigger bar open time, used by the confirmation tiers
	triggeredAt time.Time
	// mother bar of a two-sided breakout
	mother models.Bar
}

// Engine detects and tracks pattern instances for one (symbol, timeframe).
// Each kind has a forming slot and an armed slot. A newer match replaces only
// the forming instance; a triggered instance moves to the armed slot and stays
// watched until it resolves or another instance of its kind triggers.
// An Engine is not safe for concurrent use.
type Engine struct {
	symbol string
	tf     models.Timeframe

	tick        float64
	tier        models.ConfirmationTier
	maxPending  int
	recentLimit int
	newID       func() string

	matchers map[models.PatternKind]Matcher
	enabled  map[models.PatternKind]bool
	order    []models.PatternKind

	forming map[models.PatternKind]*slot
	armed   map[models.PatternKind]*slot
	recent  []models.PatternInstance
}

func NewEngine(symbol string, tf models.Timeframe, opts ...Option) *Engine {
	e := &Engine{
		symbol:      symbol,
		tf:          tf,
		tick:        DefaultTick,
		tier:        models.TierAggressive,
		maxPending:  DefaultMaxPendingBars,
		recentLimit: DefaultRecentLimit,
		newID:       uuid.NewString,
		matchers:    DefaultMatchers(),
		forming:     make(map[models.PatternKind]*slot),
		armed:       make(map[models.PatternKind]*slot),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, k := range models.AllPatternKinds {
		if _, ok := e.matchers[k]; !ok {
			continue
		}
		if e.enabled != nil && !e.enabled[k] {
			continue
		}
		e.order = append(e.order, k)
	}
	return e
}

// OnUpdate advances every tracked instance with one ledger update and runs
// the matchers on each newly sealed bar. history is the ledger's sealed
// history after the update.
func (e *Engine) OnUpdate(u ledger.Update, history []models.ClassifiedBar, at time.Time) []models.PatternEvent {
	var events []models.PatternEvent
	if u.Implicit != nil {
		h := history
		if u.Sealed != nil && len(h) > 0 {
			h = h[:len(h)-1]
		}
		events = append(events, e.onSeal(u.Implicit.Bar, h, at)...)
	}
	if u.Opened {
		events = append(events, e.onOpen(u.Bar, at)...)
	}
	events = append(events, e.onPrice(u.Bar, at)...)
	if u.Sealed != nil {
		events = append(events, e.onSeal(u.Sealed.Bar, history, at)...)
	}
	return events
}

// onOpen resolves next-open confirmations on the first update of a bar.
func (e *Engine) onOpen(bar models.Bar, at time.Time) []models.PatternEvent {
	var events []models.PatternEvent
	for _, k := range e.order {
		s := e.armed[k]
		if s == nil || s.inst.Status != models.StatusCompleted || e.tier != models.TierNextOpenConfirm {
			continue
		}
		if !bar.OpenTime.After(s.triggeredAt) {
			continue
		}
		if beyond(s.inst.Direction, bar.Open, s.inst.TriggerPrice) {
			events = append(events, e.transition(e.armed, k, models.StatusInForce, at))
		} else {
			events = append(events, e.transition(e.armed, k, models.StatusExpired, at))
		}
	}
	return events
}

// onPrice checks armed instances for invalidation, then forming ones for
// trigger and invalidation crossings against the bar's range.
func (e *Engine) onPrice(bar models.Bar, at time.Time) []models.PatternEvent {
	var events []models.PatternEvent
	for _, k := range e.order {
		if s := e.armed[k]; s != nil && invalidated(s.inst.Direction, bar, s.inst.InvalidationPrice) {
			events = append(events, e.transition(e.armed, k, models.StatusInvalidated, at))
		}
		if s := e.forming[k]; s != nil {
			events = append(events, e.cross(k, s, bar, at)...)
		}
	}
	return events
}

func (e *Engine) cross(k models.PatternKind, s *slot, bar models.Bar, at time.Time) []models.PatternEvent {
	inst := &s.inst
	if inst.Direction == models.DirectionBoth {
		up := bar.High >= inst.TriggerPrice
		down := bar.Low <= inst.InvalidationPrice
		switch {
		case up && down:
			return []models.PatternEvent{e.transition(e.forming, k, models.StatusInvalidated, at)}
		case up:
			inst.Direction = models.DirectionLong
			inst.InvalidationPrice = s.mother.Low
		case down:
			inst.Direction = models.DirectionShort
			inst.TriggerPrice = inst.InvalidationPrice
			inst.InvalidationPrice = s.mother.High
		default:
			return nil
		}
		return e.complete(k, s, bar, at)
	}

	trig := triggered(inst.Direction, bar, inst.TriggerPrice)
	inval := invalidated(inst.Direction, bar, inst.InvalidationPrice)
	switch {
	case inval:
		// a bar touching both levels counts as invalidated
		return []models.PatternEvent{e.transition(e.forming, k, models.StatusInvalidated, at)}
	case trig:
		return e.complete(k, s, bar, at)
	}
	return nil
}

func (e *Engine) complete(k models.PatternKind, s *slot, bar models.Bar, at time.Time) []models.PatternEvent {
	s.triggeredAt = bar.OpenTime
	// an older armed instance of the kind is released as is
	delete(e.forming, k)
	e.armed[k] = s
	events := []models.PatternEvent{e.transition(e.armed, k, models.StatusCompleted, at)}
	if e.tier == models.TierAggressive {
		events = append(events, e.transition(e.armed, k, models.StatusInForce, at))
	}
	return events
}

// onSeal settles close confirmations, ages pending setups and runs the matchers.
func (e *Engine) onSeal(bar models.Bar, history []models.ClassifiedBar, at time.Time) []models.PatternEvent {
	var events []models.PatternEvent
	for _, k := range e.order {
		if s := e.armed[k]; s != nil && s.inst.Status == models.StatusCompleted &&
			e.tier == models.TierCloseConfirm && s.triggeredAt.Equal(bar.OpenTime) {
			if beyond(s.inst.Direction, bar.Close, s.inst.TriggerPrice) {
				events = append(events, e.transition(e.armed, k, models.StatusInForce, at))
			} else {
				events = append(events, e.transition(e.armed, k, models.StatusExpired, at))
			}
		}
		if s := e.forming[k]; s != nil {
			s.inst.PendingBars--
			if s.inst.PendingBars <= 0 {
				events = append(events, e.transition(e.forming, k, models.StatusExpired, at))
			} else {
				s.inst.UpdatedAt = at
			}
		}
	}

	for _, k := range e.order {
		setup, ok := e.matchers[k].Match(history, e.tick)
		if !ok {
			continue
		}
		events = append(events, e.open(k, setup, at))
	}
	return events
}

func (e *Engine) open(k models.PatternKind, setup Setup, at time.Time) models.PatternEvent {
	window := setup.Window
	if k == models.PatternInsideBreakout {
		window = e.maxPending
	}
	if window < 1 {
		window = 1
	}
	s := &slot{
		inst: models.PatternInstance{
			ID:                e.newID(),
			Symbol:            e.symbol,
			Timeframe:         e.tf,
			Kind:              k,
			Direction:         setup.Direction,
			Bars:              append([]models.Bar(nil), setup.Bars...),
			TriggerPrice:      setup.Trigger,
			InvalidationPrice: setup.Invalidation,
			Status:            models.StatusForming,
			PendingBars:       window,
			CreatedAt:         at,
			UpdatedAt:         at,
		},
	}
	if len(setup.Bars) > 0 {
		s.mother = setup.Bars[0]
	}
	// a pending instance of the kind is released as is
	e.forming[k] = s
	return models.PatternEvent{Instance: s.inst.Clone(), From: models.StatusIdle, To: models.StatusForming, At: at}
}

// transition moves the instance held in slots[k].
func (e *Engine) transition(slots map[models.PatternKind]*slot, k models.PatternKind, to models.PatternStatus, at time.Time) models.PatternEvent {
	s := slots[k]
	from := s.inst.Status
	s.inst.Status = to
	s.inst.UpdatedAt = at
	ev := models.PatternEvent{Instance: s.inst.Clone(), From: from, To: to, At: at}
	if to.IsTerminal() {
		delete(slots, k)
		e.remember(s.inst)
	}
	return ev
}

func (e *Engine) remember(inst models.PatternInstance) {
	e.recent = append(e.recent, inst.Clone())
	if over := len(e.recent) - e.recentLimit; over > 0 {
		e.recent = append(e.recent[:0:0], e.recent[over:]...)
	}
}

// Active returns copies of the non-terminal instances, armed before forming
// within each kind.
func (e *Engine) Active() []models.PatternInstance {
	out := make([]models.PatternInstance, 0, len(e.armed)+len(e.forming))
	for _, k := range e.order {
		if s := e.armed[k]; s != nil {
			out = append(out, s.inst.Clone())
		}
		if s := e.forming[k]; s != nil {
			out = append(out, s.inst.Clone())
		}
	}
	return out
}

// Recent returns copies of terminal instances, oldest first.
func (e *Engine) Recent() []models.PatternInstance {
	out := make([]models.PatternInstance, len(e.recent))
	for i, inst := range e.recent {
		out[i] = inst.Clone()
	}
	return out
}

func (e *Engine) Timeframe() models.Timeframe { return e.tf }

func triggered(dir models.Direction, bar models.Bar, trigger float64) bool {
	if dir == models.DirectionShort {
		return bar.Low <= trigger
	}
	return bar.High >= trigger
}

func invalidated(dir models.Direction, bar models.Bar, level float64) bool {
	if dir == models.DirectionShort {
		return bar.High > level
	}
	return bar.Low < level
}

// beyond reports whether price sits at or past the trigger in dir.
func beyond(dir models.Direction, price, trigger float64) bool {
	if dir == models.DirectionShort {
		return price <= trigger
	}
	return price >= trigger
}
