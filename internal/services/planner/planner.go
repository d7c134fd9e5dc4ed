package planner

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"StratEngine/internal/domain/models"
)

// sizeEpsilon absorbs float noise before flooring share counts.
const sizeEpsilon = 1e-9

// Config holds the risk parameters of the planner.
type Config struct {
	Tick               float64
	BufferTicks        int
	AccountValue       float64
	RiskPercentFull    float64
	RiskPercentPartial float64
	MaxRiskReward      float64
	MinConfidence      float64
	// BaseConfidence overrides the tier table when positive.
	BaseConfidence float64
}

// DefaultConfig returns the stock risk parameters.
func DefaultConfig() Config {
	return Config{
		Tick:               0.01,
		AccountValue:       100000,
		RiskPercentFull:    0.02,
		RiskPercentPartial: 0.01,
		MaxRiskReward:      0.5,
	}
}

type Option func(*Planner)

// WithIDGenerator replaces uuid-based plan ids.
func WithIDGenerator(fn func() string) Option {
	return func(p *Planner) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// Planner turns in-force pattern instances into trade plans.
type Planner struct {
	cfg   Config
	newID func() string
}

func New(cfg Config, opts ...Option) *Planner {
	p := &Planner{cfg: cfg, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan builds an accepted or rejected plan for inst under the given continuity.
// history is the sealed history of the instance's timeframe, oldest first.
func (p *Planner) Plan(inst models.PatternInstance, snap models.ContinuitySnapshot, history []models.ClassifiedBar, at time.Time) models.TradePlan {
	dir := inst.Direction
	plan := models.TradePlan{
		ID:           p.newID(),
		PatternID:    inst.ID,
		Symbol:       inst.Symbol,
		Timeframe:    inst.Timeframe,
		Kind:         inst.Kind,
		Direction:    dir,
		EntryTrigger: inst.TriggerPrice,
		Stop:         p.stop(dir, inst.InvalidationPrice),
		Alignment:    snap.Alignment,
		CreatedAt:    at,
	}
	plan.Targets = Targets(dir, plan.EntryTrigger, inst.Bars, history)
	if len(plan.Targets) > 0 {
		plan.RiskReward = math.Abs(plan.Stop-plan.EntryTrigger) / math.Abs(plan.Targets[0]-plan.EntryTrigger)
	}

	aligned := snap.Aligned(dir)
	base := p.cfg.BaseConfidence
	if base <= 0 {
		base = models.TierConfidence(aligned)
	}
	plan.Confidence = snap.Confidence(base, dir)

	if reason := p.screen(plan, snap); reason != models.RejectNone {
		return reject(plan, reason)
	}

	riskPct := p.cfg.RiskPercentPartial
	if snap.Alignment.IsFull() {
		riskPct = p.cfg.RiskPercentFull
	}
	size, constrained := p.size(plan.EntryTrigger, plan.Stop, riskPct)
	if size < 1 {
		return reject(plan, models.RejectPositionTooSmall)
	}
	plan.RiskPercent = riskPct
	plan.PositionSize = size
	plan.CapitalConstrained = constrained
	plan.Accept = true
	return plan
}

func (p *Planner) screen(plan models.TradePlan, snap models.ContinuitySnapshot) models.RejectionReason {
	a := snap.Alignment
	switch {
	case a.Kind == models.AlignmentConflict:
		return models.RejectContinuityConflict
	case a.Direction != plan.Direction:
		return models.RejectDirectionMismatch
	case a.Kind == models.AlignmentPartial && a.Count < 2:
		return models.RejectInsufficientContinuity
	case len(plan.Targets) == 0:
		return models.RejectNoTarget
	case plan.RiskReward > p.cfg.MaxRiskReward:
		return models.RejectPoorRiskReward
	case plan.Confidence < p.cfg.MinConfidence:
		return models.RejectLowConfidence
	}
	return models.RejectNone
}

func reject(plan models.TradePlan, reason models.RejectionReason) models.TradePlan {
	plan.Accept = false
	plan.RejectionReason = reason
	plan.RiskPercent = 0
	plan.PositionSize = 0
	plan.CapitalConstrained = false
	return plan
}

func (p *Planner) stop(dir models.Direction, invalidation float64) float64 {
	buffer := float64(p.cfg.BufferTicks) * p.cfg.Tick
	if dir == models.DirectionShort {
		return invalidation + buffer
	}
	return invalidation - buffer
}

// size risks riskPct of the account on the entry-stop distance, capped by
// what the account can buy outright.
func (p *Planner) size(entry, stop, riskPct float64) (int64, bool) {
	perShare := math.Abs(entry - stop)
	if perShare <= 0 || entry <= 0 {
		return 0, false
	}
	size := int64(math.Floor(p.cfg.AccountValue*riskPct/perShare + sizeEpsilon))
	maxShares := int64(math.Floor(p.cfg.AccountValue/entry + sizeEpsilon))
	if size > maxShares {
		return maxShares, true
	}
	return size, false
}

// MaxTargets bounds the targets of a plan; further projections are left to
// the execution side.
const MaxTargets = 2

// Targets returns up to MaxTargets profit targets beyond entry. The first comes
// from the matched bars; later ones from pivots in the history preceding them.
func Targets(dir models.Direction, entry float64, window []models.Bar, history []models.ClassifiedBar) []float64 {
	var windowLevels []float64
	for _, b := range window {
		windowLevels = append(windowLevels, extreme(dir, b))
	}

	var pivots []float64
	var start time.Time
	if len(window) > 0 {
		start = window[0].OpenTime
	}
	for i := 1; i+1 < len(history); i++ {
		if !start.IsZero() && !history[i].OpenTime.Before(start) {
			break
		}
		if isPivot(dir, history[i-1].Bar, history[i].Bar, history[i+1].Bar) {
			pivots = append(pivots, extreme(dir, history[i].Bar))
		}
	}

	var out []float64
	if t1, ok := nearestBeyond(dir, entry, windowLevels); ok {
		out = append(out, t1)
	}
	from := entry
	if len(out) > 0 {
		from = out[0]
	}
	for _, lvl := range sortedBeyond(dir, from, pivots) {
		if len(out) == MaxTargets {
			break
		}
		out = append(out, lvl)
	}
	return out
}

func extreme(dir models.Direction, b models.Bar) float64 {
	if dir == models.DirectionShort {
		return b.Low
	}
	return b.High
}

func isPivot(dir models.Direction, prev, mid, next models.Bar) bool {
	if dir == models.DirectionShort {
		return mid.Low < prev.Low && mid.Low < next.Low
	}
	return mid.High > prev.High && mid.High > next.High
}

func nearestBeyond(dir models.Direction, from float64, levels []float64) (float64, bool) {
	s := sortedBeyond(dir, from, levels)
	if len(s) == 0 {
		return 0, false
	}
	return s[0], true
}

// sortedBeyond keeps distinct levels strictly past from, nearest first.
func sortedBeyond(dir models.Direction, from float64, levels []float64) []float64 {
	var out []float64
	for _, l := range levels {
		if (dir == models.DirectionShort && l < from) || (dir != models.DirectionShort && l > from) {
			out = append(out, l)
		}
	}
	sort.Float64s(out)
	if dir == models.DirectionShort {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	var dedup []float64
	for _, l := range out {
		if n := len(dedup); n == 0 || dedup[n-1] != l {
			dedup = append(dedup, l)
		}
	}
	return dedup
}
