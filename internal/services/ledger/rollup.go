package ledger

import (
	"math"
	"time"

	"StratEngine/internal/domain/models"
)

// Rollup derives higher-timeframe bars from a stream of base-timeframe bars.
type Rollup struct {
	base   models.Timeframe
	loc    *time.Location
	frames []*aggregate
}

type aggregate struct {
	tf     models.Timeframe
	active bool
	sealed bool
	start  time.Time

	// committed covers the sealed base bars of the period.
	committed models.Bar
	hasCommit bool
}

// NewRollup aggregates base bars into every timeframe in higher.
func NewRollup(base models.Timeframe, higher []models.Timeframe, loc *time.Location) *Rollup {
	if loc == nil {
		loc = time.UTC
	}
	r := &Rollup{base: base, loc: loc}
	for _, tf := range higher {
		if tf.Rank() > base.Rank() {
			r.frames = append(r.frames, &aggregate{tf: tf})
		}
	}
	return r
}

// Push folds a base bar and returns the derived bars per timeframe, in the
// order they must be applied to the ledgers.
func (r *Rollup) Push(bar models.Bar) map[models.Timeframe][]models.Bar {
	out := make(map[models.Timeframe][]models.Bar, len(r.frames))
	baseEnd := r.base.NextPeriod(bar.OpenTime)

	for _, a := range r.frames {
		start := a.tf.PeriodStart(bar.OpenTime, r.loc)

		if a.active && start.After(a.start) {
			if !a.sealed && a.hasCommit {
				closed := a.committed
				closed.Sealed = true
				out[a.tf] = append(out[a.tf], closed)
			}
			a.active = false
		}
		if a.active && a.sealed {
			// late update for a period that already sealed
			continue
		}
		if !a.active {
			*a = aggregate{tf: a.tf, active: true, start: start}
		}

		derived := merge(a.committed, a.hasCommit, bar)
		derived.Timeframe = a.tf
		derived.OpenTime = a.start
		derived.Sealed = false

		if bar.Sealed {
			a.committed = derived
			a.hasCommit = true
			if !baseEnd.Before(a.tf.NextPeriod(a.start)) {
				derived.Sealed = true
				a.sealed = true
			}
		}
		out[a.tf] = append(out[a.tf], derived)
	}
	return out
}

// Preview returns what Push would return for bar without folding it.
func (r *Rollup) Preview(bar models.Bar) map[models.Timeframe][]models.Bar {
	c := &Rollup{base: r.base, loc: r.loc, frames: make([]*aggregate, len(r.frames))}
	for i, a := range r.frames {
		v := *a
		c.frames[i] = &v
	}
	return c.Push(bar)
}

func merge(acc models.Bar, has bool, bar models.Bar) models.Bar {
	if !has {
		return bar
	}
	acc.High = math.Max(acc.High, bar.High)
	acc.Low = math.Min(acc.Low, bar.Low)
	acc.Close = bar.Close
	return acc
}
