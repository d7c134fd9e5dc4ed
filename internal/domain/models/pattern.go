package models

import "time"

// Direction of a pattern or plan.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	// DirectionBoth only applies to a pending inside-bar breakout.
	DirectionBoth Direction = "both"
)

// Opposite returns the reverse direction. Both maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	}
	return d
}

// PatternKind identifies a STRAT combination.
type PatternKind string

const (
	PatternTwoTwoReversal      PatternKind = "2-2_reversal"
	PatternTwoOneTwoReversal   PatternKind = "2-1-2_reversal"
	PatternThreeOneTwoReversal PatternKind = "3-1-2_reversal"
	PatternRevStrat            PatternKind = "rev_strat"
	PatternInsideBreakout      PatternKind = "inside_breakout"
	PatternHammerShooter       PatternKind = "hammer_shooter"
	PatternTwoTwoContinuation  PatternKind = "2-2_continuation"
	PatternThreeTwoTwo         PatternKind = "3-2-2_continuation"
)

// AllPatternKinds lists every supported kind in evaluation order.
var AllPatternKinds = []PatternKind{
	PatternTwoTwoReversal,
	PatternTwoOneTwoReversal,
	PatternThreeOneTwoReversal,
	PatternRevStrat,
	PatternInsideBreakout,
	PatternHammerShooter,
	PatternTwoTwoContinuation,
	PatternThreeTwoTwo,
}

// IsValidPatternKind returns true if k is a supported kind.
func IsValidPatternKind(k PatternKind) bool {
	for _, v := range AllPatternKinds {
		if v == k {
			return true
		}
	}
	return false
}

// PatternStatus is the lifecycle state of a pattern instance.
type PatternStatus string

const (
	StatusIdle        PatternStatus = ""
	StatusForming     PatternStatus = "forming"
	StatusCompleted   PatternStatus = "completed"
	StatusInForce     PatternStatus = "in_force"
	StatusInvalidated PatternStatus = "invalidated"
	StatusExpired     PatternStatus = "expired"
)

// IsTerminal reports Invalidated or Expired.
func (s PatternStatus) IsTerminal() bool {
	return s == StatusInvalidated || s == StatusExpired
}

// ConfirmationTier controls when a triggered pattern goes in force.
type ConfirmationTier string

const (
	TierAggressive      ConfirmationTier = "aggressive"
	TierCloseConfirm    ConfirmationTier = "close_confirm"
	TierNextOpenConfirm ConfirmationTier = "next_open_confirm"
)

// IsValidTier returns true if t is a supported tier.
func IsValidTier(t ConfirmationTier) bool {
	switch t {
	case TierAggressive, TierCloseConfirm, TierNextOpenConfirm:
		return true
	}
	return false
}

// PatternInstance is one detected setup and its lifecycle.
// For DirectionBoth, TriggerPrice is the long trigger and InvalidationPrice
// holds the short trigger until one side breaks.
type PatternInstance struct {
	ID                string        `json:"id"`
	Symbol            string        `json:"symbol"`
	Timeframe         Timeframe     `json:"timeframe"`
	Kind              PatternKind   `json:"kind"`
	Direction         Direction     `json:"direction"`
	Bars              []Bar         `json:"bars"`
	TriggerPrice      float64       `json:"trigger_price"`
	InvalidationPrice float64       `json:"invalidation_price"`
	Status            PatternStatus `json:"status"`
	PendingBars       int           `json:"pending_bars"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Clone returns a deep copy.
func (p PatternInstance) Clone() PatternInstance {
	c := p
	c.Bars = append([]Bar(nil), p.Bars...)
	return c
}

// PatternEvent records one state transition.
type PatternEvent struct {
	Instance PatternInstance `json:"instance"`
	From     PatternStatus   `json:"from"`
	To       PatternStatus   `json:"to"`
	At       time.Time       `json:"at"`
}
