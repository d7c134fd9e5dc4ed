package models

import "time"

// Control is the directional control of a timeframe relative to its period open.
type Control string

const (
	ControlBullish Control = "bullish"
	ControlBearish Control = "bearish"
	ControlNeutral Control = "neutral"
)

// Coupling tells whether a timeframe period begins on its parent's period start.
type Coupling string

const (
	Coupled   Coupling = "coupled"
	Decoupled Coupling = "decoupled"
)

// TimeframeState is a read-only snapshot of one timeframe ledger.
type TimeframeState struct {
	Symbol           string          `json:"symbol"`
	Timeframe        Timeframe       `json:"timeframe"`
	Parent           *Timeframe      `json:"parent,omitempty"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodAnchorOpen float64         `json:"period_anchor_open"`
	LastPrice        float64         `json:"last_price"`
	History          []ClassifiedBar `json:"history"`
	Live             *Bar            `json:"live,omitempty"`
	LiveTag          ScenarioTag     `json:"live_tag,omitempty"`
	Coupling         Coupling        `json:"coupling"`
	Control          Control         `json:"control"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CurrentTag returns the provisional tag of the forming bar, or the last sealed tag.
func (s TimeframeState) CurrentTag() ScenarioTag {
	if s.Live != nil {
		return s.LiveTag
	}
	if n := len(s.History); n > 0 {
		return s.History[n-1].Tag
	}
	return ScenarioNone
}

// SealedTag is the tag of the most recent sealed bar. A forming bar never
// changes it.
func (s TimeframeState) SealedTag() ScenarioTag {
	if b, ok := s.LastSealed(); ok {
		return b.Tag
	}
	return ScenarioNone
}

// LastSealed returns the most recent sealed bar.
func (s TimeframeState) LastSealed() (ClassifiedBar, bool) {
	if n := len(s.History); n > 0 {
		return s.History[n-1], true
	}
	return ClassifiedBar{}, false
}

// AlignmentKind summarises cross-timeframe agreement.
type AlignmentKind string

const (
	AlignmentFullUp   AlignmentKind = "full_up"
	AlignmentFullDown AlignmentKind = "full_down"
	AlignmentPartial  AlignmentKind = "partial"
	AlignmentConflict AlignmentKind = "conflict"
)

// Alignment is the continuity verdict. Count and Direction are set for Partial.
type Alignment struct {
	Kind      AlignmentKind `json:"kind"`
	Count     int           `json:"count,omitempty"`
	Direction Direction     `json:"direction,omitempty"`
}

// IsFull reports FullUp or FullDown.
func (a Alignment) IsFull() bool {
	return a.Kind == AlignmentFullUp || a.Kind == AlignmentFullDown
}

// CouplingRisk grades how tightly the higher timeframes are coupled.
type CouplingRisk string

const (
	CouplingRiskNone     CouplingRisk = "none"
	CouplingRiskModerate CouplingRisk = "moderate"
	CouplingRiskHigh     CouplingRisk = "high"
)

// TimeframeControl is the per-timeframe row of a continuity snapshot.
type TimeframeControl struct {
	Timeframe Timeframe   `json:"timeframe"`
	Control   Control     `json:"control"`
	Coupling  Coupling    `json:"coupling"`
	Tag       ScenarioTag `json:"tag,omitempty"`
}

// ContinuitySnapshot is the latest continuity evaluation for a symbol.
type ContinuitySnapshot struct {
	Symbol       string             `json:"symbol"`
	Alignment    Alignment          `json:"alignment"`
	CouplingRisk CouplingRisk       `json:"coupling_risk"`
	Bullish      int                `json:"bullish"`
	Bearish      int                `json:"bearish"`
	Tracked      int                `json:"tracked"`
	Timeframes   []TimeframeControl `json:"timeframes"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Aligned returns the count of timeframes whose control agrees with dir.
func (s ContinuitySnapshot) Aligned(dir Direction) int {
	switch dir {
	case DirectionLong:
		return s.Bullish
	case DirectionShort:
		return s.Bearish
	}
	return 0
}

// Confidence scales base by 15% per aligned timeframe.
func (s ContinuitySnapshot) Confidence(base float64, dir Direction) float64 {
	aligned := s.Aligned(dir)
	if aligned < 0 {
		aligned = 0
	}
	if aligned > s.Tracked {
		aligned = s.Tracked
	}
	return base * (1 + 0.15*float64(aligned))
}

// TierConfidence maps an aligned timeframe count to a base confidence.
func TierConfidence(aligned int) float64 {
	switch {
	case aligned >= 4:
		return 0.95
	case aligned == 3:
		return 0.80
	case aligned == 2:
		return 0.50
	case aligned == 1:
		return 0.25
	}
	return 0.10
}
