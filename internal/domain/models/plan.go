package models

import "time"

// RejectionReason explains why a plan was not accepted.
type RejectionReason string

const (
	RejectNone                   RejectionReason = ""
	RejectPoorRiskReward         RejectionReason = "poor_risk_reward"
	RejectContinuityConflict     RejectionReason = "continuity_conflict"
	RejectDirectionMismatch      RejectionReason = "direction_mismatch"
	RejectInsufficientContinuity RejectionReason = "insufficient_continuity"
	RejectNoTarget               RejectionReason = "no_target"
	RejectLowConfidence          RejectionReason = "low_confidence"
	RejectPositionTooSmall       RejectionReason = "position_too_small"
)

// TradePlan is an actionable or rejected plan derived from an in-force pattern.
type TradePlan struct {
	ID                 string          `json:"id"`
	PatternID          string          `json:"pattern_id"`
	Symbol             string          `json:"symbol"`
	Timeframe          Timeframe       `json:"timeframe"`
	Kind               PatternKind     `json:"kind"`
	Direction          Direction       `json:"direction"`
	EntryTrigger       float64         `json:"entry_trigger"`
	Stop               float64         `json:"stop"`
	Targets            []float64       `json:"targets"`
	RiskReward         float64         `json:"risk_reward"`
	Confidence         float64         `json:"confidence"`
	RiskPercent        float64         `json:"risk_percent,omitempty"`
	PositionSize       int64           `json:"position_size,omitempty"`
	CapitalConstrained bool            `json:"capital_constrained,omitempty"`
	Accept             bool            `json:"accept"`
	RejectionReason    RejectionReason `json:"rejection_reason,omitempty"`
	Alignment          Alignment       `json:"alignment"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ExitSignal asks holders of Direction positions to exit after a 2-2 reversal.
type ExitSignal struct {
	Symbol    string      `json:"symbol"`
	Timeframe Timeframe   `json:"timeframe"`
	Direction Direction   `json:"direction"`
	From      ScenarioTag `json:"from"`
	To        ScenarioTag `json:"to"`
	Price     float64     `json:"price"`
	At        time.Time   `json:"at"`
}
