package models

import (
	"encoding/json"
	"time"
)

// AuditKind categorises audit events.
type AuditKind string

const (
	AuditTimeframeSealed   AuditKind = "timeframe_sealed"
	AuditCouplingChanged   AuditKind = "coupling_changed"
	AuditPatternTransition AuditKind = "pattern_transition"
	AuditPlanEmitted       AuditKind = "plan_emitted"
	AuditExitSignal        AuditKind = "exit_signal"
)

// AuditEvent is an append-only record of engine activity.
type AuditEvent struct {
	Kind      AuditKind       `json:"kind"`
	Symbol    string          `json:"symbol"`
	Timeframe Timeframe       `json:"timeframe,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	At        time.Time       `json:"at"`
}

// NewAuditEvent marshals payload into an AuditEvent.
func NewAuditEvent(kind AuditKind, symbol string, tf Timeframe, payload any, at time.Time) (AuditEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AuditEvent{}, err
	}
	return AuditEvent{Kind: kind, Symbol: symbol, Timeframe: tf, Payload: raw, At: at}, nil
}

// CouplingChange records a coupling flip on period rollover.
type CouplingChange struct {
	From        Coupling  `json:"from"`
	To          Coupling  `json:"to"`
	PeriodStart time.Time `json:"period_start"`
}

// CouplingEvent is a coupling flip on a specific timeframe.
type CouplingEvent struct {
	Timeframe Timeframe
	Change    CouplingChange
}
