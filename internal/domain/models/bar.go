package models

import (
	"fmt"
	"math"
	"time"
)

// ScenarioTag classifies a bar relative to its predecessor.
type ScenarioTag string

const (
	ScenarioNone        ScenarioTag = ""
	ScenarioInside      ScenarioTag = "1"
	ScenarioUp          ScenarioTag = "2U"
	ScenarioDown        ScenarioTag = "2D"
	ScenarioOutsideUp   ScenarioTag = "3U"
	ScenarioOutsideDown ScenarioTag = "3D"
)

// IsDirectional reports 2U or 2D.
func (s ScenarioTag) IsDirectional() bool { return s == ScenarioUp || s == ScenarioDown }

// IsOutside reports 3U or 3D.
func (s ScenarioTag) IsOutside() bool { return s == ScenarioOutsideUp || s == ScenarioOutsideDown }

// Bar is one OHLC record for a timeframe period.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Sealed    bool      `json:"is_sealed"`
}

// Validate checks OHLC geometry.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: symbol empty", ErrInvalidBarGeometry)
	}
	if b.OpenTime.IsZero() {
		return fmt.Errorf("%w: open_time missing", ErrInvalidBarGeometry)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: non-positive or non-finite price", ErrInvalidBarGeometry)
		}
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("%w: high %.4f below body", ErrInvalidBarGeometry, b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: low %.4f above body", ErrInvalidBarGeometry, b.Low)
	}
	return nil
}

// Range returns high - low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Body returns |close - open|.
func (b Bar) Body() float64 { return math.Abs(b.Close - b.Open) }

// ClassifiedBar is a sealed bar with its scenario tag.
type ClassifiedBar struct {
	Bar
	Tag ScenarioTag `json:"tag"`
}
