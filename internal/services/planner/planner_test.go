package planner

import (
	"math"
	"testing"
	"time"

	"StratEngine/internal/domain/models"
)

var at = time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)

func day(i int, o, h, l, c float64) models.Bar {
	return models.Bar{Symbol: "SPY", Timeframe: models.TFDay, OpenTime: at.AddDate(0, 0, i), Open: o, High: h, Low: l, Close: c, Sealed: true}
}

// a long 3-1-2 with entry 100.01, stop 96.01 and the outside bar high at 110.01
func threeOneTwo() (models.PatternInstance, []models.ClassifiedBar) {
	bars := []models.Bar{
		day(0, 100, 105, 95, 100),
		day(1, 108, 110.01, 90, 92),
		day(2, 97, 100, 96.01, 99),
		day(3, 98, 101, 97, 100.5),
	}
	hist := []models.ClassifiedBar{
		{Bar: bars[0]},
		{Bar: bars[1], Tag: models.ScenarioOutsideDown},
		{Bar: bars[2], Tag: models.ScenarioInside},
		{Bar: bars[3], Tag: models.ScenarioUp},
	}
	inst := models.PatternInstance{
		ID: "p1", Symbol: "SPY", Timeframe: models.TFDay,
		Kind: models.PatternThreeOneTwoReversal, Direction: models.DirectionLong,
		Bars:         []models.Bar{bars[1], bars[2]},
		TriggerPrice: 100 + 0.01, InvalidationPrice: 96.01,
		Status: models.StatusInForce,
	}
	return inst, hist
}

func fullUp(n int) models.ContinuitySnapshot {
	return models.ContinuitySnapshot{
		Symbol:    "SPY",
		Alignment: models.Alignment{Kind: models.AlignmentFullUp, Count: n, Direction: models.DirectionLong},
		Bullish:   n,
		Tracked:   n,
	}
}

func TestPlanAccepted(t *testing.T) {
	inst, hist := threeOneTwo()
	p := New(DefaultConfig())
	plan := p.Plan(inst, fullUp(1), hist, at)

	if !plan.Accept || plan.RejectionReason != models.RejectNone {
		t.Fatalf("plan rejected: %+v", plan)
	}
	if math.Abs(plan.RiskReward-0.4) > 1e-9 {
		t.Fatalf("rr = %v, want 0.4", plan.RiskReward)
	}
	if plan.Stop != 96.01 || len(plan.Targets) != 1 || plan.Targets[0] != 110.01 {
		t.Fatalf("stop=%v targets=%v", plan.Stop, plan.Targets)
	}
	if plan.PositionSize != 500 || plan.RiskPercent != 0.02 || plan.CapitalConstrained {
		t.Fatalf("size=%d risk=%v constrained=%v", plan.PositionSize, plan.RiskPercent, plan.CapitalConstrained)
	}
	if plan.PatternID != "p1" || plan.ID == "" {
		t.Fatalf("ids = %q / %q", plan.PatternID, plan.ID)
	}
}

func TestPlanRejections(t *testing.T) {
	inst, hist := threeOneTwo()
	tests := []struct {
		name   string
		snap   models.ContinuitySnapshot
		mutate func(*models.PatternInstance, *Config)
		want   models.RejectionReason
	}{
		{
			name: "conflict",
			snap: models.ContinuitySnapshot{Alignment: models.Alignment{Kind: models.AlignmentConflict}, Tracked: 2, Bullish: 1, Bearish: 1},
			want: models.RejectContinuityConflict,
		},
		{
			name: "direction mismatch",
			snap: models.ContinuitySnapshot{Alignment: models.Alignment{Kind: models.AlignmentFullDown, Count: 2, Direction: models.DirectionShort}, Tracked: 2, Bearish: 2},
			want: models.RejectDirectionMismatch,
		},
		{
			name: "partial of one",
			snap: models.ContinuitySnapshot{Alignment: models.Alignment{Kind: models.AlignmentPartial, Count: 1, Direction: models.DirectionLong}, Tracked: 3, Bullish: 1},
			want: models.RejectInsufficientContinuity,
		},
		{
			name: "poor risk reward",
			snap: fullUp(1),
			mutate: func(i *models.PatternInstance, _ *Config) {
				i.InvalidationPrice = 90
			},
			want: models.RejectPoorRiskReward,
		},
		{
			name: "no target",
			snap: fullUp(1),
			mutate: func(i *models.PatternInstance, _ *Config) {
				i.TriggerPrice = 120
				i.InvalidationPrice = 119
			},
			want: models.RejectNoTarget,
		},
		{
			name: "low confidence",
			snap: fullUp(1),
			mutate: func(_ *models.PatternInstance, c *Config) {
				c.MinConfidence = 0.9
			},
			want: models.RejectLowConfidence,
		},
		{
			name: "position too small",
			snap: fullUp(1),
			mutate: func(_ *models.PatternInstance, c *Config) {
				c.AccountValue = 100
			},
			want: models.RejectPositionTooSmall,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := inst.Clone()
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&in, &cfg)
			}
			plan := New(cfg).Plan(in, tt.snap, hist, at)
			if plan.Accept || plan.RejectionReason != tt.want {
				t.Fatalf("accept=%v reason=%q, want %q", plan.Accept, plan.RejectionReason, tt.want)
			}
			if plan.PositionSize != 0 || plan.RiskPercent != 0 {
				t.Fatalf("rejected plan carries size %d", plan.PositionSize)
			}
		})
	}
}

func TestPlanPartialUsesLowerRisk(t *testing.T) {
	inst, hist := threeOneTwo()
	snap := models.ContinuitySnapshot{
		Alignment: models.Alignment{Kind: models.AlignmentPartial, Count: 2, Direction: models.DirectionLong},
		Bullish:   2, Bearish: 1, Tracked: 3,
	}
	plan := New(DefaultConfig()).Plan(inst, snap, hist, at)
	if !plan.Accept || plan.RiskPercent != 0.01 || plan.PositionSize != 250 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanCapitalConstrained(t *testing.T) {
	inst, hist := threeOneTwo()
	cfg := DefaultConfig()
	cfg.RiskPercentFull = 0.5
	plan := New(cfg).Plan(inst, fullUp(1), hist, at)
	// 100000*0.5/4 = 12500 shares, but only 999 are affordable at 100.01
	if !plan.Accept || plan.PositionSize != 999 || !plan.CapitalConstrained {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanBufferTicksWidenStop(t *testing.T) {
	inst, hist := threeOneTwo()
	cfg := DefaultConfig()
	cfg.BufferTicks = 2
	plan := New(cfg).Plan(inst, fullUp(1), hist, at)
	if math.Abs(plan.Stop-95.99) > 1e-9 {
		t.Fatalf("stop = %v, want 95.99", plan.Stop)
	}
}

func TestTargetsFromHistoryPivots(t *testing.T) {
	hist := []models.ClassifiedBar{
		{Bar: day(0, 10, 12, 9, 11)},
		{Bar: day(1, 11, 15, 10, 14)},
		{Bar: day(2, 14, 14.5, 12, 13)},
		{Bar: day(3, 13, 18, 12.5, 17)},
		{Bar: day(4, 17, 17.5, 11, 12)},
		{Bar: day(5, 12, 13, 11.5, 12.5)},
	}
	// three pivots beyond the entry: 15, 18 and 21
	long := []models.ClassifiedBar{
		{Bar: day(0, 10, 12, 9, 11)},
		{Bar: day(1, 11, 15, 10, 14)},
		{Bar: day(2, 14, 14.5, 12, 13)},
		{Bar: day(3, 13, 18, 12.5, 17)},
		{Bar: day(4, 17, 17.5, 14, 15)},
		{Bar: day(5, 15, 21, 14.5, 20)},
		{Bar: day(6, 20, 20.5, 12, 12.5)},
		{Bar: day(7, 12.5, 13, 11.5, 12)},
	}

	tests := []struct {
		name    string
		window  []models.Bar
		history []models.ClassifiedBar
		want    []float64
	}{
		{"pivots only", []models.Bar{hist[5].Bar}, hist, []float64{15, 18}},
		{"window then pivot", []models.Bar{hist[4].Bar, hist[5].Bar}, hist, []float64{17.5, 18}},
		{"capped at two", []models.Bar{long[7].Bar}, long, []float64{15, 18}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Targets(models.DirectionLong, 13.01, tt.window, tt.history)
			if len(got) > MaxTargets {
				t.Fatalf("targets = %v, more than %d", got, MaxTargets)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("targets = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("targets = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExitFor(t *testing.T) {
	up := models.ClassifiedBar{Bar: day(0, 10, 12, 9, 11), Tag: models.ScenarioUp}
	down := models.ClassifiedBar{Bar: day(1, 11, 11.5, 8, 8.5), Tag: models.ScenarioDown}

	sig, ok := ExitFor(up, down, at)
	if !ok || sig.Direction != models.DirectionLong || sig.Price != 8.5 {
		t.Fatalf("exit = %+v ok=%v", sig, ok)
	}
	sig, ok = ExitFor(down, up, at)
	if !ok || sig.Direction != models.DirectionShort {
		t.Fatalf("exit = %+v ok=%v", sig, ok)
	}
	if _, ok := ExitFor(up, up, at); ok {
		t.Fatalf("2U,2U must not exit")
	}
}
