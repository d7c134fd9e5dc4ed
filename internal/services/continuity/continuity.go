package continuity

import (
	"sort"
	"time"

	"StratEngine/internal/domain/models"
)

// Evaluate computes timeframe continuity across the tracked ledgers of one symbol.
// An inside bar as the last sealed bar of any timeframe forces a conflict.
// Provisional tags of forming bars are ignored.
func Evaluate(symbol string, states []models.TimeframeState, at time.Time) models.ContinuitySnapshot {
	ordered := make([]models.TimeframeState, len(states))
	copy(ordered, states)
	// largest first
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timeframe.Rank() > ordered[j].Timeframe.Rank()
	})

	snap := models.ContinuitySnapshot{
		Symbol:     symbol,
		Tracked:    len(ordered),
		Timeframes: make([]models.TimeframeControl, 0, len(ordered)),
		Timestamp:  at,
	}

	inside := false
	for _, st := range ordered {
		tag := st.SealedTag()
		if tag == models.ScenarioInside {
			inside = true
		}
		switch st.Control {
		case models.ControlBullish:
			snap.Bullish++
		case models.ControlBearish:
			snap.Bearish++
		}
		snap.Timeframes = append(snap.Timeframes, models.TimeframeControl{
			Timeframe: st.Timeframe,
			Control:   st.Control,
			Coupling:  st.Coupling,
			Tag:       tag,
		})
	}

	snap.Alignment = alignment(snap.Bullish, snap.Bearish, snap.Tracked, inside)
	snap.CouplingRisk = couplingRisk(ordered)
	return snap
}

func alignment(bull, bear, n int, inside bool) models.Alignment {
	switch {
	case inside, n == 0:
		return models.Alignment{Kind: models.AlignmentConflict}
	case bull == n:
		return models.Alignment{Kind: models.AlignmentFullUp, Count: n, Direction: models.DirectionLong}
	case bear == n:
		return models.Alignment{Kind: models.AlignmentFullDown, Count: n, Direction: models.DirectionShort}
	case bull == bear:
		return models.Alignment{Kind: models.AlignmentConflict}
	case bull > bear:
		return models.Alignment{Kind: models.AlignmentPartial, Count: bull, Direction: models.DirectionLong}
	default:
		return models.Alignment{Kind: models.AlignmentPartial, Count: bear, Direction: models.DirectionShort}
	}
}

// couplingRisk looks at the two timeframes directly below the largest one.
func couplingRisk(ordered []models.TimeframeState) models.CouplingRisk {
	if len(ordered) > 1 && ordered[1].Coupling == models.Coupled {
		return models.CouplingRiskHigh
	}
	if len(ordered) > 2 && ordered[2].Coupling == models.Coupled {
		return models.CouplingRiskModerate
	}
	return models.CouplingRiskNone
}
