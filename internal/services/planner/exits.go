package planner

import (
	"time"

	"StratEngine/internal/domain/models"
)

// ExitFor detects a 2-2 reversal between two consecutive sealed bars.
// 2U then 2D exits longs; 2D then 2U exits shorts.
func ExitFor(prev, curr models.ClassifiedBar, at time.Time) (models.ExitSignal, bool) {
	var dir models.Direction
	switch {
	case prev.Tag == models.ScenarioUp && curr.Tag == models.ScenarioDown:
		dir = models.DirectionLong
	case prev.Tag == models.ScenarioDown && curr.Tag == models.ScenarioUp:
		dir = models.DirectionShort
	default:
		return models.ExitSignal{}, false
	}
	return models.ExitSignal{
		Symbol:    curr.Symbol,
		Timeframe: curr.Timeframe,
		Direction: dir,
		From:      prev.Tag,
		To:        curr.Tag,
		Price:     curr.Close,
		At:        at,
	}, true
}
