package classifier

import "StratEngine/internal/domain/models"

// Classify tags curr relative to the immediately preceding sealed bar.
// Comparisons are strict, so a bar that breaks neither side of prev,
// including an exact repeat or a bar sharing an edge, is an inside bar.
func Classify(prev, curr models.Bar) models.ScenarioTag {
	higherHigh := curr.High > prev.High
	lowerLow := curr.Low < prev.Low

	switch {
	case higherHigh && lowerLow:
		if curr.Close >= curr.Open {
			return models.ScenarioOutsideUp
		}
		return models.ScenarioOutsideDown
	case higherHigh:
		return models.ScenarioUp
	case lowerLow:
		return models.ScenarioDown
	default:
		return models.ScenarioInside
	}
}

// ClassifyLive returns the provisional tag of a forming bar. It can change on
// every update until the bar seals.
func ClassifyLive(prev, live models.Bar) models.ScenarioTag {
	return Classify(prev, live)
}

// ClassifySeries tags every bar after the first against its predecessor.
// The first bar is left unclassified.
func ClassifySeries(bars []models.Bar) []models.ClassifiedBar {
	out := make([]models.ClassifiedBar, len(bars))
	for i, b := range bars {
		out[i] = models.ClassifiedBar{Bar: b}
		if i > 0 {
			out[i].Tag = Classify(bars[i-1], b)
		}
	}
	return out
}
