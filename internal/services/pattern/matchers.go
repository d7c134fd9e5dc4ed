package pattern

import (
	"math"

	"StratEngine/internal/domain/models"
)

// Setup is what a matcher found at the tail of the sealed history.
type Setup struct {
	Direction    models.Direction
	Bars         []models.Bar
	Trigger      float64
	Invalidation float64
	// Window is the number of bars the setup may stay pending. Zero means one.
	Window int
}

// Matcher inspects the sealed history, oldest first, and reports a setup
// completed by its newest bar.
type Matcher interface {
	Kind() models.PatternKind
	Match(history []models.ClassifiedBar, tick float64) (Setup, bool)
}

// MatchFunc adapts a function to the Matcher interface.
type MatchFunc struct {
	K  models.PatternKind
	Fn func(history []models.ClassifiedBar, tick float64) (Setup, bool)
}

func (m MatchFunc) Kind() models.PatternKind { return m.K }

func (m MatchFunc) Match(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	return m.Fn(history, tick)
}

// DefaultMatchers returns the built-in matcher for every pattern kind.
func DefaultMatchers() map[models.PatternKind]Matcher {
	return map[models.PatternKind]Matcher{
		models.PatternTwoTwoReversal:      MatchFunc{models.PatternTwoTwoReversal, matchTwoTwo},
		models.PatternTwoOneTwoReversal:   MatchFunc{models.PatternTwoOneTwoReversal, matchTwoOneTwo},
		models.PatternThreeOneTwoReversal: MatchFunc{models.PatternThreeOneTwoReversal, matchThreeOneTwo},
		models.PatternRevStrat:            MatchFunc{models.PatternRevStrat, matchRevStrat},
		models.PatternInsideBreakout:      MatchFunc{models.PatternInsideBreakout, matchInsideBreakout},
		models.PatternHammerShooter:       MatchFunc{models.PatternHammerShooter, matchHammerShooter},
		models.PatternTwoTwoContinuation:  MatchFunc{models.PatternTwoTwoContinuation, matchTwoTwoContinuation},
		models.PatternThreeTwoTwo:         MatchFunc{models.PatternThreeTwoTwo, matchThreeTwoTwo},
	}
}

func tail(history []models.ClassifiedBar, n int) []models.ClassifiedBar {
	if len(history) < n {
		return nil
	}
	return history[len(history)-n:]
}

// breakOf builds a single-direction setup off the extremes of ref.
func breakOf(dir models.Direction, ref models.Bar, tick float64, bars ...models.ClassifiedBar) Setup {
	s := Setup{Direction: dir, Bars: make([]models.Bar, len(bars))}
	for i, b := range bars {
		s.Bars[i] = b.Bar
	}
	if dir == models.DirectionLong {
		s.Trigger = ref.High + tick
		s.Invalidation = ref.Low
	} else {
		s.Trigger = ref.Low - tick
		s.Invalidation = ref.High
	}
	return s
}

func matchTwoTwo(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 1)
	if t == nil {
		return Setup{}, false
	}
	switch t[0].Tag {
	case models.ScenarioDown:
		return breakOf(models.DirectionLong, t[0].Bar, tick, t[0]), true
	case models.ScenarioUp:
		return breakOf(models.DirectionShort, t[0].Bar, tick, t[0]), true
	}
	return Setup{}, false
}

func matchTwoOneTwo(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	return matchInsideAfter(history, tick, models.ScenarioDown, models.ScenarioUp)
}

func matchThreeOneTwo(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	return matchInsideAfter(history, tick, models.ScenarioOutsideDown, models.ScenarioOutsideUp)
}

// matchInsideAfter matches [first, 1]; a bearish first bar sets up a long.
func matchInsideAfter(history []models.ClassifiedBar, tick float64, bearish, bullish models.ScenarioTag) (Setup, bool) {
	t := tail(history, 2)
	if t == nil || t[1].Tag != models.ScenarioInside {
		return Setup{}, false
	}
	switch t[0].Tag {
	case bearish:
		return breakOf(models.DirectionLong, t[1].Bar, tick, t...), true
	case bullish:
		return breakOf(models.DirectionShort, t[1].Bar, tick, t...), true
	}
	return Setup{}, false
}

func matchRevStrat(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 2)
	if t == nil || t[0].Tag != models.ScenarioInside {
		return Setup{}, false
	}
	switch t[1].Tag {
	case models.ScenarioDown:
		return breakOf(models.DirectionLong, t[1].Bar, tick, t...), true
	case models.ScenarioUp:
		return breakOf(models.DirectionShort, t[1].Bar, tick, t...), true
	}
	return Setup{}, false
}

// matchTwoTwoContinuation matches two directional bars the same way and sets
// up a break of the newest bar in that direction, stopped at the older bar.
func matchTwoTwoContinuation(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 2)
	if t == nil || t[0].Tag != t[1].Tag {
		return Setup{}, false
	}
	return continuation(t[1].Tag, t[0].Bar, t[1].Bar, tick, t...)
}

// matchThreeTwoTwo matches an outside bar followed by two directional bars
// the same way; the outside bar's far extreme is the stop.
func matchThreeTwoTwo(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 3)
	if t == nil || !t[0].Tag.IsOutside() || t[1].Tag != t[2].Tag {
		return Setup{}, false
	}
	return continuation(t[2].Tag, t[0].Bar, t[2].Bar, tick, t...)
}

// continuation sets up a break of last in the direction of tag, invalidated
// beyond stop's opposite extreme.
func continuation(tag models.ScenarioTag, stop, last models.Bar, tick float64, bars ...models.ClassifiedBar) (Setup, bool) {
	var s Setup
	switch tag {
	case models.ScenarioUp:
		s = breakOf(models.DirectionLong, last, tick, bars...)
		s.Invalidation = stop.Low
	case models.ScenarioDown:
		s = breakOf(models.DirectionShort, last, tick, bars...)
		s.Invalidation = stop.High
	default:
		return Setup{}, false
	}
	return s, true
}

// matchInsideBreakout is two-sided: Trigger is the long trigger and
// Invalidation carries the short trigger until one side breaks.
func matchInsideBreakout(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 2)
	if t == nil || t[1].Tag != models.ScenarioInside {
		return Setup{}, false
	}
	mother := t[0].Bar
	return Setup{
		Direction:    models.DirectionBoth,
		Bars:         []models.Bar{mother, t[1].Bar},
		Trigger:      mother.High + tick,
		Invalidation: mother.Low - tick,
	}, true
}

func matchHammerShooter(history []models.ClassifiedBar, tick float64) (Setup, bool) {
	t := tail(history, 1)
	if t == nil {
		return Setup{}, false
	}
	b := t[0].Bar
	switch {
	case IsHammer(b):
		return breakOf(models.DirectionLong, b, tick, t[0]), true
	case IsShooter(b):
		return breakOf(models.DirectionShort, b, tick, t[0]), true
	}
	return Setup{}, false
}

// IsHammer: body in the upper third of the range and a lower shadow at least twice the body.
func IsHammer(b models.Bar) bool {
	rng := b.Range()
	if rng <= 0 {
		return false
	}
	bodyLow := math.Min(b.Open, b.Close)
	return bodyLow >= b.Low+rng*2/3 && bodyLow-b.Low >= 2*b.Body()
}

// IsShooter mirrors IsHammer: body in the lower third, long upper shadow.
func IsShooter(b models.Bar) bool {
	rng := b.Range()
	if rng <= 0 {
		return false
	}
	bodyHigh := math.Max(b.Open, b.Close)
	return bodyHigh <= b.Low+rng/3 && b.High-bodyHigh >= 2*b.Body()
}
