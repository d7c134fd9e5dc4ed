package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"StratEngine/pkg/util"
)

// Timeframe represents a bar resolution.
type Timeframe string

const (
	TF1m      Timeframe = "1m"
	TF5m      Timeframe = "5m"
	TF15m     Timeframe = "15m"
	TF30m     Timeframe = "30m"
	TF60m     Timeframe = "60m"
	TF4h      Timeframe = "4h"
	TFDay     Timeframe = "D"
	TFWeek    Timeframe = "W"
	TFMonth   Timeframe = "M"
	TFQuarter Timeframe = "Q"
	TFYear    Timeframe = "Y"
)

var intraday = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF60m: time.Hour,
	TF4h:  4 * time.Hour,
}

// rank orders timeframes by nominal length in minutes.
var rank = map[Timeframe]int{
	TF1m:      1,
	TF5m:      5,
	TF15m:     15,
	TF30m:     30,
	TF60m:     60,
	TF4h:      240,
	TFDay:     1440,
	TFWeek:    10080,
	TFMonth:   43200,
	TFQuarter: 129600,
	TFYear:    525600,
}

var aliases = map[string]Timeframe{
	"1h":      TF60m,
	"60min":   TF60m,
	"1d":      TFDay,
	"day":     TFDay,
	"daily":   TFDay,
	"1w":      TFWeek,
	"week":    TFWeek,
	"weekly":  TFWeek,
	"month":   TFMonth,
	"monthly": TFMonth,
	"quarter": TFQuarter,
	"year":    TFYear,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := rank[tf]
	return ok
}

// ParseTimeframe converts a raw string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if IsValidTimeframe(tf) {
		return tf, nil
	}
	if a, ok := aliases[strings.ToLower(string(tf))]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

// Rank returns the nominal length of tf in minutes (0 if unknown).
func (tf Timeframe) Rank() int { return rank[tf] }

// IsIntraday reports whether tf is shorter than a day.
func (tf Timeframe) IsIntraday() bool {
	_, ok := intraday[tf]
	return ok
}

// PeriodStart returns the start of the period of tf containing t.
func (tf Timeframe) PeriodStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if d, ok := intraday[tf]; ok {
		return util.TruncateInDay(t, d, loc)
	}
	switch tf {
	case TFDay:
		return util.StartOfDay(t, loc)
	case TFWeek:
		return util.StartOfWeek(t, loc)
	case TFMonth:
		return util.StartOfMonth(t, loc)
	case TFQuarter:
		return util.StartOfQuarter(t, loc)
	case TFYear:
		return util.StartOfYear(t, loc)
	}
	return t
}

// NextPeriod returns the start of the period following the one starting at start.
func (tf Timeframe) NextPeriod(start time.Time) time.Time {
	if d, ok := intraday[tf]; ok {
		return start.Add(d)
	}
	switch tf {
	case TFDay:
		return start.AddDate(0, 0, 1)
	case TFWeek:
		return start.AddDate(0, 0, 7)
	case TFMonth:
		return start.AddDate(0, 1, 0)
	case TFQuarter:
		return start.AddDate(0, 3, 0)
	case TFYear:
		return start.AddDate(1, 0, 0)
	}
	return start
}

// SortAscending orders timeframes from smallest to largest.
func SortAscending(tfs []Timeframe) {
	sort.SliceStable(tfs, func(i, j int) bool { return tfs[i].Rank() < tfs[j].Rank() })
}

// AllTimeframes lists every supported timeframe, smallest first.
func AllTimeframes() []Timeframe {
	out := make([]Timeframe, 0, len(rank))
	for tf := range rank {
		out = append(out, tf)
	}
	SortAscending(out)
	return out
}
