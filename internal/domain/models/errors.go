package models

import "errors"

var (
	// ErrOutOfOrderBar is returned when a bar does not strictly follow the last sealed bar.
	ErrOutOfOrderBar = errors.New("out of order bar")
	// ErrInvalidBarGeometry is returned for bars whose OHLC values are inconsistent.
	ErrInvalidBarGeometry = errors.New("invalid bar geometry")
	// ErrUnknownTimeframe is returned for timeframe identifiers that cannot be parsed.
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	// ErrUntrackedTimeframe is returned when a bar targets a timeframe the symbol does not track.
	ErrUntrackedTimeframe = errors.New("untracked timeframe")
)
