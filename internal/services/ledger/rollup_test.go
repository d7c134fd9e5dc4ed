package ledger

import (
	"testing"
	"time"

	"StratEngine/internal/domain/models"
)

func fiveMin(start time.Time, i int, o, h, l, c float64, sealed bool) models.Bar {
	return models.Bar{
		Symbol: "SPY", Timeframe: models.TF5m,
		OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
		Open:     o, High: h, Low: l, Close: c, Sealed: sealed,
	}
}

func TestRollupSealsOnClosingBaseBar(t *testing.T) {
	start := time.Date(2024, 8, 12, 13, 30, 0, 0, time.UTC)
	r := NewRollup(models.TF5m, []models.Timeframe{models.TF15m}, time.UTC)

	r.Push(fiveMin(start, 0, 10, 11, 9, 10.5, true))
	out := r.Push(fiveMin(start, 1, 10.5, 12, 10, 11, false))
	live := out[models.TF15m]
	if len(live) != 1 || live[0].Sealed || live[0].High != 12 || live[0].Open != 10 {
		t.Fatalf("live derived = %+v", live)
	}

	r.Push(fiveMin(start, 1, 10.5, 12.5, 10, 11.5, true))
	out = r.Push(fiveMin(start, 2, 11.5, 11.8, 8.5, 9, true))
	got := out[models.TF15m]
	if len(got) != 1 || !got[0].Sealed {
		t.Fatalf("expected sealed 15m bar, got %+v", got)
	}
	b := got[0]
	if b.Open != 10 || b.High != 12.5 || b.Low != 8.5 || b.Close != 9 || !b.OpenTime.Equal(start) {
		t.Fatalf("aggregated bar = %+v", b)
	}
	if b.Timeframe != models.TF15m {
		t.Fatalf("timeframe = %q", b.Timeframe)
	}
}

func TestRollupSealsOnLaterPeriod(t *testing.T) {
	r := NewRollup(models.TFDay, []models.Timeframe{models.TFWeek}, time.UTC)
	fri := monday.AddDate(0, 0, 4)
	r.Push(models.Bar{Symbol: "SPY", OpenTime: fri, Open: 10, High: 11, Low: 9, Close: 10, Sealed: true})

	out := r.Push(models.Bar{Symbol: "SPY", OpenTime: monday.AddDate(0, 0, 7), Open: 10, High: 10.5, Low: 9.5, Close: 10.2})
	got := out[models.TFWeek]
	if len(got) != 2 {
		t.Fatalf("derived = %+v", got)
	}
	if !got[0].Sealed || !got[0].OpenTime.Equal(monday) {
		t.Fatalf("previous week not sealed: %+v", got[0])
	}
	if got[1].Sealed || !got[1].OpenTime.Equal(monday.AddDate(0, 0, 7)) {
		t.Fatalf("new week bar = %+v", got[1])
	}
}

func TestRollupPreviewDoesNotFold(t *testing.T) {
	start := time.Date(2024, 8, 12, 13, 30, 0, 0, time.UTC)
	r := NewRollup(models.TF5m, []models.Timeframe{models.TF15m}, time.UTC)

	first := fiveMin(start, 0, 10, 14, 9, 10.5, true)
	if got := r.Preview(first)[models.TF15m]; len(got) != 1 || got[0].High != 14 {
		t.Fatalf("preview = %+v", got)
	}
	// nothing was committed, so the next bar starts a fresh aggregate
	out := r.Push(fiveMin(start, 1, 10.5, 12, 10, 11, false))
	if got := out[models.TF15m]; len(got) != 1 || got[0].High != 12 || got[0].Open != 10.5 {
		t.Fatalf("derived after preview = %+v", got)
	}
}
