package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	bar := time.Date(2024, 10, 10, 14, 30, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-10-10T14:30:00Z", bar, true},
		{"2024-10-10T10:30:00-04:00", bar, true},
		{"2024-10-10T14:30:00.250Z", bar.Add(250 * time.Millisecond), true},
		{strconv.FormatInt(bar.Unix(), 10), bar, true},
		{strconv.FormatInt(bar.UnixMilli(), 10), bar, true},
		{"", time.Time{}, false},
		{"0", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseTime(%q) ok = %v", tc.in, ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPeriodStarts(t *testing.T) {
	// Thursday
	ts := time.Date(2024, 8, 15, 13, 47, 0, 0, time.UTC)
	cases := []struct {
		name string
		got  time.Time
		want time.Time
	}{
		{"day", StartOfDay(ts, time.UTC), time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)},
		{"week", StartOfWeek(ts, time.UTC), time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)},
		{"month", StartOfMonth(ts, time.UTC), time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"quarter", StartOfQuarter(ts, time.UTC), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"year", StartOfYear(ts, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"15m", TruncateInDay(ts, 15*time.Minute, time.UTC), time.Date(2024, 8, 15, 13, 45, 0, 0, time.UTC)},
		{"4h", TruncateInDay(ts, 4*time.Hour, time.UTC), time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if !c.got.Equal(c.want) {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestStartOfWeekOnSunday(t *testing.T) {
	sun := time.Date(2024, 8, 18, 23, 0, 0, 0, time.UTC)
	want := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	if got := StartOfWeek(sun, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
