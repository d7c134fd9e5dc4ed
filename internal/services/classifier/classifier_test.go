package classifier

import (
	"testing"

	"StratEngine/internal/domain/models"
)

func bar(o, h, l, c float64) models.Bar {
	return models.Bar{Symbol: "SPY", Open: o, High: h, Low: l, Close: c}
}

func TestClassify(t *testing.T) {
	prev := bar(100, 105, 95, 102)
	tests := []struct {
		name string
		curr models.Bar
		want models.ScenarioTag
	}{
		{"inside", bar(100, 104, 96, 101), models.ScenarioInside},
		{"exact repeat", prev, models.ScenarioInside},
		{"equal high higher low", bar(100, 105, 97, 101), models.ScenarioInside},
		{"equal low lower high", bar(100, 103, 95, 101), models.ScenarioInside},
		{"up", bar(103, 106, 96, 105), models.ScenarioUp},
		{"up equal low", bar(103, 106, 95, 105), models.ScenarioUp},
		{"down", bar(97, 104, 94, 95), models.ScenarioDown},
		{"down equal high", bar(97, 105, 94, 95), models.ScenarioDown},
		{"outside up", bar(96, 107, 94, 106), models.ScenarioOutsideUp},
		{"outside doji counts up", bar(100, 107, 94, 100), models.ScenarioOutsideUp},
		{"outside down", bar(106, 107, 94, 95), models.ScenarioOutsideDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(prev, tt.curr); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyTotalAndStable(t *testing.T) {
	prev := bar(10, 12, 8, 11)
	valid := map[models.ScenarioTag]bool{
		models.ScenarioInside: true, models.ScenarioUp: true, models.ScenarioDown: true,
		models.ScenarioOutsideUp: true, models.ScenarioOutsideDown: true,
	}
	for h := 9.0; h <= 14; h += 0.5 {
		for l := 6.0; l <= 9; l += 0.5 {
			curr := bar(l, h, l, h)
			first := Classify(prev, curr)
			if !valid[first] {
				t.Fatalf("h=%v l=%v: unexpected tag %q", h, l, first)
			}
			if again := Classify(prev, curr); again != first {
				t.Fatalf("h=%v l=%v: tag changed %q -> %q", h, l, first, again)
			}
		}
	}
}

func TestClassifySeries(t *testing.T) {
	got := ClassifySeries([]models.Bar{
		bar(100, 105, 95, 100),
		bar(108, 110, 90, 92),
		bar(97, 100, 96, 99),
		bar(98, 101, 97, 100),
	})
	want := []models.ScenarioTag{models.ScenarioNone, models.ScenarioOutsideDown, models.ScenarioInside, models.ScenarioUp}
	for i, w := range want {
		if got[i].Tag != w {
			t.Fatalf("bar %d tag = %q, want %q", i, got[i].Tag, w)
		}
	}
}
