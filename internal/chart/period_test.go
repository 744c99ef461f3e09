package chart

import (
	"testing"
	"time"
)

func TestParsePeriodDefaultsToWeek(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{"D", PeriodDay},
		{"W", PeriodWeek},
		{"M", PeriodMonth},
		{"6M", PeriodSixMonth},
		{"Y", PeriodYear},
		{"", PeriodWeek},
		{"5Y", PeriodWeek},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePeriod(tt.in); got != tt.want {
				t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeriodStoreMapping(t *testing.T) {
	tests := []struct {
		p        Period
		wantType string
		wantCalc string
	}{
		{PeriodDay, "hourly", "AVG"},
		{PeriodWeek, "daily", "SUM"},
		{PeriodMonth, "daily", "SUM"},
		{PeriodSixMonth, "weekly", "AVG"},
		{PeriodYear, "monthly", "AVG"},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			if got := tt.p.StorePeriodType(); got != tt.wantType {
				t.Errorf("StorePeriodType() = %q, want %q", got, tt.wantType)
			}
			if got := tt.p.CalculationType(); got != tt.wantCalc {
				t.Errorf("CalculationType() = %q, want %q", got, tt.wantCalc)
			}
		})
	}
}

// The display divisor is what turns per-week and per-month rollup values into
// daily equivalents; getting it wrong skews every six-month and year chart.
func TestPeriodDisplayDivisor(t *testing.T) {
	tests := []struct {
		p    Period
		want float64
	}{
		{PeriodDay, 1},
		{PeriodWeek, 1},
		{PeriodMonth, 1},
		{PeriodSixMonth, 7},
		{PeriodYear, 30},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			if got := tt.p.DisplayDivisor(); got != tt.want {
				t.Errorf("DisplayDivisor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodInitialOldest(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		p    Period
		want time.Time
	}{
		{PeriodDay, now.AddDate(0, 0, -7)},
		{PeriodWeek, now.AddDate(0, 0, -56)},
		{PeriodMonth, now.AddDate(0, -6, 0)},
		{PeriodSixMonth, now.AddDate(0, -18, 0)},
		{PeriodYear, now.AddDate(-3, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			if got := tt.p.InitialOldest(now); !got.Equal(tt.want) {
				t.Errorf("InitialOldest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnitTruncate(t *testing.T) {
	// Wednesday afternoon.
	ref := time.Date(2024, time.January, 3, 14, 37, 12, 0, time.UTC)
	tests := []struct {
		unit Unit
		want time.Time
	}{
		{UnitHour, time.Date(2024, time.January, 3, 14, 0, 0, 0, time.UTC)},
		{UnitDay, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)},
		{UnitWeek, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}, // Monday
		{UnitMonth, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String(), func(t *testing.T) {
			if got := tt.unit.Truncate(ref); !got.Equal(tt.want) {
				t.Errorf("Truncate(%v) = %v, want %v", ref, got, tt.want)
			}
		})
	}
}

func TestUnitTruncateWeekOnSunday(t *testing.T) {
	sunday := time.Date(2024, time.January, 7, 23, 0, 0, 0, time.UTC)
	want := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := UnitWeek.Truncate(sunday); !got.Equal(want) {
		t.Errorf("Truncate(sunday) = %v, want previous Monday %v", got, want)
	}
}

func TestUnitBetween(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
		a, b time.Time
		want int
	}{
		{
			"hours forward",
			UnitHour,
			time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 5, 10, 0, 0, time.UTC),
			5,
		},
		{
			"days backward",
			UnitDay,
			time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC),
			-6,
		},
		{
			"weeks",
			UnitWeek,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC),
			4,
		},
		{
			"months across year boundary",
			UnitMonth,
			time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.unit.Between(tt.a, tt.b); got != tt.want {
				t.Errorf("Between() = %d, want %d", got, tt.want)
			}
		})
	}
}
