package chart

import "time"

// Period is the chart granularity selected by the user (day through year view).
type Period string

const (
	PeriodDay      Period = "D"
	PeriodWeek     Period = "W"
	PeriodMonth    Period = "M"
	PeriodSixMonth Period = "6M"
	PeriodYear     Period = "Y"
)

var ValidPeriods = []Period{
	PeriodDay,
	PeriodWeek,
	PeriodMonth,
	PeriodSixMonth,
	PeriodYear,
}

func ParsePeriod(s string) Period {
	for _, p := range ValidPeriods {
		if string(p) == s {
			return p
		}
	}
	return PeriodWeek
}

func (p Period) Label() string {
	switch p {
	case PeriodDay:
		return "Day"
	case PeriodWeek:
		return "Week"
	case PeriodMonth:
		return "Month"
	case PeriodSixMonth:
		return "6 Months"
	case PeriodYear:
		return "Year"
	default:
		return "Week"
	}
}

// Unit returns the calendar unit buckets step by at this granularity.
func (p Period) Unit() Unit {
	switch p {
	case PeriodDay:
		return UnitHour
	case PeriodWeek, PeriodMonth:
		return UnitDay
	case PeriodSixMonth:
		return UnitWeek
	case PeriodYear:
		return UnitMonth
	default:
		return UnitDay
	}
}

// VisibleBars is the number of buckets shown at once.
func (p Period) VisibleBars() int {
	switch p {
	case PeriodDay:
		return 24
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	case PeriodSixMonth:
		return 26
	case PeriodYear:
		return 12
	default:
		return 7
	}
}

// VisibleWindow is the wall-clock span of the visible chart domain.
func (p Period) VisibleWindow() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	case PeriodSixMonth:
		return 26 * 7 * 24 * time.Hour
	case PeriodYear:
		return 365 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// ChunkSize is how many granularity units a single incremental load extends
// the timeline by. Coarser views load bigger chunks.
func (p Period) ChunkSize() int {
	switch p {
	case PeriodDay:
		return 48 // 2 days
	case PeriodWeek:
		return 28 // 4 weeks
	case PeriodMonth:
		return 66 // ~2 months
	case PeriodSixMonth:
		return 52 // 1 year
	case PeriodYear:
		return 24 // 2 years
	default:
		return 28
	}
}

// InitialOldest returns the default back edge of the loaded range when a
// period is first selected.
func (p Period) InitialOldest(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -7)
	case PeriodWeek:
		return now.AddDate(0, 0, -8*7)
	case PeriodMonth:
		return now.AddDate(0, -6, 0)
	case PeriodSixMonth:
		return now.AddDate(0, -18, 0)
	case PeriodYear:
		return now.AddDate(-3, 0, 0)
	default:
		return now.AddDate(0, 0, -8*7)
	}
}

// StorePeriodType maps the view to the aggregate cache period_type to query.
func (p Period) StorePeriodType() string {
	switch p {
	case PeriodDay:
		return "hourly"
	case PeriodWeek, PeriodMonth:
		return "daily"
	case PeriodSixMonth:
		return "weekly"
	case PeriodYear:
		return "monthly"
	default:
		return "daily"
	}
}

// CalculationType selects SUM for daily totals and AVG for hourly entries and
// rollup-of-rollup views.
func (p Period) CalculationType() string {
	switch p {
	case PeriodWeek, PeriodMonth:
		return "SUM"
	default:
		return "AVG"
	}
}

// DisplayDivisor normalizes a stored rollup value to a daily-equivalent
// before charting: weekly rollups carry per-week totals, monthly rollups
// per-month totals.
func (p Period) DisplayDivisor() float64 {
	switch p {
	case PeriodSixMonth:
		return 7
	case PeriodYear:
		return 30
	default:
		return 1
	}
}

// AxisLabelStride is how many buckets apart axis labels are drawn.
func (p Period) AxisLabelStride() int {
	switch p {
	case PeriodDay:
		return 6 // 12 AM, 6 AM, 12 PM, 6 PM
	case PeriodMonth:
		return 7 // weekly labels
	default:
		return 1
	}
}
