package chart

import (
	"time"

	"github.com/samber/lo"
)

// Aggregate computes the headline statistic for the buckets visible from
// visibleStart. Zero-valued buckets mean "no data" (zero is never a valid
// observation for these metrics) and are excluded from both sums and
// denominators.
//
// Day view sums hourly values into a daily total. Week and month views
// average the daily totals across days with data. Six-month and year views
// average the weekly/monthly rollup values, normalized to daily equivalents
// by the period's display divisor; prefer AggregateDailySums when daily SUM
// rows for the window are available, since averaging rollups double-weights
// weeks with fewer logged days.
func Aggregate(timeline []Bucket, visibleStart time.Time, p Period) float64 {
	visibleEnd := visibleStart.Add(p.VisibleWindow())
	visible := lo.Filter(timeline, func(b Bucket, _ int) bool {
		return b.Value > 0 && !b.Date.Before(visibleStart) && !b.Date.After(visibleEnd)
	})
	if len(visible) == 0 {
		return 0
	}

	sum := lo.SumBy(visible, func(b Bucket) float64 { return b.Value })
	if p == PeriodDay {
		return sum
	}
	return sum / float64(len(visible)) / p.DisplayDivisor()
}

// AggregateDailySums is the precise daily-average path for six-month and
// year views: sum of the window's daily SUM values over the count of days
// with data.
func AggregateDailySums(dailySums []float64) float64 {
	valid := lo.Filter(dailySums, func(v float64, _ int) bool { return v > 0 })
	if len(valid) == 0 {
		return 0
	}
	return lo.Sum(valid) / float64(len(valid))
}
