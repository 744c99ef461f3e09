package chart

import "time"

// Bucket is one discrete slot in a dense chart timeline. Within a timeline,
// bucket dates are strictly increasing by exactly one granularity unit with
// no gaps.
type Bucket struct {
	Date  time.Time
	Value float64
}

// AggregateRow is one row from the remote aggregate cache. Rows are produced
// externally and read-only here.
type AggregateRow struct {
	EntityID        string
	PeriodType      string
	CalculationType string
	PeriodStart     time.Time
	Value           float64
}

// AggregateQuery selects aggregate rows by metric, grain, and period range.
type AggregateQuery struct {
	MetricID        string
	PeriodType      string
	CalculationType string
	From            time.Time
	To              time.Time
}

// BuildTimeline generates a dense, zero-valued bucket sequence covering
// [start, end] at the period's granularity. Yearly buckets are pinned to the
// 15th of their month so month-spanning bars render centered on the axis.
func BuildTimeline(start, end time.Time, p Period) []Bucket {
	unit := p.Unit()
	var buckets []Bucket
	for cur := unit.Truncate(start); !cur.After(end); cur = unit.Add(cur, 1) {
		buckets = append(buckets, Bucket{Date: bucketDate(cur, p)})
	}
	return buckets
}

func bucketDate(t time.Time, p Period) time.Time {
	if p == PeriodYear {
		return time.Date(t.Year(), t.Month(), 15, 0, 0, 0, 0, t.Location())
	}
	return t
}

// Overlay writes each row's value onto the timeline bucket whose
// granularity-truncated date matches the row's truncated period start. Exact
// instant equality is never used: the store's bucket start and the chart's
// may differ in sub-unit precision across timezones. Rows matching no bucket
// fall outside the requested range and are dropped. The input timeline is not
// mutated; applying the same rows twice yields the same result.
func Overlay(timeline []Bucket, rows []AggregateRow, p Period) []Bucket {
	out := make([]Bucket, len(timeline))
	copy(out, timeline)

	unit := p.Unit()
	index := make(map[int64]int, len(out))
	for i, b := range out {
		index[unit.Truncate(b.Date).Unix()] = i
	}

	for _, row := range rows {
		if i, ok := index[unit.Truncate(row.PeriodStart.In(timelineLocation(out))).Unix()]; ok {
			out[i].Value = row.Value
		}
	}
	return out
}

func timelineLocation(timeline []Bucket) *time.Location {
	if len(timeline) == 0 {
		return time.Local
	}
	return timeline[0].Date.Location()
}

// NormalizePeriodStart converts a stored period start to the chart's
// location. Hourly rows name an instant and only change representation.
// Daily and coarser rows name a calendar date stored at UTC midnight, so the
// UTC date components are rebuilt in loc rather than shifting the instant,
// which would slide the row into the previous local day west of Greenwich.
func NormalizePeriodStart(t time.Time, p Period, loc *time.Location) time.Time {
	if p.Unit() == UnitHour {
		return t.In(loc)
	}
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, loc)
}
