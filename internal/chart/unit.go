package chart

import "time"

// Unit is a calendar stepping unit for dense timelines.
type Unit int

const (
	UnitHour Unit = iota
	UnitDay
	UnitWeek
	UnitMonth
)

func (u Unit) String() string {
	switch u {
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	case UnitWeek:
		return "week"
	case UnitMonth:
		return "month"
	default:
		return "unknown"
	}
}

// Truncate returns the canonical bucket start containing t: top of the hour,
// midnight, Monday midnight for weeks, first of the month for months.
func (u Unit) Truncate(t time.Time) time.Time {
	switch u {
	case UnitHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case UnitDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case UnitWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case UnitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// Add steps t by n units, using calendar arithmetic so month lengths and DST
// transitions are respected.
func (u Unit) Add(t time.Time, n int) time.Time {
	switch u {
	case UnitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case UnitMonth:
		return t.AddDate(0, n, 0)
	default:
		return t
	}
}

// Between returns the number of whole units from a to b (negative when b
// precedes a). Both ends are truncated first so sub-unit offsets don't skew
// the count.
func (u Unit) Between(a, b time.Time) int {
	a, b = u.Truncate(a), u.Truncate(b)
	switch u {
	case UnitHour:
		return int(b.Sub(a) / time.Hour)
	case UnitDay:
		return daysBetween(a, b)
	case UnitWeek:
		return daysBetween(a, b) / 7
	case UnitMonth:
		return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	default:
		return 0
	}
}

func daysBetween(a, b time.Time) int {
	// Round to survive DST days that are 23 or 25 hours long.
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}
