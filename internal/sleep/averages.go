package sleep

import (
	"time"

	"github.com/samber/lo"
)

// Durations is the per-stage time of one session plus the derived totals.
// Asleep is deep+core+rem+unspecified; InBed adds awake time, or the explicit
// in-bed segment total when the source tracked one and it is longer.
type Durations struct {
	ByStage map[Stage]time.Duration
	Asleep  time.Duration
	InBed   time.Duration
}

// SessionDurations sums segment time per stage. Manual-only sessions report
// the bedtime-to-waketime span as both totals.
func SessionDurations(s Session) Durations {
	d := Durations{ByStage: make(map[Stage]time.Duration)}
	for _, seg := range s.Segments {
		d.ByStage[seg.Stage] += seg.Duration()
	}
	d.Asleep = d.ByStage[StageDeep] + d.ByStage[StageCore] + d.ByStage[StageREM] + d.ByStage[StageUnspecified]
	d.InBed = d.Asleep + d.ByStage[StageAwake]
	if explicit := d.ByStage[StageInBed]; explicit > d.InBed {
		d.InBed = explicit
	}

	if len(s.Segments) == 0 && s.Manual != nil {
		span := s.Manual.Waketime.Sub(s.Manual.Bedtime)
		d.Asleep = span
		d.InBed = span
	}
	return d
}

// WeeklyAverages returns the mean asleep duration per ISO week, keyed by the
// week's Monday as "2006-01-02". Only dates with a session contribute to a
// week's denominator; zero-duration sessions are treated as no data.
func WeeklyAverages(sessions []Session) map[string]time.Duration {
	return averagesBy(sessions, func(day time.Time) string {
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		return monday.Format("2006-01-02")
	})
}

// MonthlyAverages returns the mean asleep duration per calendar month, keyed
// "2006-01".
func MonthlyAverages(sessions []Session) map[string]time.Duration {
	return averagesBy(sessions, func(day time.Time) string {
		return day.Format("2006-01")
	})
}

func averagesBy(sessions []Session, key func(time.Time) string) map[string]time.Duration {
	type sample struct {
		key    string
		asleep time.Duration
	}

	var samples []sample
	for _, s := range sessions {
		day, err := time.Parse("2006-01-02", s.Date)
		if err != nil {
			continue
		}
		asleep := SessionDurations(s).Asleep
		if asleep <= 0 {
			continue
		}
		samples = append(samples, sample{key: key(day), asleep: asleep})
	}

	grouped := lo.GroupBy(samples, func(s sample) string { return s.key })
	out := make(map[string]time.Duration, len(grouped))
	for k, group := range grouped {
		var total time.Duration
		for _, s := range group {
			total += s.asleep
		}
		out[k] = total / time.Duration(len(group))
	}
	return out
}
