package sleep

import (
	"log"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Field ids of the event-value rows that describe sleep periods. A tracked
// sleep period is a start/end/type triple sharing one event instance id;
// manual entries use the bedtime/waketime/duration outputs instead.
const (
	FieldPeriodStart = "DEF_SLEEP_PERIOD_START"
	FieldPeriodEnd   = "DEF_SLEEP_PERIOD_END"
	FieldPeriodType  = "DEF_SLEEP_PERIOD_TYPE"

	FieldBedtime  = "OUTPUT_SLEEP_BEDTIME"
	FieldWaketime = "OUTPUT_SLEEP_WAKETIME"
	FieldDuration = "OUTPUT_SLEEP_DURATION"
)

// dayShift offsets a session's representative time before deriving its
// calendar date, so a period ending before 06:00 still counts as last night.
const dayShift = 6 * time.Hour

// EventRow is one raw field-value row from the store. Start, end, bedtime and
// waketime rows carry an RFC 3339 instant in Value; type rows carry a
// reference id; duration rows carry minutes.
type EventRow struct {
	EventInstanceID string
	FieldID         string
	Value           string
}

// Segment is one contiguous run of a single stage.
type Segment struct {
	Stage Stage
	Start time.Time
	End   time.Time
}

func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// ManualEntry is a user-entered sleep period with no stage detail.
type ManualEntry struct {
	Bedtime  time.Time
	Waketime time.Time
}

// Session is one night of sleep attributed to a single calendar date. Date is
// "2006-01-02" in the location the session was reconstructed for. Segments is
// empty for manual-only sessions.
type Session struct {
	Date     string
	Start    time.Time
	End      time.Time
	Segments []Segment
	Manual   *ManualEntry
}

// SkippedGroup records one correlation group that could not be turned into a
// segment, with the reason it was dropped.
type SkippedGroup struct {
	EventInstanceID string
	Reason          string
}

// sessionDate applies the day-shift rule: the calendar date of t-6h in loc.
// 05:30 lands on the previous date, 19:00 on its own date, and exactly 06:00
// on its own date.
func sessionDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Add(-dayShift).Format("2006-01-02")
}

// ReconstructSessions groups raw event rows into stage segments and buckets
// the segments into date-keyed sessions. resolve maps a type row's reference
// id to a stage. Groups missing a role, carrying a duplicated role, holding
// an unparsable instant, or referencing an unknown stage are dropped and
// reported, never defaulted.
func ReconstructSessions(rows []EventRow, resolve func(refID string) (Stage, bool), loc *time.Location) ([]Session, []SkippedGroup) {
	groups := lo.GroupBy(rows, func(r EventRow) string { return r.EventInstanceID })

	ids := lo.Keys(groups)
	sort.Strings(ids)

	var segments []Segment
	var skipped []SkippedGroup
	for _, id := range ids {
		seg, reason := buildSegment(groups[id], resolve)
		if reason != "" {
			skipped = append(skipped, SkippedGroup{EventInstanceID: id, Reason: reason})
			continue
		}
		segments = append(segments, seg)
	}

	byDate := lo.GroupBy(segments, func(s Segment) string { return sessionDate(s.End, loc) })

	sessions := make([]Session, 0, len(byDate))
	for date, segs := range byDate {
		sort.Slice(segs, func(i, j int) bool { return segs[i].Start.Before(segs[j].Start) })
		sess := Session{Date: date, Start: segs[0].Start, End: segs[0].End, Segments: segs}
		for _, s := range segs[1:] {
			if s.Start.Before(sess.Start) {
				sess.Start = s.Start
			}
			if s.End.After(sess.End) {
				sess.End = s.End
			}
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date < sessions[j].Date })
	return sessions, skipped
}

func buildSegment(group []EventRow, resolve func(string) (Stage, bool)) (Segment, string) {
	var start, end, typ *EventRow
	for i := range group {
		r := &group[i]
		switch r.FieldID {
		case FieldPeriodStart:
			if start != nil {
				return Segment{}, "duplicate start row"
			}
			start = r
		case FieldPeriodEnd:
			if end != nil {
				return Segment{}, "duplicate end row"
			}
			end = r
		case FieldPeriodType:
			if typ != nil {
				return Segment{}, "duplicate type row"
			}
			typ = r
		default:
			return Segment{}, "unexpected field " + r.FieldID
		}
	}
	switch {
	case start == nil:
		return Segment{}, "missing start row"
	case end == nil:
		return Segment{}, "missing end row"
	case typ == nil:
		return Segment{}, "missing type row"
	}

	startAt, err := time.Parse(time.RFC3339, start.Value)
	if err != nil {
		return Segment{}, "unparsable start instant"
	}
	endAt, err := time.Parse(time.RFC3339, end.Value)
	if err != nil {
		return Segment{}, "unparsable end instant"
	}
	if !endAt.After(startAt) {
		return Segment{}, "end not after start"
	}
	stage, ok := resolve(typ.Value)
	if !ok {
		return Segment{}, "unknown stage reference " + typ.Value
	}
	return Segment{Stage: stage, Start: startAt, End: endAt}, ""
}

// ManualEntries builds manual entries from bedtime/waketime rows grouped by
// event instance id. Duration rows are tolerated but the entry is derived
// from the two instants. Incomplete groups are dropped and reported.
func ManualEntries(rows []EventRow, loc *time.Location) (map[string]ManualEntry, []SkippedGroup) {
	groups := lo.GroupBy(rows, func(r EventRow) string { return r.EventInstanceID })

	ids := lo.Keys(groups)
	sort.Strings(ids)

	entries := make(map[string]ManualEntry)
	var skipped []SkippedGroup
	for _, id := range ids {
		var bed, wake time.Time
		bad := ""
		for _, r := range groups[id] {
			switch r.FieldID {
			case FieldBedtime:
				t, err := time.Parse(time.RFC3339, r.Value)
				if err != nil {
					bad = "unparsable bedtime"
				}
				bed = t
			case FieldWaketime:
				t, err := time.Parse(time.RFC3339, r.Value)
				if err != nil {
					bad = "unparsable waketime"
				}
				wake = t
			case FieldDuration:
				// Redundant with waketime-bedtime.
			default:
				bad = "unexpected field " + r.FieldID
			}
		}
		switch {
		case bad != "":
		case bed.IsZero():
			bad = "missing bedtime row"
		case wake.IsZero():
			bad = "missing waketime row"
		case !wake.After(bed):
			bad = "waketime not after bedtime"
		}
		if bad != "" {
			skipped = append(skipped, SkippedGroup{EventInstanceID: id, Reason: bad})
			continue
		}
		entries[sessionDate(wake, loc)] = ManualEntry{Bedtime: bed, Waketime: wake}
	}
	return entries, skipped
}

// AttachManualEntries sets the manual entry on the session sharing its date,
// or synthesizes a segment-less session when no tracked session exists for
// that date. An entry overlapping the tracked span of its session is dropped:
// the tracked segments already cover that period. Returns the sessions sorted
// by date.
func AttachManualEntries(sessions []Session, entries map[string]ManualEntry) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)

	claimed := make(map[string]bool, len(entries))
	for i := range out {
		e, ok := entries[out[i].Date]
		if !ok {
			continue
		}
		claimed[out[i].Date] = true
		if rangesOverlap(e.Bedtime, e.Waketime, out[i].Start, out[i].End) {
			log.Printf("sleep: manual entry on %s overlaps tracked segments, keeping tracked data", out[i].Date)
			continue
		}
		out[i].Manual = &e
	}
	for date, e := range entries {
		if claimed[date] {
			continue
		}
		e := e
		out = append(out, Session{Date: date, Start: e.Bedtime, End: e.Waketime, Manual: &e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func rangesOverlap(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

// MergeSessions replaces existing sessions with freshly fetched ones by date:
// on a date collision the fetched session wins wholesale, segments are never
// merged in place. Result is sorted by date.
func MergeSessions(existing, fetched []Session) []Session {
	byDate := make(map[string]Session, len(existing)+len(fetched))
	for _, s := range existing {
		byDate[s.Date] = s
	}
	for _, s := range fetched {
		byDate[s.Date] = s
	}

	out := lo.Values(byDate)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
