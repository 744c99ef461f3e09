package sleep

import (
	"testing"
	"time"
)

var testStages = map[string]Stage{
	"REF_DEEP":   StageDeep,
	"REF_CORE":   StageCore,
	"REF_REM":    StageREM,
	"REF_AWAKE":  StageAwake,
	"REF_INBED":  StageInBed,
	"REF_ASLEEP": StageUnspecified,
}

func resolveTest(refID string) (Stage, bool) {
	s, ok := testStages[refID]
	return s, ok
}

func triple(id, start, end, ref string) []EventRow {
	return []EventRow{
		{EventInstanceID: id, FieldID: FieldPeriodStart, Value: start},
		{EventInstanceID: id, FieldID: FieldPeriodEnd, Value: end},
		{EventInstanceID: id, FieldID: FieldPeriodType, Value: ref},
	}
}

func TestReconstructOvernightSegment(t *testing.T) {
	// The crux of the shift rule: a period running 23:00 to 07:00 the next
	// morning belongs to the session dated the morning it ends.
	rows := triple("X", "2024-03-04T23:00:00Z", "2024-03-05T07:00:00Z", "REF_DEEP")

	sessions, skipped := ReconstructSessions(rows, resolveTest, time.UTC)
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v", skipped)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Date != "2024-03-05" {
		t.Errorf("date = %s, want 2024-03-05", s.Date)
	}
	if len(s.Segments) != 1 || s.Segments[0].Stage != StageDeep {
		t.Fatalf("segments = %v", s.Segments)
	}
	if got := s.Segments[0].Duration(); got != 8*time.Hour {
		t.Errorf("duration = %v, want 8h", got)
	}
}

func TestSessionDateShiftBoundaries(t *testing.T) {
	tests := []struct {
		name string
		end  string
		want string
	}{
		{"early morning end counts as last night", "2024-03-05T05:30:00Z", "2024-03-04"},
		{"evening end counts as its own date", "2024-03-05T19:00:00Z", "2024-03-05"},
		{"exactly 06:00 counts as its own date", "2024-03-05T06:00:00Z", "2024-03-05"},
		{"just before 06:00 counts as last night", "2024-03-05T05:59:59Z", "2024-03-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, _ := time.Parse(time.RFC3339, tt.end)
			rows := triple("X", end.Add(-time.Hour).Format(time.RFC3339), tt.end, "REF_CORE")
			sessions, _ := ReconstructSessions(rows, resolveTest, time.UTC)
			if len(sessions) != 1 {
				t.Fatalf("got %d sessions, want 1", len(sessions))
			}
			if sessions[0].Date != tt.want {
				t.Errorf("date = %s, want %s", sessions[0].Date, tt.want)
			}
		})
	}
}

func TestReconstructDropsBadGroups(t *testing.T) {
	tests := []struct {
		name   string
		rows   []EventRow
		reason string
	}{
		{
			"missing type row",
			[]EventRow{
				{EventInstanceID: "X", FieldID: FieldPeriodStart, Value: "2024-03-04T23:00:00Z"},
				{EventInstanceID: "X", FieldID: FieldPeriodEnd, Value: "2024-03-05T07:00:00Z"},
			},
			"missing type row",
		},
		{
			"duplicate start row",
			append(triple("X", "2024-03-04T23:00:00Z", "2024-03-05T07:00:00Z", "REF_DEEP"),
				EventRow{EventInstanceID: "X", FieldID: FieldPeriodStart, Value: "2024-03-04T22:00:00Z"}),
			"duplicate start row",
		},
		{
			"unknown stage reference",
			triple("X", "2024-03-04T23:00:00Z", "2024-03-05T07:00:00Z", "REF_NAP"),
			"unknown stage reference REF_NAP",
		},
		{
			"unparsable start instant",
			triple("X", "yesterday", "2024-03-05T07:00:00Z", "REF_DEEP"),
			"unparsable start instant",
		},
		{
			"end not after start",
			triple("X", "2024-03-05T07:00:00Z", "2024-03-05T07:00:00Z", "REF_DEEP"),
			"end not after start",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, skipped := ReconstructSessions(tt.rows, resolveTest, time.UTC)
			if len(sessions) != 0 {
				t.Fatalf("bad group produced sessions: %v", sessions)
			}
			if len(skipped) != 1 {
				t.Fatalf("skipped = %v, want 1 entry", skipped)
			}
			if skipped[0].EventInstanceID != "X" || skipped[0].Reason != tt.reason {
				t.Errorf("skipped = %+v, want reason %q", skipped[0], tt.reason)
			}
		})
	}
}

func TestReconstructBadGroupDoesNotPoisonOthers(t *testing.T) {
	rows := triple("A", "2024-03-04T23:00:00Z", "2024-03-05T01:00:00Z", "REF_CORE")
	rows = append(rows, EventRow{EventInstanceID: "B", FieldID: FieldPeriodStart, Value: "2024-03-05T01:00:00Z"})
	rows = append(rows, triple("C", "2024-03-05T02:00:00Z", "2024-03-05T04:00:00Z", "REF_DEEP")...)

	sessions, skipped := ReconstructSessions(rows, resolveTest, time.UTC)
	if len(skipped) != 1 || skipped[0].EventInstanceID != "B" {
		t.Fatalf("skipped = %v, want only group B", skipped)
	}
	if len(sessions) != 1 || len(sessions[0].Segments) != 2 {
		t.Fatalf("sessions = %v, want one session with two segments", sessions)
	}
}

func TestSessionSpansMinStartMaxEnd(t *testing.T) {
	rows := triple("A", "2024-03-04T23:00:00Z", "2024-03-05T01:00:00Z", "REF_CORE")
	rows = append(rows, triple("B", "2024-03-05T01:00:00Z", "2024-03-05T03:00:00Z", "REF_DEEP")...)
	rows = append(rows, triple("C", "2024-03-05T03:00:00Z", "2024-03-05T05:30:00Z", "REF_REM")...)

	sessions, _ := ReconstructSessions(rows, resolveTest, time.UTC)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Start.Format(time.RFC3339) != "2024-03-04T23:00:00Z" {
		t.Errorf("start = %v", s.Start)
	}
	if s.End.Format(time.RFC3339) != "2024-03-05T05:30:00Z" {
		t.Errorf("end = %v", s.End)
	}
	for i := 1; i < len(s.Segments); i++ {
		if s.Segments[i].Start.Before(s.Segments[i-1].Start) {
			t.Error("segments not ordered by start time")
		}
	}
}

func TestReconstructWithoutStageBreakdown(t *testing.T) {
	// Sources without stage detail report only in-bed and unspecified-asleep
	// periods; that still makes a valid session.
	rows := triple("A", "2024-03-04T22:30:00Z", "2024-03-05T06:30:00Z", "REF_INBED")
	rows = append(rows, triple("B", "2024-03-04T23:00:00Z", "2024-03-05T06:00:00Z", "REF_ASLEEP")...)

	sessions, skipped := ReconstructSessions(rows, resolveTest, time.UTC)
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v", skipped)
	}
	if len(sessions) != 1 || len(sessions[0].Segments) != 2 {
		t.Fatalf("sessions = %v, want one session with two segments", sessions)
	}
}

func TestNoRowsNoSessions(t *testing.T) {
	sessions, skipped := ReconstructSessions(nil, resolveTest, time.UTC)
	if len(sessions) != 0 || len(skipped) != 0 {
		t.Errorf("empty input produced sessions=%v skipped=%v", sessions, skipped)
	}
}

func TestSessionDateUsesLocation(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 13:00 UTC is 06:00 in Denver (MST, March 5 is before the DST switch):
	// exactly on the boundary, so the session keeps its own local date.
	rows := triple("X", "2024-03-05T05:00:00Z", "2024-03-05T13:00:00Z", "REF_DEEP")
	sessions, _ := ReconstructSessions(rows, resolveTest, denver)
	if len(sessions) != 1 || sessions[0].Date != "2024-03-05" {
		t.Fatalf("sessions = %v, want one dated 2024-03-05", sessions)
	}
}

func TestManualEntries(t *testing.T) {
	rows := []EventRow{
		{EventInstanceID: "M1", FieldID: FieldBedtime, Value: "2024-03-04T22:00:00Z"},
		{EventInstanceID: "M1", FieldID: FieldWaketime, Value: "2024-03-05T05:30:00Z"},
		{EventInstanceID: "M1", FieldID: FieldDuration, Value: "450"},
		{EventInstanceID: "M2", FieldID: FieldBedtime, Value: "2024-03-05T23:00:00Z"},
	}

	entries, skipped := ManualEntries(rows, time.UTC)
	if len(skipped) != 1 || skipped[0].Reason != "missing waketime row" {
		t.Fatalf("skipped = %v", skipped)
	}
	// Waketime 05:30 shifts to the previous date, same rule as segments.
	e, ok := entries["2024-03-04"]
	if !ok {
		t.Fatalf("entries = %v, want key 2024-03-04", entries)
	}
	if e.Waketime.Sub(e.Bedtime) != 7*time.Hour+30*time.Minute {
		t.Errorf("span = %v", e.Waketime.Sub(e.Bedtime))
	}
}

func TestAttachManualEntries(t *testing.T) {
	sessions := []Session{{
		Date:     "2024-03-04",
		Start:    mustInstant(t, "2024-03-04T14:00:00Z"),
		End:      mustInstant(t, "2024-03-04T15:00:00Z"),
		Segments: []Segment{{Stage: StageDeep}},
	}}
	entries := map[string]ManualEntry{
		"2024-03-04": {mustInstant(t, "2024-03-03T22:00:00Z"), mustInstant(t, "2024-03-04T05:00:00Z")},
		"2024-03-06": {mustInstant(t, "2024-03-05T23:00:00Z"), mustInstant(t, "2024-03-06T07:00:00Z")},
	}

	out := AttachManualEntries(sessions, entries)
	if len(out) != 2 {
		t.Fatalf("got %d sessions, want 2", len(out))
	}
	if out[0].Date != "2024-03-04" || out[0].Manual == nil || len(out[0].Segments) != 1 {
		t.Errorf("tracked session did not keep segments and gain manual entry: %+v", out[0])
	}
	if out[1].Date != "2024-03-06" || out[1].Manual == nil || len(out[1].Segments) != 0 {
		t.Errorf("unmatched entry did not synthesize a manual-only session: %+v", out[1])
	}
	if sessions[0].Manual != nil {
		t.Error("input slice mutated")
	}
}

func TestAttachManualEntryOverlapKeepsTrackedData(t *testing.T) {
	sessions := []Session{{
		Date:     "2024-03-05",
		Start:    mustInstant(t, "2024-03-04T23:00:00Z"),
		End:      mustInstant(t, "2024-03-05T07:00:00Z"),
		Segments: []Segment{{Stage: StageDeep}},
	}}
	entries := map[string]ManualEntry{
		"2024-03-05": {mustInstant(t, "2024-03-04T22:30:00Z"), mustInstant(t, "2024-03-05T06:30:00Z")},
	}

	out := AttachManualEntries(sessions, entries)
	if len(out) != 1 {
		t.Fatalf("got %d sessions, want 1", len(out))
	}
	if out[0].Manual != nil {
		t.Error("overlapping manual entry attached instead of being dropped")
	}
}

func TestMergeSessionsFetchedWins(t *testing.T) {
	existing := []Session{
		{Date: "2024-03-04", Segments: []Segment{{Stage: StageCore}}},
		{Date: "2024-03-05", Segments: []Segment{{Stage: StageCore}}},
	}
	fetched := []Session{
		{Date: "2024-03-05", Segments: []Segment{{Stage: StageDeep}, {Stage: StageREM}}},
		{Date: "2024-03-06", Segments: []Segment{{Stage: StageDeep}}},
	}

	out := MergeSessions(existing, fetched)
	if len(out) != 3 {
		t.Fatalf("got %d sessions, want 3", len(out))
	}
	for i, want := range []string{"2024-03-04", "2024-03-05", "2024-03-06"} {
		if out[i].Date != want {
			t.Fatalf("out[%d].Date = %s, want %s", i, out[i].Date, want)
		}
	}
	if len(out[1].Segments) != 2 {
		t.Error("collision did not replace the existing session wholesale")
	}
}

func mustInstant(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}
