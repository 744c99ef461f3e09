package sleep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
)

type fakeSource struct {
	rows        []EventRow
	rangeCalls  int
	byInstance  int
	failBetween bool
}

func (f *fakeSource) SleepRowsBetween(_ context.Context, from, to time.Time) ([]EventRow, error) {
	f.rangeCalls++
	if f.failBetween {
		return nil, errors.New("store unreachable")
	}
	// The fake treats every row as in range; range completion is exercised by
	// SleepRowsByInstance returning the full groups.
	return f.rows, nil
}

func (f *fakeSource) SleepRowsByInstance(_ context.Context, ids []string) ([]EventRow, error) {
	f.byInstance++
	return lo.Filter(f.rows, func(r EventRow, _ int) bool {
		return lo.Contains(ids, r.EventInstanceID)
	}), nil
}

type fakeRefLoader struct {
	refs  map[string]string
	calls int
}

func (f *fakeRefLoader) StageReferences(context.Context) (map[string]string, error) {
	f.calls++
	return f.refs, nil
}

func testLookup() (*ReferenceLookup, *fakeRefLoader) {
	loader := &fakeRefLoader{refs: map[string]string{
		"REF_DEEP": "deep",
		"REF_CORE": "core",
		"REF_NAP":  "nap", // unknown key, skipped on load
	}}
	return NewReferenceLookup(loader), loader
}

func TestReferenceLookupLifecycle(t *testing.T) {
	lookup, loader := testLookup()
	if lookup.Loaded() {
		t.Fatal("lookup loaded before Load")
	}
	if _, ok := lookup.Resolve("REF_DEEP"); ok {
		t.Fatal("resolved before Load")
	}

	if err := lookup.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if stage, ok := lookup.Resolve("REF_DEEP"); !ok || stage != StageDeep {
		t.Errorf("REF_DEEP -> %v %v", stage, ok)
	}
	if _, ok := lookup.Resolve("REF_NAP"); ok {
		t.Error("reference with unknown key resolved")
	}

	lookup.Invalidate()
	if _, ok := lookup.Resolve("REF_DEEP"); ok {
		t.Error("resolved after Invalidate")
	}
	if err := lookup.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loader.calls != 2 {
		t.Errorf("loader called %d times, want 2", loader.calls)
	}
}

func TestFeedLoadRange(t *testing.T) {
	src := &fakeSource{rows: append(
		triple("A", "2024-03-04T23:00:00Z", "2024-03-05T05:00:00Z", "REF_DEEP"),
		EventRow{EventInstanceID: "M1", FieldID: FieldBedtime, Value: "2024-03-05T22:00:00Z"},
		EventRow{EventInstanceID: "M1", FieldID: FieldWaketime, Value: "2024-03-06T05:30:00Z"},
	)}
	lookup, loader := testLookup()
	feed := NewFeed(src, lookup)
	feed.loc = time.UTC

	updates := 0
	feed.OnUpdate(func() { updates++ })

	from := mustInstant(t, "2024-03-01T00:00:00Z")
	to := mustInstant(t, "2024-03-08T00:00:00Z")
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}

	sessions := feed.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].Date != "2024-03-04" || len(sessions[0].Segments) != 1 {
		t.Errorf("tracked session = %+v", sessions[0])
	}
	if sessions[1].Date != "2024-03-05" || sessions[1].Manual == nil {
		t.Errorf("manual session = %+v", sessions[1])
	}
	if updates != 1 {
		t.Errorf("update callbacks = %d, want 1", updates)
	}
	if loader.calls != 1 {
		t.Errorf("reference table loaded %d times, want 1 (lazy, cached)", loader.calls)
	}
	if src.byInstance != 1 {
		t.Errorf("instance completion queries = %d, want 1", src.byInstance)
	}
}

func TestFeedFailedFetchKeepsSessions(t *testing.T) {
	src := &fakeSource{rows: triple("A", "2024-03-04T23:00:00Z", "2024-03-05T05:00:00Z", "REF_DEEP")}
	lookup, _ := testLookup()
	feed := NewFeed(src, lookup)
	feed.loc = time.UTC

	from := mustInstant(t, "2024-03-01T00:00:00Z")
	to := mustInstant(t, "2024-03-08T00:00:00Z")
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}

	src.failBetween = true
	if err := feed.LoadRange(context.Background(), from, to); err == nil {
		t.Fatal("expected error from failed fetch")
	}
	if len(feed.Sessions()) != 1 {
		t.Error("failed fetch changed the session list")
	}
	if feed.Loading() {
		t.Error("loading flag stuck after failure")
	}

	src.failBetween = false
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestFeedOverlappingFetchReplacesByDate(t *testing.T) {
	src := &fakeSource{rows: triple("A", "2024-03-04T23:00:00Z", "2024-03-05T05:00:00Z", "REF_CORE")}
	lookup, _ := testLookup()
	feed := NewFeed(src, lookup)
	feed.loc = time.UTC

	from := mustInstant(t, "2024-03-01T00:00:00Z")
	to := mustInstant(t, "2024-03-08T00:00:00Z")
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}

	// A refetch sees the same night with a second segment; the session is
	// replaced wholesale, not merged.
	src.rows = append(
		triple("A", "2024-03-04T23:00:00Z", "2024-03-05T02:00:00Z", "REF_CORE"),
		triple("B", "2024-03-05T02:00:00Z", "2024-03-05T05:00:00Z", "REF_DEEP")...)
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}

	sessions := feed.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if len(sessions[0].Segments) != 2 {
		t.Errorf("refetched session has %d segments, want 2", len(sessions[0].Segments))
	}
}

func TestFeedEmptyRangeProducesNoSessions(t *testing.T) {
	src := &fakeSource{}
	lookup, _ := testLookup()
	feed := NewFeed(src, lookup)
	feed.loc = time.UTC

	from := mustInstant(t, "2024-03-01T00:00:00Z")
	to := mustInstant(t, "2024-03-08T00:00:00Z")
	if err := feed.LoadRange(context.Background(), from, to); err != nil {
		t.Fatal(err)
	}
	if got := feed.Sessions(); len(got) != 0 {
		t.Errorf("sessions = %v, want none (absence, not placeholders)", got)
	}
}
