package sleep

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"
)

// EntrySource serves raw sleep event rows. RowsBetween returns the rows whose
// entry date falls inside [from, to]; RowsByInstance returns every row of the
// given event instances, so a group straddling a range boundary can be
// completed before reconstruction.
type EntrySource interface {
	SleepRowsBetween(ctx context.Context, from, to time.Time) ([]EventRow, error)
	SleepRowsByInstance(ctx context.Context, instanceIDs []string) ([]EventRow, error)
}

// Feed owns the reconstructed session list for the active view. Fetches for
// overlapping ranges replace sessions wholesale by date, never merge segment
// lists in place.
type Feed struct {
	source EntrySource
	lookup *ReferenceLookup
	loc    *time.Location

	mu       sync.Mutex
	sessions []Session
	loading  bool

	onUpdate func()
}

func NewFeed(source EntrySource, lookup *ReferenceLookup) *Feed {
	return &Feed{
		source: source,
		lookup: lookup,
		loc:    time.Local,
	}
}

// OnUpdate registers a callback invoked after the session list changes.
func (f *Feed) OnUpdate(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

// Sessions returns a copy of the current session list, oldest date first.
func (f *Feed) Sessions() []Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Session, len(f.sessions))
	copy(out, f.sessions)
	return out
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Reset drops all loaded sessions.
func (f *Feed) Reset() {
	f.mu.Lock()
	f.sessions = nil
	f.mu.Unlock()
}

// LoadRange fetches, reconstructs and merges the sessions for [from, to].
// Concurrent calls are suppressed by the loading flag. A failed fetch leaves
// the session list untouched and clears the flag so a retry can trigger.
func (f *Feed) LoadRange(ctx context.Context, from, to time.Time) error {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	sessions, err := f.fetch(ctx, from, to)

	f.mu.Lock()
	f.loading = false
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.sessions = MergeSessions(f.sessions, sessions)
	fn := f.onUpdate
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (f *Feed) fetch(ctx context.Context, from, to time.Time) ([]Session, error) {
	if !f.lookup.Loaded() {
		if err := f.lookup.Load(ctx); err != nil {
			return nil, err
		}
	}

	// Two-phase fetch: the date-range query finds which event instances touch
	// the range, the instance query completes their groups.
	inRange, err := f.source.SleepRowsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("sleep: fetching rows %s..%s: %w",
			from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	if len(inRange) == 0 {
		return nil, nil
	}

	ids := lo.Uniq(lo.Map(inRange, func(r EventRow, _ int) string { return r.EventInstanceID }))
	rows, err := f.source.SleepRowsByInstance(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sleep: completing %d event groups: %w", len(ids), err)
	}

	periodRows := lo.Filter(rows, func(r EventRow, _ int) bool {
		return r.FieldID == FieldPeriodStart || r.FieldID == FieldPeriodEnd || r.FieldID == FieldPeriodType
	})
	manualRows := lo.Filter(rows, func(r EventRow, _ int) bool {
		return r.FieldID == FieldBedtime || r.FieldID == FieldWaketime || r.FieldID == FieldDuration
	})

	sessions, skipped := ReconstructSessions(periodRows, f.lookup.Resolve, f.loc)
	entries, skippedManual := ManualEntries(manualRows, f.loc)
	for _, s := range append(skipped, skippedManual...) {
		log.Printf("sleep: dropping event group %s: %s", s.EventInstanceID, s.Reason)
	}
	return AttachManualEntries(sessions, entries), nil
}
