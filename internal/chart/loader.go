package chart

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// edgeThreshold is how close (in granularity units) the scroll position
	// may get to a loaded edge before a load fires in that direction.
	edgeThreshold = 5

	// scrollDebounce rate-limits edge detection while the chart is being
	// dragged.
	scrollDebounce = 200 * time.Millisecond

	// historyFloorYears caps how far back the timeline may ever extend.
	historyFloorYears = 10

	// futureHeadroomMonths is how far past "now" the timeline extends so the
	// user can scroll slightly ahead.
	futureHeadroomMonths = 1
)

// Fetcher loads aggregate rows for one metric over a period-start range.
type Fetcher interface {
	FetchAggregates(ctx context.Context, q AggregateQuery) ([]AggregateRow, error)
}

// LoadedRange is the span of bucket starts currently held by a Loader. It
// only grows outward between resets: Oldest never increases and Newest never
// decreases.
type LoadedRange struct {
	Oldest time.Time
	Newest time.Time
}

// Loader owns a dense timeline for one metric and extends it incrementally
// as the visible window approaches either loaded edge. At most one fetch per
// direction is in flight at a time; the two directions touch disjoint ends
// of the timeline and may interleave. A period change invalidates in-flight
// work: stale results are discarded by generation check rather than by
// forced cancellation.
type Loader struct {
	fetcher  Fetcher
	metricID string
	loc      *time.Location
	now      func() time.Time

	mu           sync.Mutex
	period       Period
	generation   int
	data         []Bucket
	rng          LoadedRange
	loadingOlder bool
	loadingNewer bool
	lastScroll   time.Time

	onUpdate func()
}

func NewLoader(fetcher Fetcher, metricID string) *Loader {
	return &Loader{
		fetcher:  fetcher,
		metricID: metricID,
		loc:      time.Local,
		now:      time.Now,
	}
}

// OnUpdate registers a callback invoked after the timeline changes.
func (l *Loader) OnUpdate(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUpdate = fn
}

func (l *Loader) Period() Period {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.period
}

func (l *Loader) Range() LoadedRange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng
}

// Data returns a copy of the current timeline, oldest bucket first.
func (l *Loader) Data() []Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Bucket, len(l.data))
	copy(out, l.data)
	return out
}

func (l *Loader) Loading() (older, newer bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadingOlder, l.loadingNewer
}

// Initialize resets the loader to a period's default span and performs the
// initial fetch. Any fetch in flight for the previous period becomes stale
// and its result is dropped on completion.
func (l *Loader) Initialize(ctx context.Context, p Period) error {
	unit := p.Unit()

	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.period = p
	now := l.now()
	l.rng = LoadedRange{
		Oldest: unit.Truncate(p.InitialOldest(now)),
		Newest: unit.Truncate(now.AddDate(0, futureHeadroomMonths, 0)),
	}
	l.data = nil
	l.loadingOlder = false
	l.loadingNewer = false
	rng := l.rng
	l.mu.Unlock()

	timeline, err := l.fetchTimeline(ctx, p, rng.Oldest, rng.Newest)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		return nil
	}
	l.data = timeline
	fn := l.onUpdate
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// OnScrollPositionChanged reports the left edge of the visible window and
// triggers a directional load when the position drifts within the edge
// threshold. Calls are debounced so per-pixel scroll updates don't hammer
// edge detection.
func (l *Loader) OnScrollPositionChanged(ctx context.Context, position time.Time) error {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastScroll) < scrollDebounce {
		l.mu.Unlock()
		return nil
	}
	l.lastScroll = now

	p := l.period
	rng := l.rng
	loadOlder := !l.loadingOlder && p.Unit().Between(rng.Oldest, position) < edgeThreshold
	loadNewer := !l.loadingNewer && p.Unit().Between(position.Add(p.VisibleWindow()), rng.Newest) < edgeThreshold
	l.mu.Unlock()

	if loadOlder {
		if err := l.LoadOlder(ctx); err != nil {
			return err
		}
	}
	if loadNewer {
		if err := l.LoadNewer(ctx); err != nil {
			return err
		}
	}
	return nil
}

// LoadOlder extends the loaded range backward by one chunk, bounded by the
// historical floor. A failed fetch leaves the range and data untouched and
// clears the in-flight flag so further scrolling can retry.
func (l *Loader) LoadOlder(ctx context.Context) error {
	l.mu.Lock()
	if l.loadingOlder {
		l.mu.Unlock()
		return nil
	}
	p := l.period
	unit := p.Unit()
	floor := unit.Truncate(l.now().AddDate(-historyFloorYears, 0, 0))
	if !l.rng.Oldest.After(floor) {
		l.mu.Unlock()
		log.Printf("chart: loader reached %d-year floor, not loading older", historyFloorYears)
		return nil
	}
	l.loadingOlder = true
	gen := l.generation
	oldest := l.rng.Oldest
	l.mu.Unlock()

	chunkStart := unit.Add(oldest, -p.ChunkSize())
	if chunkStart.Before(floor) {
		chunkStart = floor
	}
	chunkEnd := unit.Add(oldest, -1)

	timeline, err := l.fetchTimeline(ctx, p, chunkStart, chunkEnd)

	l.mu.Lock()
	l.loadingOlder = false
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if gen != l.generation {
		l.mu.Unlock()
		return nil
	}
	l.data = append(timeline, l.data...)
	l.rng.Oldest = chunkStart
	fn := l.onUpdate
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// LoadNewer extends the loaded range forward by one chunk, bounded by the
// future ceiling relative to fetch time.
func (l *Loader) LoadNewer(ctx context.Context) error {
	l.mu.Lock()
	if l.loadingNewer {
		l.mu.Unlock()
		return nil
	}
	p := l.period
	unit := p.Unit()
	ceiling := unit.Truncate(l.now().AddDate(0, futureHeadroomMonths, 0))
	if !l.rng.Newest.Before(ceiling) {
		l.mu.Unlock()
		return nil
	}
	l.loadingNewer = true
	gen := l.generation
	newest := l.rng.Newest
	l.mu.Unlock()

	chunkEnd := unit.Add(newest, p.ChunkSize())
	if chunkEnd.After(ceiling) {
		chunkEnd = ceiling
	}
	chunkStart := unit.Add(newest, 1)

	timeline, err := l.fetchTimeline(ctx, p, chunkStart, chunkEnd)

	l.mu.Lock()
	l.loadingNewer = false
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if gen != l.generation {
		l.mu.Unlock()
		return nil
	}
	l.data = append(l.data, timeline...)
	l.rng.Newest = chunkEnd
	fn := l.onUpdate
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (l *Loader) fetchTimeline(ctx context.Context, p Period, start, end time.Time) ([]Bucket, error) {
	rows, err := l.fetcher.FetchAggregates(ctx, AggregateQuery{
		MetricID:        l.metricID,
		PeriodType:      p.StorePeriodType(),
		CalculationType: p.CalculationType(),
		// Pad one unit either side so UTC-stored period starts near the
		// boundary still match after timezone normalization.
		From: p.Unit().Add(start, -1),
		To:   p.Unit().Add(end, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("chart: fetching %s %s aggregates: %w", l.metricID, p.StorePeriodType(), err)
	}

	for i := range rows {
		rows[i].PeriodStart = NormalizePeriodStart(rows[i].PeriodStart, p, l.loc)
	}
	return Overlay(BuildTimeline(start, end, p), rows, p), nil
}
