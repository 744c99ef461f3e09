package sync

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mlowicki/chartwell/internal/health"
	"github.com/mlowicki/chartwell/internal/sleep"
	"github.com/mlowicki/chartwell/internal/store"
)

// Inserter is the slice of the store the sync path writes through.
type Inserter interface {
	InsertSamples(ctx context.Context, samples []store.SampleRow) (store.InsertResult, error)
	SampleExists(ctx context.Context, externalID string) (bool, error)
}

// Result summarizes one sync run.
type Result struct {
	Fetched    int
	Filtered   int // already synced, dropped before the write
	Inserted   int
	Duplicates int // rejected by the store's unique constraint
}

// Syncer moves platform samples into the store: fetch, filter already-synced
// samples, write the rest.
type Syncer struct {
	source    health.SampleSource
	store     Inserter
	patientID string
	loc       *time.Location
}

func NewSyncer(source health.SampleSource, st Inserter, patientID string) *Syncer {
	return &Syncer{
		source:    source,
		store:     st,
		patientID: patientID,
		loc:       time.Local,
	}
}

// SyncQuantity syncs numeric samples of one type into a field.
func (s *Syncer) SyncQuantity(ctx context.Context, sampleType, fieldID string, from, to time.Time) (Result, error) {
	samples, err := s.source.Samples(ctx, sampleType, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("sync: fetching %s samples: %w", sampleType, err)
	}

	fresh, err := FilterUnsynced(ctx, samples, s.store.SampleExists)
	if err != nil {
		return Result{}, err
	}

	rows := make([]store.SampleRow, 0, len(fresh))
	for _, sample := range fresh {
		rows = append(rows, store.SampleRow{
			PatientID:      s.patientID,
			FieldID:        fieldID,
			EntryDate:      sample.Start.In(s.sampleLocation(sample)).Format("2006-01-02"),
			EntryTimestamp: sample.Start,
			Value:          strconv.FormatFloat(sample.Value, 'f', -1, 64),
			Source:         "synced",
			ExternalID:     sample.UUID,
			SourceName:     sample.SourceName,
		})
	}
	return s.write(ctx, samples, fresh, rows)
}

var stageReferenceIDs = map[string]string{
	"in_bed": "REF_SLEEP_IN_BED",
	"awake":  "REF_SLEEP_AWAKE",
	"rem":    "REF_SLEEP_REM",
	"core":   "REF_SLEEP_CORE",
	"deep":   "REF_SLEEP_DEEP",
	"asleep": "REF_SLEEP_ASLEEP",
}

// SyncSleep expands each sleep stage sample into a start/end/type triple
// sharing a fresh event instance id. The three rows suffix the sample uuid
// with their role, so each insert is independently idempotent.
func (s *Syncer) SyncSleep(ctx context.Context, from, to time.Time) (Result, error) {
	samples, err := s.source.Samples(ctx, health.TypeSleepStage, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("sync: fetching sleep samples: %w", err)
	}

	fresh, err := FilterUnsynced(ctx, samples, s.store.SampleExists)
	if err != nil {
		return Result{}, err
	}

	var rows []store.SampleRow
	for _, sample := range fresh {
		refID, ok := stageReferenceIDs[sample.Stage]
		if !ok {
			log.Printf("sync: skipping sample %s with unknown stage %q", sample.UUID, sample.Stage)
			continue
		}
		instanceID := uuid.NewString()
		entryDate := sample.End.In(s.sampleLocation(sample)).Format("2006-01-02")
		base := store.SampleRow{
			PatientID:       s.patientID,
			EntryDate:       entryDate,
			EntryTimestamp:  sample.Start,
			Source:          "synced",
			SourceName:      sample.SourceName,
			EventInstanceID: instanceID,
		}

		start := base
		start.FieldID = sleep.FieldPeriodStart
		start.Value = sample.Start.UTC().Format(time.RFC3339)
		start.ExternalID = sample.UUID + "_start"

		end := base
		end.FieldID = sleep.FieldPeriodEnd
		end.Value = sample.End.UTC().Format(time.RFC3339)
		end.ExternalID = sample.UUID + "_end"

		typ := base
		typ.FieldID = sleep.FieldPeriodType
		typ.Value = refID
		typ.ExternalID = sample.UUID + "_type"

		rows = append(rows, start, end, typ)
	}
	return s.write(ctx, samples, fresh, rows)
}

func (s *Syncer) write(ctx context.Context, fetched, fresh []health.Sample, rows []store.SampleRow) (Result, error) {
	res := Result{
		Fetched:  len(fetched),
		Filtered: len(fetched) - len(fresh),
	}
	if len(rows) == 0 {
		return res, nil
	}

	ins, err := s.store.InsertSamples(ctx, rows)
	if err != nil {
		return Result{}, err
	}
	res.Inserted = ins.Inserted
	res.Duplicates = ins.Duplicates
	return res, nil
}

// sampleLocation resolves the timezone the sample was recorded in, falling
// back to the syncer's location.
func (s *Syncer) sampleLocation(sample health.Sample) *time.Location {
	if sample.TimeZone == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(sample.TimeZone)
	if err != nil {
		return s.loc
	}
	return loc
}
