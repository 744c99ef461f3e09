package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mlowicki/chartwell/internal/chart"
	"github.com/mlowicki/chartwell/internal/sleep"
)

// Store is the local SQLite backing for the aggregate cache, raw field-value
// entries, and the stage reference table. It implements chart.Fetcher,
// sleep.EntrySource and sleep.ReferenceLoader.
type Store struct {
	db        *sql.DB
	patientID string
}

func Open(path, patientID string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening DB: %w", err)
	}

	store := New(db, patientID)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func New(db *sql.DB, patientID string) *Store {
	return &Store{db: db, patientID: patientID}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS aggregation_cache (
			patient_id TEXT NOT NULL,
			agg_metric_id TEXT NOT NULL,
			period_type TEXT NOT NULL,
			calculation_type TEXT NOT NULL,
			period_start TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (patient_id, agg_metric_id, period_type, calculation_type, period_start)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agg_cache_lookup
			ON aggregation_cache(patient_id, agg_metric_id, period_type, calculation_type, period_start);`,
		`CREATE TABLE IF NOT EXISTS data_entries (
			entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			field_id TEXT NOT NULL,
			entry_date TEXT NOT NULL,
			entry_timestamp TEXT NOT NULL,
			value TEXT NOT NULL,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL UNIQUE,
			source_name TEXT,
			event_instance_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_data_entries_field_date ON data_entries(patient_id, field_id, entry_date);`,
		`CREATE INDEX IF NOT EXISTS idx_data_entries_instance ON data_entries(event_instance_id);`,
		`CREATE TABLE IF NOT EXISTS stage_references (
			reference_id TEXT PRIMARY KEY,
			reference_key TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// EnsureStageReferences seeds the reference table with the known sleep
// stages. Existing rows are left alone.
func (s *Store) EnsureStageReferences(ctx context.Context) error {
	refs := map[string]string{
		"REF_SLEEP_IN_BED": "in_bed",
		"REF_SLEEP_AWAKE":  "awake",
		"REF_SLEEP_REM":    "rem",
		"REF_SLEEP_CORE":   "core",
		"REF_SLEEP_DEEP":   "deep",
		"REF_SLEEP_ASLEEP": "asleep",
	}
	for id, key := range refs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO stage_references (reference_id, reference_key) VALUES (?, ?)`,
			id, key); err != nil {
			return fmt.Errorf("store: seeding stage reference %s: %w", id, err)
		}
	}
	return nil
}

// StageReferences implements sleep.ReferenceLoader.
func (s *Store) StageReferences(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reference_id, reference_key FROM stage_references`)
	if err != nil {
		return nil, fmt.Errorf("store: querying stage references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("store: scanning stage reference: %w", err)
		}
		refs[id] = key
	}
	return refs, rows.Err()
}

// FetchAggregates implements chart.Fetcher: rows for one metric over a
// period-start range, ordered by period start.
func (s *Store) FetchAggregates(ctx context.Context, q chart.AggregateQuery) ([]chart.AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agg_metric_id, period_type, calculation_type, period_start, value
		FROM aggregation_cache
		WHERE patient_id = ? AND agg_metric_id = ? AND period_type = ? AND calculation_type = ?
			AND period_start >= ? AND period_start <= ?
		ORDER BY period_start
	`,
		s.patientID, q.MetricID, q.PeriodType, q.CalculationType,
		q.From.UTC().Format(time.RFC3339), q.To.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("store: querying aggregates: %w", err)
	}
	defer rows.Close()

	var out []chart.AggregateRow
	for rows.Next() {
		var r chart.AggregateRow
		var periodStart string
		if err := rows.Scan(&r.EntityID, &r.PeriodType, &r.CalculationType, &periodStart, &r.Value); err != nil {
			return nil, fmt.Errorf("store: scanning aggregate row: %w", err)
		}
		r.PeriodStart, err = time.Parse(time.RFC3339, periodStart)
		if err != nil {
			return nil, fmt.Errorf("store: parsing period start %q: %w", periodStart, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var sleepFieldIDs = []string{
	sleep.FieldPeriodStart, sleep.FieldPeriodEnd, sleep.FieldPeriodType,
	sleep.FieldBedtime, sleep.FieldWaketime, sleep.FieldDuration,
}

// SleepRowsBetween implements sleep.EntrySource: sleep field rows whose entry
// date falls inside [from, to].
func (s *Store) SleepRowsBetween(ctx context.Context, from, to time.Time) ([]sleep.EventRow, error) {
	query := fmt.Sprintf(`
		SELECT event_instance_id, field_id, value
		FROM data_entries
		WHERE patient_id = ? AND field_id IN (%s)
			AND event_instance_id IS NOT NULL AND event_instance_id != ''
			AND entry_date >= ? AND entry_date <= ?
	`, placeholders(len(sleepFieldIDs)))

	args := []interface{}{s.patientID}
	for _, id := range sleepFieldIDs {
		args = append(args, id)
	}
	args = append(args, from.Format("2006-01-02"), to.Format("2006-01-02"))

	return s.queryEventRows(ctx, query, args)
}

// SleepRowsByInstance implements sleep.EntrySource: every row of the given
// event instances.
func (s *Store) SleepRowsByInstance(ctx context.Context, instanceIDs []string) ([]sleep.EventRow, error) {
	if len(instanceIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT event_instance_id, field_id, value
		FROM data_entries
		WHERE patient_id = ? AND event_instance_id IN (%s)
	`, placeholders(len(instanceIDs)))

	args := []interface{}{s.patientID}
	for _, id := range instanceIDs {
		args = append(args, id)
	}

	return s.queryEventRows(ctx, query, args)
}

func (s *Store) queryEventRows(ctx context.Context, query string, args []interface{}) ([]sleep.EventRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying event rows: %w", err)
	}
	defer rows.Close()

	var out []sleep.EventRow
	for rows.Next() {
		var r sleep.EventRow
		if err := rows.Scan(&r.EventInstanceID, &r.FieldID, &r.Value); err != nil {
			return nil, fmt.Errorf("store: scanning event row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SampleExists reports whether a row with the external id is already stored.
func (s *Store) SampleExists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM data_entries WHERE external_id = ?`, externalID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: checking external id %s: %w", externalID, err)
	}
	return true, nil
}

// InsertSamples bulk-inserts sample rows inside one transaction. Rows whose
// external id already exists are counted as duplicates and skipped; the
// unique constraint is the second line of defense behind the deduplicator.
func (s *Store) InsertSamples(ctx context.Context, samples []SampleRow) (InsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertResult{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var res InsertResult
	for _, row := range samples {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO data_entries (
				patient_id, field_id, entry_date, entry_timestamp, value,
				source, external_id, source_name, event_instance_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			row.PatientID,
			row.FieldID,
			row.EntryDate,
			row.EntryTimestamp.UTC().Format(time.RFC3339),
			row.Value,
			row.Source,
			row.ExternalID,
			nullable(row.SourceName),
			nullable(row.EventInstanceID),
		)
		if err != nil {
			if isUniqueConstraintError(err, "data_entries.external_id") {
				res.Duplicates++
				continue
			}
			return InsertResult{}, fmt.Errorf("store: inserting sample %s: %w", row.ExternalID, err)
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("store: commit tx: %w", err)
	}
	return res, nil
}

// RebuildAggregates recomputes the aggregation cache for one metric from the
// numeric entries of a field: hourly averages, daily sums, and weekly/monthly
// period totals for the rollup views. Non-numeric values are skipped.
func (s *Store) RebuildAggregates(ctx context.Context, fieldID, metricID string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_timestamp, value FROM data_entries
		WHERE patient_id = ? AND field_id = ?
	`, s.patientID, fieldID)
	if err != nil {
		return fmt.Errorf("store: querying entries for %s: %w", fieldID, err)
	}
	defer rows.Close()

	type hourAgg struct {
		sum   float64
		count int
	}
	hours := make(map[time.Time]*hourAgg)
	days := make(map[time.Time]float64)
	for rows.Next() {
		var ts, value string
		if err := rows.Scan(&ts, &value); err != nil {
			return fmt.Errorf("store: scanning entry: %w", err)
		}
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		at = at.UTC()
		hour := at.Truncate(time.Hour)
		if agg, ok := hours[hour]; ok {
			agg.sum += v
			agg.count++
		} else {
			hours[hour] = &hourAgg{sum: v, count: 1}
		}
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		days[day] += v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	weeks := make(map[time.Time]float64)
	months := make(map[time.Time]float64)
	for day, sum := range days {
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		weeks[monday] += sum
		months[time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)] += sum
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM aggregation_cache WHERE patient_id = ? AND agg_metric_id = ?`,
		s.patientID, metricID); err != nil {
		return fmt.Errorf("store: clearing aggregates for %s: %w", metricID, err)
	}

	put := func(periodType, calcType string, at time.Time, value float64) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO aggregation_cache (
				patient_id, agg_metric_id, period_type, calculation_type, period_start, value
			) VALUES (?, ?, ?, ?, ?, ?)
		`, s.patientID, metricID, periodType, calcType, at.Format(time.RFC3339), value)
		return err
	}
	for hour, agg := range hours {
		if err := put("hourly", "AVG", hour, agg.sum/float64(agg.count)); err != nil {
			return fmt.Errorf("store: writing hourly aggregate: %w", err)
		}
	}
	for day, sum := range days {
		if err := put("daily", "SUM", day, sum); err != nil {
			return fmt.Errorf("store: writing daily aggregate: %w", err)
		}
	}
	for week, sum := range weeks {
		if err := put("weekly", "AVG", week, sum); err != nil {
			return fmt.Errorf("store: writing weekly aggregate: %w", err)
		}
	}
	for month, sum := range months {
		if err := put("monthly", "AVG", month, sum); err != nil {
			return fmt.Errorf("store: writing monthly aggregate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error, target string) bool {
	if err == nil {
		return false
	}
	errText := err.Error()
	return strings.Contains(errText, "UNIQUE constraint failed") && strings.Contains(errText, target)
}

func nullable(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
