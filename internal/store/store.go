package store

import "time"

// SampleRow is one field-value row written by the sync path. Value holds the
// field's payload as text: a numeric amount for quantity fields, an RFC 3339
// instant for sleep period bounds, a reference id for sleep period types.
type SampleRow struct {
	PatientID       string
	FieldID         string
	EntryDate       string // "2006-01-02"
	EntryTimestamp  time.Time
	Value           string
	Source          string // "synced" for ingested samples, "manual" for user entries
	ExternalID      string
	SourceName      string
	EventInstanceID string // correlation key for composite rows, empty otherwise
}

// InsertResult reports how a bulk insert went. Duplicates counts rows the
// unique external id constraint rejected; they are skipped, not errors.
type InsertResult struct {
	Inserted   int
	Duplicates int
}
