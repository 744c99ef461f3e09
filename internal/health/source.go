package health

import (
	"context"
	"time"
)

// Sample types the sync path understands. Quantity samples carry a numeric
// Value; sleep stage samples carry the stage key in Stage instead.
const (
	TypeSteps      = "steps"
	TypeHeartRate  = "heart_rate"
	TypeSleepStage = "sleep_stage"
)

// Sample is one raw platform health sample. UUID is the platform's stable
// identifier for the sample and anchors deduplication downstream.
type Sample struct {
	UUID       string
	Type       string
	Start      time.Time
	End        time.Time
	Value      float64
	Stage      string
	SourceName string
	TimeZone   string
}

// SampleSource queries raw samples by type and date range.
type SampleSource interface {
	Samples(ctx context.Context, sampleType string, from, to time.Time) ([]Sample, error)
}
