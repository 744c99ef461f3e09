package sync

import (
	"context"
	"fmt"

	"github.com/mlowicki/chartwell/internal/health"
)

// ExistsFunc reports whether a row with the external id is already stored.
// The store lookup behind it is external I/O; the filter itself stays pure.
type ExistsFunc func(ctx context.Context, externalID string) (bool, error)

// ExternalID derives a sample's stable external identifier. Sleep stage
// samples expand into start/end/type rows whose ids suffix the platform uuid
// with a role tag; the start row's id stands for the whole triple.
func ExternalID(s health.Sample) string {
	if s.Type == health.TypeSleepStage {
		return s.UUID + "_start"
	}
	return s.UUID
}

// FilterUnsynced drops samples whose external id already exists remotely.
// Samples pass through in input order; the filter never mutates them.
func FilterUnsynced(ctx context.Context, samples []health.Sample, exists ExistsFunc) ([]health.Sample, error) {
	var out []health.Sample
	for _, s := range samples {
		found, err := exists(ctx, ExternalID(s))
		if err != nil {
			return nil, fmt.Errorf("sync: checking sample %s: %w", s.UUID, err)
		}
		if found {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
