package readings

import (
	"context"
	"time"
)

// Repository is the append-only keyed store for one meter's raw readings.
// Every operation is scoped by meter id; meters never share state.
type Repository interface {
	// Insert stores readings, skipping keys already present.
	// It reports how many readings were newly stored.
	Insert(ctx context.Context, meterID string, batch []Reading) (inserted int, err error)

	// DataRange reports the earliest start and latest end across all
	// channels. ok is false when the meter holds no readings.
	DataRange(ctx context.Context, meterID string) (first, last time.Time, ok bool, err error)

	// Query returns readings on the given channels with Start >= start and
	// End <= end, ordered by Start.
	Query(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]Reading, error)

	// DeleteMeter removes every reading held for a meter.
	DeleteMeter(ctx context.Context, meterID string) error
}
