// Package profile reshapes irregular raw readings into fixed-width
// intervals. It is pure: no state survives between calls and identical
// input produces identical output.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	readings "meterbill/internal/readings/domain"
)

// Interval is a fixed-width bucket of redistributed energy.
// The span is half-open, matching the raw readings.
type Interval struct {
	Start time.Time
	End   time.Time
	Value float64 // watt hours
}

var (
	// ErrInvalidInterval is returned when a reading has a zero or negative span.
	ErrInvalidInterval = errors.New("profile: reading span is zero or negative")
	// ErrInvalidWidth is returned for a non-positive bucket width.
	ErrInvalidWidth = errors.New("profile: bucket width must be positive")
)

// Reshape redistributes raw readings into buckets of the given width.
// A reading overlapping several buckets is split by the fraction of its
// duration falling in each. Buckets with no contributing reading are
// omitted. The last interval is clamped to the overall span end when the
// input does not align to the bucket grid.
func Reshape(reads []readings.Reading, width time.Duration) ([]Interval, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}

	acc := make(map[time.Time]float64)
	var spanEnd time.Time
	for _, r := range reads {
		d := r.End.Sub(r.Start)
		if d <= 0 {
			return nil, fmt.Errorf("%w: channel %s at %s", ErrInvalidInterval, r.Channel, r.Start.Format(time.RFC3339))
		}
		if r.End.After(spanEnd) {
			spanEnd = r.End
		}
		for b := r.Start.Truncate(width); b.Before(r.End); b = b.Add(width) {
			overlapStart := r.Start
			if b.After(overlapStart) {
				overlapStart = b
			}
			overlapEnd := r.End
			if be := b.Add(width); be.Before(overlapEnd) {
				overlapEnd = be
			}
			frac := float64(overlapEnd.Sub(overlapStart)) / float64(d)
			acc[b] += r.Value * frac
		}
	}

	starts := make([]time.Time, 0, len(acc))
	for b := range acc {
		starts = append(starts, b)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]Interval, 0, len(starts))
	for _, b := range starts {
		end := b.Add(width)
		if end.After(spanEnd) {
			end = spanEnd
		}
		out = append(out, Interval{Start: b, End: end, Value: acc[b]})
	}
	return out, nil
}

// AveragePower converts an energy amount over a window to average watts.
func AveragePower(wh float64, window time.Duration) float64 {
	hours := window.Hours()
	if hours <= 0 {
		return 0
	}
	return wh / hours
}

// Energy converts average watts over a window back to watt hours.
func Energy(w float64, window time.Duration) float64 {
	return w * window.Hours()
}
