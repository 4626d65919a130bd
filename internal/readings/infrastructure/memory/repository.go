package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	readings "meterbill/internal/readings/domain"
)

// Repository is an in-memory reading store for demo/testing.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[readings.Key]readings.Reading // meter id -> keyed readings
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[readings.Key]readings.Reading)}
}

// Insert stores readings, skipping keys already present.
func (r *Repository) Insert(ctx context.Context, meterID string, batch []readings.Reading) (int, error) {
	_ = ctx
	if meterID == "" {
		return 0, readings.ErrEmptyMeterID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	meter := r.data[meterID]
	if meter == nil {
		meter = make(map[readings.Key]readings.Reading)
		r.data[meterID] = meter
	}

	inserted := 0
	for _, read := range batch {
		key := read.Key()
		if _, exists := meter[key]; exists {
			continue
		}
		meter[key] = read
		inserted++
	}
	return inserted, nil
}

// DataRange reports the earliest start and latest end across all channels.
func (r *Repository) DataRange(ctx context.Context, meterID string) (time.Time, time.Time, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var first, last time.Time
	found := false
	for _, read := range r.data[meterID] {
		if !found {
			first, last = read.Start, read.End
			found = true
			continue
		}
		if read.Start.Before(first) {
			first = read.Start
		}
		if read.End.After(last) {
			last = read.End
		}
	}
	return first, last, found, nil
}

// Query returns readings on the given channels inside [start, end], ordered by start.
func (r *Repository) Query(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]readings.Reading, error) {
	_ = ctx
	wanted := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		wanted[ch] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []readings.Reading
	for _, read := range r.data[meterID] {
		if _, ok := wanted[read.Channel]; !ok {
			continue
		}
		if read.Start.Before(start) || read.End.After(end) {
			continue
		}
		out = append(out, read)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// DeleteMeter removes every reading held for a meter.
func (r *Repository) DeleteMeter(ctx context.Context, meterID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, meterID)
	return nil
}
