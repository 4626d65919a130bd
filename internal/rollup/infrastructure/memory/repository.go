package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	rollup "meterbill/internal/rollup/domain"
)

type monthKey struct {
	year  int
	month time.Month
}

// Repository is an in-memory rollup store for demo/testing. It implements
// both the daily and the monthly repository interfaces.
type Repository struct {
	mu      sync.RWMutex
	daily   map[string]map[time.Time]rollup.DailyTotal
	monthly map[string]map[monthKey]rollup.MonthlyTotal
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		daily:   make(map[string]map[time.Time]rollup.DailyTotal),
		monthly: make(map[string]map[monthKey]rollup.MonthlyTotal),
	}
}

// UpsertDaily overwrites the row for tot.Day.
func (r *Repository) UpsertDaily(ctx context.Context, meterID string, tot rollup.DailyTotal) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	meter := r.daily[meterID]
	if meter == nil {
		meter = make(map[time.Time]rollup.DailyTotal)
		r.daily[meterID] = meter
	}
	meter[tot.Day] = tot
	return nil
}

// GetDaily loads one day.
func (r *Repository) GetDaily(ctx context.Context, meterID string, day time.Time) (rollup.DailyTotal, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	tot, ok := r.daily[meterID][day]
	if !ok {
		return rollup.DailyTotal{}, rollup.ErrDailyNotFound
	}
	return tot, nil
}

// ListDaily returns daily totals with start <= Day < end, ordered by day.
func (r *Repository) ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error) {
	_ = ctx
	if !end.After(start) {
		return nil, rollup.ErrInvalidRange
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rollup.DailyTotal
	for day, tot := range r.daily[meterID] {
		if day.Before(start) || !day.Before(end) {
			continue
		}
		out = append(out, tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// UpsertMonthly overwrites the row for (tot.Year, tot.Month).
func (r *Repository) UpsertMonthly(ctx context.Context, meterID string, tot rollup.MonthlyTotal) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	meter := r.monthly[meterID]
	if meter == nil {
		meter = make(map[monthKey]rollup.MonthlyTotal)
		r.monthly[meterID] = meter
	}
	meter[monthKey{tot.Year, tot.Month}] = tot
	return nil
}

// GetMonthly loads one month.
func (r *Repository) GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	tot, ok := r.monthly[meterID][monthKey{year, month}]
	if !ok {
		return rollup.MonthlyTotal{}, rollup.ErrMonthlyNotFound
	}
	return tot, nil
}

// ListMonthly returns a year's monthly totals ordered by month.
func (r *Repository) ListMonthly(ctx context.Context, meterID string, year int) ([]rollup.MonthlyTotal, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rollup.MonthlyTotal
	for key, tot := range r.monthly[meterID] {
		if key.year != year {
			continue
		}
		out = append(out, tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
