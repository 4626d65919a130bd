package application

import (
	"context"
	"errors"
	"time"

	"meterbill/internal/profile"
	readings "meterbill/internal/readings/domain"
	rollup "meterbill/internal/rollup/domain"
	"meterbill/internal/tou"
)

// Queries is the read-side facade over stored rollups, consumed by the
// presentation layer for charts and bill comparison.
type Queries struct {
	source  ReadingSource
	daily   rollup.DailyRepository
	monthly rollup.MonthlyRepository
	bucket  time.Duration
}

// NewQueries constructs the facade.
func NewQueries(source ReadingSource, daily rollup.DailyRepository, monthly rollup.MonthlyRepository) (*Queries, error) {
	if source == nil || daily == nil || monthly == nil {
		return nil, errors.New("rollup queries: nil dependency")
	}
	return &Queries{source: source, daily: daily, monthly: monthly, bucket: DefaultBucketWidth}, nil
}

// DataRange reports the span of stored raw data, ok=false when empty.
func (q *Queries) DataRange(ctx context.Context, meterID string) (time.Time, time.Time, bool, error) {
	return q.source.DataRange(ctx, meterID)
}

// MonthRanges enumerates the billing months the meter has data for.
func (q *Queries) MonthRanges(ctx context.Context, meterID string) ([]tou.MonthRange, error) {
	first, last, ok, err := q.source.DataRange(ctx, meterID)
	if err != nil || !ok {
		return nil, err
	}
	return tou.MonthRanges(first, last), nil
}

// DailyTotals returns daily rows with start <= day < end, ordered by day.
func (q *Queries) DailyTotals(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error) {
	return q.daily.ListDaily(ctx, meterID, start, end)
}

// Monthly loads one month's aggregate; ok is false when no row exists yet.
func (q *Queries) Monthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, bool, error) {
	tot, err := q.monthly.GetMonthly(ctx, meterID, year, month)
	if errors.Is(err, rollup.ErrMonthlyNotFound) {
		return rollup.MonthlyTotal{}, false, nil
	}
	if err != nil {
		return rollup.MonthlyTotal{}, false, err
	}
	return tot, true, nil
}

// MonthlyTotals returns a year's monthly rows up to and including the
// given month, ordered by month.
func (q *Queries) MonthlyTotals(ctx context.Context, meterID string, year int, upTo time.Month) ([]rollup.MonthlyTotal, error) {
	all, err := q.monthly.ListMonthly(ctx, meterID, year)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, tot := range all {
		if tot.Month <= upTo {
			out = append(out, tot)
		}
	}
	return out, nil
}

// LoadProfile returns the profiled load intervals for a window, for the
// intra-day consumption chart.
func (q *Queries) LoadProfile(ctx context.Context, meterID string, start, end time.Time) ([]profile.Interval, error) {
	raw, err := q.source.Query(ctx, meterID, readings.LoadChannels, start, end)
	if err != nil {
		return nil, err
	}
	return profile.Reshape(raw, q.bucket)
}

// WeekdayAverages returns the mean load total per weekday over a window,
// plus combined weekday/weekend means. Estimated and empty days are
// excluded; weekdays with no real data are omitted.
func (q *Queries) WeekdayAverages(ctx context.Context, meterID string, start, end time.Time) (map[string]float64, error) {
	days, err := q.daily.ListDaily(ctx, meterID, start, end)
	if err != nil {
		return nil, err
	}

	byWeekday := make(map[time.Weekday][]float64)
	for _, d := range days {
		if d.Estimated || d.LoadTotal == 0 {
			continue
		}
		wd := d.Day.Weekday()
		byWeekday[wd] = append(byWeekday[wd], d.LoadTotal)
	}

	out := make(map[string]float64)
	var week, weekend []float64
	for wd, vals := range byWeekday {
		out[wd.String()[:3]] = mean(vals)
		if wd == time.Saturday || wd == time.Sunday {
			weekend = append(weekend, vals...)
		} else {
			week = append(week, vals...)
		}
	}
	if len(week) > 0 {
		out["weekdays"] = mean(week)
	}
	if len(weekend) > 0 {
		out["weekends"] = mean(weekend)
	}
	return out, nil
}

// SegmentCount is the number of three-hour day segments.
const SegmentCount = 8

// DaySegments sums a window's profiled load into eight three-hour
// segments (index 0 covering midnight to 3am) keyed by day.
func (q *Queries) DaySegments(ctx context.Context, meterID string, start, end time.Time) (map[time.Time][SegmentCount]float64, error) {
	intervals, err := q.LoadProfile(ctx, meterID, start, end)
	if err != nil {
		return nil, err
	}

	out := make(map[time.Time][SegmentCount]float64)
	for _, iv := range intervals {
		day := tou.DayStart(iv.Start)
		segs := out[day]
		segs[iv.Start.Hour()/3] += iv.Value
		out[day] = segs
	}
	return out, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
