package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"meterbill/internal/observability/metrics"
	"meterbill/internal/profile"
	readings "meterbill/internal/readings/domain"
	rollup "meterbill/internal/rollup/domain"
	"meterbill/internal/tou"
)

// ReadingSource supplies raw readings for rollups. Satisfied by any
// readings repository.
type ReadingSource interface {
	DataRange(ctx context.Context, meterID string) (first, last time.Time, ok bool, err error)
	Query(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]readings.Reading, error)
}

// DefaultBucketWidth is the profiling resolution used for rollups.
const DefaultBucketWidth = 5 * time.Minute

// Service is the daily/monthly rollup engine for one store of meters.
// Totals flow strictly Reading -> DailyTotal -> MonthlyTotal; refreshing
// either level overwrites, never accumulates.
type Service struct {
	source  ReadingSource
	daily   rollup.DailyRepository
	monthly rollup.MonthlyRepository
	logger  *log.Logger
	bucket  time.Duration
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithBucketWidth overrides the profiling bucket width.
func WithBucketWidth(width time.Duration) ServiceOption {
	return func(s *Service) {
		if width > 0 {
			s.bucket = width
		}
	}
}

// NewService constructs a rollup Service.
func NewService(source ReadingSource, daily rollup.DailyRepository, monthly rollup.MonthlyRepository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if source == nil {
		return nil, errors.New("rollup service: nil reading source")
	}
	if daily == nil || monthly == nil {
		return nil, errors.New("rollup service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		source:  source,
		daily:   daily,
		monthly: monthly,
		logger:  logger,
		bucket:  DefaultBucketWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RefreshDaily recomputes daily totals for the given range, defaulting to
// the meter's full available range. Both regional time-of-use splits are
// stored for every day. Days after the last real reading up to the end of
// that month are filled by carrying the last real day forward, flagged
// estimated, so month-in-progress estimates degrade gracefully.
func (s *Service) RefreshDaily(ctx context.Context, meterID string, start, end *time.Time) error {
	rangeStart, rangeEnd, ok, err := s.resolveRange(ctx, meterID, start, end)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Printf("rollup: meter=%s has no readings, nothing to refresh", meterID)
		return nil
	}
	s.logger.Printf("rollup: refreshing daily totals meter=%s from=%s to=%s",
		meterID, rangeStart.Format("20060102"), rangeEnd.Format("20060102"))

	load, err := s.profiled(ctx, meterID, readings.LoadChannels, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("rollup: load channels: %w", err)
	}
	control, err := s.profiled(ctx, meterID, readings.ControlledChannels, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("rollup: controlled channels: %w", err)
	}
	generation, err := s.profiled(ctx, meterID, readings.GenerationChannels, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("rollup: generation channels: %w", err)
	}

	days := buildDailyTotals(load, control, generation)
	var lastDay time.Time
	var lastTotal rollup.DailyTotal
	for _, tot := range days {
		if err := s.daily.UpsertDaily(ctx, meterID, tot); err != nil {
			metrics.RollupDay(false)
			s.logger.Printf("rollup: meter=%s day=%s upsert failed, skipping: %v",
				meterID, tot.Day.Format("20060102"), err)
			continue
		}
		metrics.RollupDay(true)
		if tot.Day.After(lastDay) {
			lastDay, lastTotal = tot.Day, tot
		}
	}

	if !lastDay.IsZero() {
		s.fillEstimates(ctx, meterID, lastDay, lastTotal)
	}
	return nil
}

// fillEstimates carries the last real day forward to the end of its
// month. Real rows are never replaced by estimates.
func (s *Service) fillEstimates(ctx context.Context, meterID string, lastDay time.Time, lastTotal rollup.DailyTotal) {
	nextMonth := tou.MonthStart(lastDay).AddDate(0, 1, 0)
	for day := lastDay.AddDate(0, 0, 1); day.Before(nextMonth); day = day.AddDate(0, 0, 1) {
		existing, err := s.daily.GetDaily(ctx, meterID, day)
		switch {
		case err == nil && !existing.Estimated:
			continue
		case err != nil && !errors.Is(err, rollup.ErrDailyNotFound):
			s.logger.Printf("rollup: meter=%s day=%s estimate lookup failed: %v",
				meterID, day.Format("20060102"), err)
			continue
		}

		est := lastTotal
		est.Day = day
		est.Estimated = true
		if err := s.daily.UpsertDaily(ctx, meterID, est); err != nil {
			s.logger.Printf("rollup: meter=%s day=%s estimate upsert failed: %v",
				meterID, day.Format("20060102"), err)
			continue
		}
		metrics.EstimatedDay()
		s.logger.Printf("rollup: data gap meter=%s day=%s estimated from %s",
			meterID, day.Format("20060102"), lastDay.Format("20060102"))
	}
}

// RefreshMonthly recomputes monthly totals, including the demand figure,
// for every month touching the meter's available range. Must run after
// RefreshDaily: monthly rows are a pure function of daily rows.
func (s *Service) RefreshMonthly(ctx context.Context, meterID string) error {
	first, last, ok, err := s.source.DataRange(ctx, meterID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Printf("rollup: meter=%s has no readings, nothing to refresh", meterID)
		return nil
	}
	s.logger.Printf("rollup: refreshing monthly totals meter=%s", meterID)

	for _, mr := range tou.MonthRanges(first, last) {
		monthStart := time.Date(mr.Year, mr.Month, 1, 0, 0, 0, 0, first.Location())
		monthEnd := monthStart.AddDate(0, 1, 0)

		days, err := s.daily.ListDaily(ctx, meterID, monthStart, monthEnd)
		if err != nil {
			metrics.RollupMonth(false)
			s.logger.Printf("rollup: meter=%s month=%d-%02d list failed, skipping: %v",
				meterID, mr.Year, mr.Month, err)
			continue
		}

		tot := rollup.SumDailies(mr.Year, mr.Month, tou.DaysInMonth(mr.Year, mr.Month), days)
		if err := s.monthly.UpsertMonthly(ctx, meterID, tot); err != nil {
			metrics.RollupMonth(false)
			s.logger.Printf("rollup: meter=%s month=%d-%02d upsert failed, skipping: %v",
				meterID, mr.Year, mr.Month, err)
			continue
		}
		metrics.RollupMonth(true)
	}
	return nil
}

// Refresh runs the daily then the monthly rollup as one unit of work.
func (s *Service) Refresh(ctx context.Context, meterID string) error {
	if err := s.RefreshDaily(ctx, meterID, nil, nil); err != nil {
		return err
	}
	return s.RefreshMonthly(ctx, meterID)
}

func (s *Service) resolveRange(ctx context.Context, meterID string, start, end *time.Time) (time.Time, time.Time, bool, error) {
	if start != nil && end != nil {
		return *start, *end, true, nil
	}
	first, last, ok, err := s.source.DataRange(ctx, meterID)
	if err != nil || !ok {
		return time.Time{}, time.Time{}, ok, err
	}
	if start != nil {
		first = *start
	}
	if end != nil {
		last = *end
	}
	return first, last, true, nil
}

// profiled loads a channel group and reshapes it onto the bucket grid.
// Inconsistent readings are dropped and counted rather than failing the
// whole refresh.
func (s *Service) profiled(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]profile.Interval, error) {
	raw, err := s.source.Query(ctx, meterID, channels, start, end)
	if err != nil {
		return nil, err
	}

	valid := raw[:0:0]
	for _, read := range raw {
		if err := read.Validate(); err != nil {
			metrics.SkippedReading()
			s.logger.Printf("rollup: meter=%s channel=%s start=%s skipped: %v",
				meterID, read.Channel, read.Start.Format(time.RFC3339), err)
			continue
		}
		valid = append(valid, read)
	}
	return profile.Reshape(valid, s.bucket)
}

// dayOf attributes a profiled interval to a calendar day: the day holding
// the instant just before its end, so a midnight interval_end belongs to
// the day it closes.
func dayOf(iv profile.Interval) time.Time {
	return tou.DayStart(iv.End.Add(-time.Nanosecond))
}

// buildDailyTotals folds profiled channel-group intervals into per-day
// totals with both regional time-of-use splits. Control and generation
// are optional; absent days simply total zero.
func buildDailyTotals(load, control, generation []profile.Interval) []rollup.DailyTotal {
	byDay := make(map[time.Time]*rollup.DailyTotal)
	ordered := make([]time.Time, 0)

	get := func(day time.Time) *rollup.DailyTotal {
		tot := byDay[day]
		if tot == nil {
			tot = &rollup.DailyTotal{Day: day}
			byDay[day] = tot
			ordered = append(ordered, day)
		}
		return tot
	}

	for _, iv := range load {
		tot := get(dayOf(iv))
		tot.LoadTotal += iv.Value
		switch tou.Regional.Classify(iv.Start) {
		case tou.BandPeak:
			tot.LoadPeak1 += iv.Value
		default:
			tot.LoadShoulder1 += iv.Value
		}
		switch tou.SEQ.Classify(iv.Start) {
		case tou.BandPeak:
			tot.LoadPeak2 += iv.Value
		case tou.BandShoulder:
			tot.LoadShoulder2 += iv.Value
		}
	}
	for _, iv := range control {
		get(dayOf(iv)).ControlTotal += iv.Value
	}
	for _, iv := range generation {
		get(dayOf(iv)).ExportTotal += iv.Value
	}

	out := make([]rollup.DailyTotal, 0, len(ordered))
	for _, day := range ordered {
		out = append(out, *byDay[day])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
