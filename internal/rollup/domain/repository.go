package rollup

import (
	"context"
	"time"
)

// DailyRepository stores daily totals per meter, keyed by day.
type DailyRepository interface {
	// UpsertDaily overwrites the row for tot.Day with fresh values.
	UpsertDaily(ctx context.Context, meterID string, tot DailyTotal) error

	// GetDaily loads one day. Returns ErrDailyNotFound when absent.
	GetDaily(ctx context.Context, meterID string, day time.Time) (DailyTotal, error)

	// ListDaily returns daily totals with start <= Day < end, ordered by day.
	ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]DailyTotal, error)
}

// MonthlyRepository stores monthly totals per meter, keyed by (year, month).
type MonthlyRepository interface {
	// UpsertMonthly overwrites the row for (tot.Year, tot.Month).
	UpsertMonthly(ctx context.Context, meterID string, tot MonthlyTotal) error

	// GetMonthly loads one month. Returns ErrMonthlyNotFound when absent.
	GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (MonthlyTotal, error)

	// ListMonthly returns a year's monthly totals ordered by month.
	ListMonthly(ctx context.Context, meterID string, year int) ([]MonthlyTotal, error)
}
