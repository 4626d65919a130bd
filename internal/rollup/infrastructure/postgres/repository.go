package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rollup "meterbill/internal/rollup/domain"
)

const (
	defaultDailyTable   = "daily_totals"
	defaultMonthlyTable = "monthly_totals"
)

// Repository is a Postgres implementation of the daily and monthly rollup
// stores. Each upsert is its own transaction-per-row statement, so
// re-running a refresh overwrites rather than accumulates.
type Repository struct {
	db           *sql.DB
	dailyTable   string
	monthlyTable string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithDailyTable overrides the daily totals table name.
func WithDailyTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.dailyTable = table
		}
	}
}

// WithMonthlyTable overrides the monthly totals table name.
func WithMonthlyTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.monthlyTable = table
		}
	}
}

// NewRepository constructs a repository with default table names.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{
		db:           db,
		dailyTable:   defaultDailyTable,
		monthlyTable: defaultMonthlyTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EnsureSchema creates the rollup tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("rollup repo: nil db")
	}
	daily := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	meter_id TEXT NOT NULL,
	day TIMESTAMPTZ NOT NULL,
	load_total DOUBLE PRECISION NOT NULL,
	control_total DOUBLE PRECISION NOT NULL,
	export_total DOUBLE PRECISION NOT NULL,
	load_peak1 DOUBLE PRECISION NOT NULL,
	load_shoulder1 DOUBLE PRECISION NOT NULL,
	load_peak2 DOUBLE PRECISION NOT NULL,
	load_shoulder2 DOUBLE PRECISION NOT NULL,
	estimated BOOLEAN NOT NULL,
	PRIMARY KEY (meter_id, day)
)`, r.dailyTable)
	if _, err := r.db.ExecContext(ctx, daily); err != nil {
		return err
	}
	monthly := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	meter_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	num_days INTEGER NOT NULL,
	days_with_data INTEGER NOT NULL,
	load_total DOUBLE PRECISION NOT NULL,
	control_total DOUBLE PRECISION NOT NULL,
	export_total DOUBLE PRECISION NOT NULL,
	load_peak1 DOUBLE PRECISION NOT NULL,
	load_shoulder1 DOUBLE PRECISION NOT NULL,
	load_peak2 DOUBLE PRECISION NOT NULL,
	load_shoulder2 DOUBLE PRECISION NOT NULL,
	demand DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (meter_id, year, month)
)`, r.monthlyTable)
	_, err := r.db.ExecContext(ctx, monthly)
	return err
}

// UpsertDaily overwrites the row for tot.Day with fresh values.
func (r *Repository) UpsertDaily(ctx context.Context, meterID string, tot rollup.DailyTotal) error {
	if r == nil || r.db == nil {
		return errors.New("rollup repo: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	meter_id, day,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2,
	estimated
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
ON CONFLICT (meter_id, day)
DO UPDATE SET
	load_total = EXCLUDED.load_total,
	control_total = EXCLUDED.control_total,
	export_total = EXCLUDED.export_total,
	load_peak1 = EXCLUDED.load_peak1,
	load_shoulder1 = EXCLUDED.load_shoulder1,
	load_peak2 = EXCLUDED.load_peak2,
	load_shoulder2 = EXCLUDED.load_shoulder2,
	estimated = EXCLUDED.estimated`, r.dailyTable)

	_, err := r.db.ExecContext(ctx, query,
		meterID, tot.Day,
		tot.LoadTotal, tot.ControlTotal, tot.ExportTotal,
		tot.LoadPeak1, tot.LoadShoulder1, tot.LoadPeak2, tot.LoadShoulder2,
		tot.Estimated,
	)
	return err
}

// GetDaily loads one day.
func (r *Repository) GetDaily(ctx context.Context, meterID string, day time.Time) (rollup.DailyTotal, error) {
	if r == nil || r.db == nil {
		return rollup.DailyTotal{}, errors.New("rollup repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT day, load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, estimated
FROM %s
WHERE meter_id = $1 AND day = $2`, r.dailyTable)

	var tot rollup.DailyTotal
	err := r.db.QueryRowContext(ctx, query, meterID, day).Scan(
		&tot.Day, &tot.LoadTotal, &tot.ControlTotal, &tot.ExportTotal,
		&tot.LoadPeak1, &tot.LoadShoulder1, &tot.LoadPeak2, &tot.LoadShoulder2,
		&tot.Estimated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rollup.DailyTotal{}, rollup.ErrDailyNotFound
	}
	if err != nil {
		return rollup.DailyTotal{}, err
	}
	return tot, nil
}

// ListDaily returns daily totals with start <= day < end, ordered by day.
func (r *Repository) ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rollup repo: nil db")
	}
	if !end.After(start) {
		return nil, rollup.ErrInvalidRange
	}

	query := fmt.Sprintf(`
SELECT day, load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, estimated
FROM %s
WHERE meter_id = $1 AND day >= $2 AND day < $3
ORDER BY day ASC`, r.dailyTable)

	rows, err := r.db.QueryContext(ctx, query, meterID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rollup.DailyTotal
	for rows.Next() {
		var tot rollup.DailyTotal
		if err := rows.Scan(
			&tot.Day, &tot.LoadTotal, &tot.ControlTotal, &tot.ExportTotal,
			&tot.LoadPeak1, &tot.LoadShoulder1, &tot.LoadPeak2, &tot.LoadShoulder2,
			&tot.Estimated,
		); err != nil {
			return nil, err
		}
		out = append(out, tot)
	}
	return out, rows.Err()
}

// UpsertMonthly overwrites the row for (tot.Year, tot.Month).
func (r *Repository) UpsertMonthly(ctx context.Context, meterID string, tot rollup.MonthlyTotal) error {
	if r == nil || r.db == nil {
		return errors.New("rollup repo: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	meter_id, year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2,
	demand
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (meter_id, year, month)
DO UPDATE SET
	num_days = EXCLUDED.num_days,
	days_with_data = EXCLUDED.days_with_data,
	load_total = EXCLUDED.load_total,
	control_total = EXCLUDED.control_total,
	export_total = EXCLUDED.export_total,
	load_peak1 = EXCLUDED.load_peak1,
	load_shoulder1 = EXCLUDED.load_shoulder1,
	load_peak2 = EXCLUDED.load_peak2,
	load_shoulder2 = EXCLUDED.load_shoulder2,
	demand = EXCLUDED.demand`, r.monthlyTable)

	_, err := r.db.ExecContext(ctx, query,
		meterID, tot.Year, int(tot.Month), tot.NumDays, tot.DaysWithData,
		tot.LoadTotal, tot.ControlTotal, tot.ExportTotal,
		tot.LoadPeak1, tot.LoadShoulder1, tot.LoadPeak2, tot.LoadShoulder2,
		tot.Demand,
	)
	return err
}

// GetMonthly loads one month.
func (r *Repository) GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, error) {
	if r == nil || r.db == nil {
		return rollup.MonthlyTotal{}, errors.New("rollup repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, demand
FROM %s
WHERE meter_id = $1 AND year = $2 AND month = $3`, r.monthlyTable)

	tot, err := scanMonthly(r.db.QueryRowContext(ctx, query, meterID, year, int(month)))
	if errors.Is(err, sql.ErrNoRows) {
		return rollup.MonthlyTotal{}, rollup.ErrMonthlyNotFound
	}
	return tot, err
}

// ListMonthly returns a year's monthly totals ordered by month.
func (r *Repository) ListMonthly(ctx context.Context, meterID string, year int) ([]rollup.MonthlyTotal, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rollup repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, demand
FROM %s
WHERE meter_id = $1 AND year = $2
ORDER BY month ASC`, r.monthlyTable)

	rows, err := r.db.QueryContext(ctx, query, meterID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rollup.MonthlyTotal
	for rows.Next() {
		tot, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tot)
	}
	return out, rows.Err()
}

// DeleteMeter removes every rollup row held for a meter.
func (r *Repository) DeleteMeter(ctx context.Context, meterID string) error {
	if r == nil || r.db == nil {
		return errors.New("rollup repo: nil db")
	}
	for _, table := range []string{r.dailyTable, r.monthlyTable} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE meter_id = $1`, table)
		if _, err := r.db.ExecContext(ctx, query, meterID); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonthly(row rowScanner) (rollup.MonthlyTotal, error) {
	var tot rollup.MonthlyTotal
	var month int
	err := row.Scan(
		&tot.Year, &month, &tot.NumDays, &tot.DaysWithData,
		&tot.LoadTotal, &tot.ControlTotal, &tot.ExportTotal,
		&tot.LoadPeak1, &tot.LoadShoulder1, &tot.LoadPeak2, &tot.LoadShoulder2,
		&tot.Demand,
	)
	tot.Month = time.Month(month)
	return tot, err
}
