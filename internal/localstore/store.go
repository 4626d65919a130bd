// Package localstore keeps one sqlite database file per meter, giving
// each meter an isolated storage namespace without a database server.
// It implements the reading store and both rollup repositories.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	readings "meterbill/internal/readings/domain"
	rollup "meterbill/internal/rollup/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	channel TEXT NOT NULL,
	read_start TIMESTAMP NOT NULL,
	read_end TIMESTAMP NOT NULL,
	read_value REAL NOT NULL,
	quality_method TEXT,
	PRIMARY KEY (channel, read_start, read_end)
);
CREATE TABLE IF NOT EXISTS daily_totals (
	day TIMESTAMP NOT NULL PRIMARY KEY,
	load_total REAL NOT NULL,
	control_total REAL NOT NULL,
	export_total REAL NOT NULL,
	load_peak1 REAL NOT NULL,
	load_shoulder1 REAL NOT NULL,
	load_peak2 REAL NOT NULL,
	load_shoulder2 REAL NOT NULL,
	estimated INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS monthly_totals (
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	num_days INTEGER NOT NULL,
	days_with_data INTEGER NOT NULL,
	load_total REAL NOT NULL,
	control_total REAL NOT NULL,
	export_total REAL NOT NULL,
	load_peak1 REAL NOT NULL,
	load_shoulder1 REAL NOT NULL,
	load_peak2 REAL NOT NULL,
	load_shoulder2 REAL NOT NULL,
	demand REAL NOT NULL,
	PRIMARY KEY (year, month)
);
`

// ErrBadMeterID is returned when a meter id cannot name a database file.
var ErrBadMeterID = errors.New("localstore: meter id must be alphanumeric")

// Store manages the per-meter database handles under one directory.
type Store struct {
	mu  sync.Mutex
	dir string
	dbs map[string]*sql.DB
}

// Open prepares a store rooted at dir, creating it when missing.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("localstore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create %s: %w", dir, err)
	}
	return &Store{dir: dir, dbs: make(map[string]*sql.DB)}, nil
}

// Close closes every open meter database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, id)
	}
	return firstErr
}

func validMeterID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Store) db(meterID string) (*sql.DB, error) {
	if !validMeterID(meterID) {
		return nil, fmt.Errorf("%w: %q", ErrBadMeterID, meterID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[meterID]; ok {
		return db, nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("meter_%s.db", meterID))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	// A single writer keeps the upsert-per-row semantics simple.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localstore: init %s: %w", path, err)
	}
	s.dbs[meterID] = db
	return db, nil
}

// Insert stores readings, skipping keys already present.
func (s *Store) Insert(ctx context.Context, meterID string, batch []readings.Reading) (int, error) {
	db, err := s.db(meterID)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO readings (channel, read_start, read_end, read_value, quality_method)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, read := range batch {
		res, err := stmt.ExecContext(ctx, read.Channel, read.Start.UTC(), read.End.UTC(), read.Value, read.QualityMethod)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DataRange reports the earliest start and latest end across all channels.
func (s *Store) DataRange(ctx context.Context, meterID string) (time.Time, time.Time, bool, error) {
	db, err := s.db(meterID)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	// MIN/MAX aggregates lose the column decltype, so the driver hands
	// back strings. Bare-column selects keep time.Time scanning intact.
	var first time.Time
	err = db.QueryRowContext(ctx, `SELECT read_start FROM readings ORDER BY read_start ASC LIMIT 1`).Scan(&first)
	if err == sql.ErrNoRows {
		return time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	var last time.Time
	err = db.QueryRowContext(ctx, `SELECT read_end FROM readings ORDER BY read_end DESC LIMIT 1`).Scan(&last)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return first, last, true, nil
}

// Query returns readings on the given channels inside [start, end], ordered by start.
func (s *Store) Query(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]readings.Reading, error) {
	db, err := s.db(meterID)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, nil
	}

	query := `
SELECT channel, read_start, read_end, read_value, COALESCE(quality_method, '')
FROM readings
WHERE read_start >= ? AND read_end <= ? AND channel IN (?` +
		repeatPlaceholder(len(channels)-1) + `)
ORDER BY read_start ASC, channel ASC`

	args := []any{start.UTC(), end.UTC()}
	for _, ch := range channels {
		args = append(args, ch)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []readings.Reading
	for rows.Next() {
		var read readings.Reading
		if err := rows.Scan(&read.Channel, &read.Start, &read.End, &read.Value, &read.QualityMethod); err != nil {
			return nil, err
		}
		out = append(out, read)
	}
	return out, rows.Err()
}

// DeleteMeter closes and removes a meter's database file.
func (s *Store) DeleteMeter(ctx context.Context, meterID string) error {
	_ = ctx
	if !validMeterID(meterID) {
		return fmt.Errorf("%w: %q", ErrBadMeterID, meterID)
	}

	s.mu.Lock()
	if db, ok := s.dbs[meterID]; ok {
		_ = db.Close()
		delete(s.dbs, meterID)
	}
	s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("meter_%s.db", meterID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// UpsertDaily overwrites the row for tot.Day with fresh values.
func (s *Store) UpsertDaily(ctx context.Context, meterID string, tot rollup.DailyTotal) error {
	db, err := s.db(meterID)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO daily_totals (
	day, load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, estimated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (day) DO UPDATE SET
	load_total = excluded.load_total,
	control_total = excluded.control_total,
	export_total = excluded.export_total,
	load_peak1 = excluded.load_peak1,
	load_shoulder1 = excluded.load_shoulder1,
	load_peak2 = excluded.load_peak2,
	load_shoulder2 = excluded.load_shoulder2,
	estimated = excluded.estimated`,
		tot.Day.UTC(), tot.LoadTotal, tot.ControlTotal, tot.ExportTotal,
		tot.LoadPeak1, tot.LoadShoulder1, tot.LoadPeak2, tot.LoadShoulder2,
		tot.Estimated,
	)
	return err
}

// GetDaily loads one day.
func (s *Store) GetDaily(ctx context.Context, meterID string, day time.Time) (rollup.DailyTotal, error) {
	db, err := s.db(meterID)
	if err != nil {
		return rollup.DailyTotal{}, err
	}

	var tot rollup.DailyTotal
	err = db.QueryRowContext(ctx, `
SELECT day, load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, estimated
FROM daily_totals WHERE day = ?`, day.UTC()).Scan(
		&tot.Day, &tot.LoadTotal, &tot.ControlTotal, &tot.ExportTotal,
		&tot.LoadPeak1, &tot.LoadShoulder1, &tot.LoadPeak2, &tot.LoadShoulder2,
		&tot.Estimated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rollup.DailyTotal{}, rollup.ErrDailyNotFound
	}
	return tot, err
}

// ListDaily returns daily totals with start <= day < end, ordered by day.
func (s *Store) ListDaily(ctx context.Context, meterID string, start, end time.Time) ([]rollup.DailyTotal, error) {
	if !end.After(start) {
		return nil, rollup.ErrInvalidRange
	}
	db, err := s.db(meterID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT day, load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, estimated
FROM daily_totals WHERE day >= ? AND day < ?
ORDER BY day ASC`, start.UTC(), end.UTC())
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
func (s *Store) UpsertMonthly(ctx context.Context, meterID string, tot rollup.MonthlyTotal) error {
	db, err := s.db(meterID)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO monthly_totals (
	year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, demand
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (year, month) DO UPDATE SET
	num_days = excluded.num_days,
	days_with_data = excluded.days_with_data,
	load_total = excluded.load_total,
	control_total = excluded.control_total,
	export_total = excluded.export_total,
	load_peak1 = excluded.load_peak1,
	load_shoulder1 = excluded.load_shoulder1,
	load_peak2 = excluded.load_peak2,
	load_shoulder2 = excluded.load_shoulder2,
	demand = excluded.demand`,
		tot.Year, int(tot.Month), tot.NumDays, tot.DaysWithData,
		tot.LoadTotal, tot.ControlTotal, tot.ExportTotal,
		tot.LoadPeak1, tot.LoadShoulder1, tot.LoadPeak2, tot.LoadShoulder2,
		tot.Demand,
	)
	return err
}

// GetMonthly loads one month.
func (s *Store) GetMonthly(ctx context.Context, meterID string, year int, month time.Month) (rollup.MonthlyTotal, error) {
	db, err := s.db(meterID)
	if err != nil {
		return rollup.MonthlyTotal{}, err
	}

	tot, err := scanMonthly(db.QueryRowContext(ctx, `
SELECT year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, demand
FROM monthly_totals WHERE year = ? AND month = ?`, year, int(month)))
	if errors.Is(err, sql.ErrNoRows) {
		return rollup.MonthlyTotal{}, rollup.ErrMonthlyNotFound
	}
	return tot, err
}

// ListMonthly returns a year's monthly totals ordered by month.
func (s *Store) ListMonthly(ctx context.Context, meterID string, year int) ([]rollup.MonthlyTotal, error) {
	db, err := s.db(meterID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT year, month, num_days, days_with_data,
	load_total, control_total, export_total,
	load_peak1, load_shoulder1, load_peak2, load_shoulder2, demand
FROM monthly_totals WHERE year = ?
ORDER BY month ASC`, year)
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

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
