package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	readings "meterbill/internal/readings/domain"
)

const defaultReadingsTable = "meter_readings"

// Repository is a Postgres implementation of the reading store. Rows are
// scoped by meter id; the primary key is (meter_id, channel, read_start,
// read_end) so re-inserting an existing reading is a no-op.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs a repository with the default table name.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EnsureSchema creates the readings table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("readings repo: nil db")
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	meter_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	read_start TIMESTAMPTZ NOT NULL,
	read_end TIMESTAMPTZ NOT NULL,
	read_value DOUBLE PRECISION NOT NULL,
	quality_method TEXT,
	PRIMARY KEY (meter_id, channel, read_start, read_end)
)`, r.table)
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Insert stores readings inside one transaction, skipping existing keys.
func (r *Repository) Insert(ctx context.Context, meterID string, batch []readings.Reading) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("readings repo: nil db")
	}
	if meterID == "" {
		return 0, readings.ErrEmptyMeterID
	}
	if len(batch) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	meter_id,
	channel,
	read_start,
	read_end,
	read_value,
	quality_method
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (meter_id, channel, read_start, read_end) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, read := range batch {
		quality := sql.NullString{}
		if read.QualityMethod != "" {
			quality = sql.NullString{String: read.QualityMethod, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, meterID, read.Channel, read.Start, read.End, read.Value, quality)
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
func (r *Repository) DataRange(ctx context.Context, meterID string) (time.Time, time.Time, bool, error) {
	if r == nil || r.db == nil {
		return time.Time{}, time.Time{}, false, errors.New("readings repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT MIN(read_start), MAX(read_end)
FROM %s
WHERE meter_id = $1`, r.table)

	var first, last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, meterID).Scan(&first, &last); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if !first.Valid || !last.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return first.Time, last.Time, true, nil
}

// Query returns readings on the given channels inside [start, end], ordered by start.
func (r *Repository) Query(ctx context.Context, meterID string, channels []string, start, end time.Time) ([]readings.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("readings repo: nil db")
	}
	if len(channels) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(channels))
	args := []any{meterID, start, end}
	for i, ch := range channels {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, ch)
	}

	query := fmt.Sprintf(`
SELECT channel, read_start, read_end, read_value, quality_method
FROM %s
WHERE meter_id = $1
	AND read_start >= $2
	AND read_end <= $3
	AND channel IN (%s)
ORDER BY read_start ASC, channel ASC`, r.table, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []readings.Reading
	for rows.Next() {
		var read readings.Reading
		var quality sql.NullString
		if err := rows.Scan(&read.Channel, &read.Start, &read.End, &read.Value, &quality); err != nil {
			return nil, err
		}
		read.QualityMethod = quality.String
		out = append(out, read)
	}
	return out, rows.Err()
}

// DeleteMeter removes every reading held for a meter.
func (r *Repository) DeleteMeter(ctx context.Context, meterID string) error {
	if r == nil || r.db == nil {
		return errors.New("readings repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE meter_id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, meterID)
	return err
}
