package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ErrInvalidRecord is returned when a record lacks its id or device.
var ErrInvalidRecord = errors.New("capture: invalid record")

// Repository persists capture history.
type Repository interface {
	Record(ctx context.Context, rec Record) error
	List(ctx context.Context, deviceID string, limit int) ([]Record, error)
	NextSequence(ctx context.Context, alias string) (int, error)
}

// SQLiteRepository keeps capture history in the captures table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts rec. Recording the same exposure id twice is an error.
func (r *SQLiteRepository) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" || rec.DeviceID == "" {
		return fmt.Errorf("%w: id and device id are required", ErrInvalidRecord)
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO captures (id, device_id, device_name, device_alias, sequence, file, state,
			length, width, height, bin, format, error, artifact_error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.DeviceName, rec.DeviceAlias, rec.Sequence, rec.File, rec.State,
		rec.Length, rec.Width, rec.Height, rec.Bin, rec.Format, rec.Error, rec.ArtifactError,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting capture %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent captures of deviceID, newest first. A
// non-positive limit selects the default.
func (r *SQLiteRepository) List(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, device_name, device_alias, sequence, file, state, length, width, height,
			bin, format, error, artifact_error, started_at, finished_at
		 FROM captures WHERE device_id = ?
		 ORDER BY finished_at DESC, rowid DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var startedAt, finishedAt string
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.DeviceName, &rec.DeviceAlias, &rec.Sequence, &rec.File,
			&rec.State, &rec.Length, &rec.Width, &rec.Height, &rec.Bin, &rec.Format,
			&rec.Error, &rec.ArtifactError, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating captures: %w", err)
	}
	return records, nil
}

// NextSequence returns one past the highest sequence written by the camera
// with alias, or 1 when it has none.
func (r *SQLiteRepository) NextSequence(ctx context.Context, alias string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM captures WHERE device_alias = ? AND file != ''`,
		alias,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("reading capture sequence: %w", err)
	}
	return next, nil
}
