package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerting "voip-monitor/internal/alerting/domain"
)

const defaultMarksTable = "notification_marks"

// Tracker stores notification marks in Postgres.
// Rows past expires_at are ignored by reads and removed by Sweep.
type Tracker struct {
	db    *sql.DB
	table string
}

// NewTracker constructs a repository.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db, table: defaultMarksTable}
}

// IsMarked reports whether key holds an unexpired mark.
func (t *Tracker) IsMarked(ctx context.Context, key string) (bool, error) {
	if t == nil || t.db == nil {
		return false, errors.New("mark store: nil db")
	}
	if key == "" {
		return false, alerting.ErrEmptyKey
	}
	var exists bool
	err := t.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM notification_marks
	WHERE key = $1 AND expires_at > $2
)`, key, time.Now().UTC()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Mark inserts or refreshes a mark.
func (t *Tracker) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if t == nil || t.db == nil {
		return errors.New("mark store: nil db")
	}
	if key == "" {
		return alerting.ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = alerting.DefaultMarkTTL
	}
	now := time.Now().UTC()
	_, err := t.db.ExecContext(ctx, `
INSERT INTO notification_marks (key, value, marked_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key)
DO UPDATE SET
	value = EXCLUDED.value,
	marked_at = EXCLUDED.marked_at,
	expires_at = EXCLUDED.expires_at`,
		key, alerting.MarkValue, now, now.Add(ttl))
	return err
}

// Clear deletes a mark.
func (t *Tracker) Clear(ctx context.Context, key string) error {
	if t == nil || t.db == nil {
		return errors.New("mark store: nil db")
	}
	if key == "" {
		return alerting.ErrEmptyKey
	}
	_, err := t.db.ExecContext(ctx, `DELETE FROM notification_marks WHERE key = $1`, key)
	return err
}

// ResetAll deletes every mark and returns how many were live.
func (t *Tracker) ResetAll(ctx context.Context) (int, error) {
	if t == nil || t.db == nil {
		return 0, errors.New("mark store: nil db")
	}
	var live int
	err := t.db.QueryRowContext(ctx, `
WITH deleted AS (
	DELETE FROM notification_marks RETURNING expires_at
)
SELECT COUNT(*) FROM deleted WHERE expires_at > $1`, time.Now().UTC()).Scan(&live)
	if err != nil {
		return 0, err
	}
	return live, nil
}

// Get loads one unexpired mark.
func (t *Tracker) Get(ctx context.Context, key string) (*alerting.Mark, error) {
	if t == nil || t.db == nil {
		return nil, errors.New("mark store: nil db")
	}
	if key == "" {
		return nil, alerting.ErrEmptyKey
	}
	row := t.db.QueryRowContext(ctx, `
SELECT key, value, marked_at, expires_at
FROM notification_marks
WHERE key = $1 AND expires_at > $2`, key, time.Now().UTC())
	mark, err := scanMark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alerting.ErrNotFound
		}
		return nil, err
	}
	return mark, nil
}

// List returns unexpired marks ordered by key.
func (t *Tracker) List(ctx context.Context) ([]alerting.Mark, error) {
	if t == nil || t.db == nil {
		return nil, errors.New("mark store: nil db")
	}
	rows, err := t.db.QueryContext(ctx, `
SELECT key, value, marked_at, expires_at
FROM notification_marks
WHERE expires_at > $1
ORDER BY key`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []alerting.Mark
	for rows.Next() {
		mark, err := scanMark(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *mark)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Sweep deletes expired marks.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	if t == nil || t.db == nil {
		return 0, errors.New("mark store: nil db")
	}
	result, err := t.db.ExecContext(ctx, `DELETE FROM notification_marks WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMark(row rowScanner) (*alerting.Mark, error) {
	var mark alerting.Mark
	if err := row.Scan(&mark.Key, &mark.Value, &mark.MarkedAt, &mark.ExpiresAt); err != nil {
		return nil, err
	}
	mark.MarkedAt = mark.MarkedAt.UTC()
	mark.ExpiresAt = mark.ExpiresAt.UTC()
	return &mark, nil
}
