package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	activity "voip-monitor/internal/activity/domain"
)

const defaultActivityTable = "activity_records"

// Store is a Postgres repository for daily activity buffers.
// Samples are kept in a JSONB array so a single slot can be set in one UPDATE.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore constructs a repository.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, table: defaultActivityTable}
}

// Get loads one buffer.
func (s *Store) Get(ctx context.Context, entityID string, daySlot activity.DaySlot) (*activity.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("activity store: nil db")
	}
	if entityID == "" {
		return nil, activity.ErrEmptyEntityID
	}
	if !daySlot.Valid() {
		return nil, activity.ErrInvalidDaySlot
	}
	row := s.db.QueryRowContext(ctx, `
SELECT entity_id, day_slot, activity_date, samples, created_at, updated_at
FROM activity_records
WHERE entity_id = $1 AND day_slot = $2
LIMIT 1`, entityID, int(daySlot))
	return scanRecord(row)
}

// UpsertToday inserts an all-zero today buffer unless one exists.
func (s *Store) UpsertToday(ctx context.Context, entityID string, date time.Time) (*activity.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("activity store: nil db")
	}
	if entityID == "" {
		return nil, activity.ErrEmptyEntityID
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activity_records (
	entity_id, day_slot, activity_date, samples, created_at, updated_at
) VALUES (
	$1, $2, $3, $4::jsonb, $5, $5
)
ON CONFLICT (entity_id, day_slot) DO NOTHING`,
		entityID, int(activity.DayToday), dateOnly(date), emptySamples(), now)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, entityID, activity.DayToday)
}

// WriteSample sets one slot of the today buffer in a single statement.
func (s *Store) WriteSample(ctx context.Context, entityID string, slot int, value activity.Sample) error {
	if s == nil || s.db == nil {
		return errors.New("activity store: nil db")
	}
	if entityID == "" {
		return activity.ErrEmptyEntityID
	}
	if !activity.ValidSlot(slot) {
		return activity.ErrInvalidSlot
	}
	if !value.Valid() {
		return activity.ErrInvalidSample
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE activity_records
SET samples = jsonb_set(samples, ARRAY[$3::text], to_jsonb($4::int), false),
	updated_at = $5
WHERE entity_id = $1 AND day_slot = $2`,
		entityID, int(activity.DayToday), strconv.Itoa(slot), int(value), time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return activity.ErrNotFound
	}
	return nil
}

// Rotate retires today into yesterday inside one transaction.
func (s *Store) Rotate(ctx context.Context, newDate time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("activity store: nil db")
	}
	if newDate.IsZero() {
		return errors.New("activity store: zero rotation date")
	}
	today := dateOnly(newDate)
	yesterday := today.AddDate(0, 0, -1)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `LOCK TABLE activity_records IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		_ = tx.Rollback()
		return err
	}
	entities, err := listEntities(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_records WHERE day_slot = $1`, int(activity.DayYesterday)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE activity_records
SET day_slot = $1, activity_date = $2, updated_at = $3
WHERE day_slot = $4`, int(activity.DayYesterday), yesterday, now, int(activity.DayToday)); err != nil {
		_ = tx.Rollback()
		return err
	}
	zeros := emptySamples()
	for _, entityID := range entities {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO activity_records (
	entity_id, day_slot, activity_date, samples, created_at, updated_at
) VALUES ($1, $2, $3, $4::jsonb, $5, $5)`,
			entityID, int(activity.DayToday), today, zeros, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("activity store: recreate %s: %w", entityID, err)
		}
	}
	return tx.Commit()
}

// ListEntities returns entity ids holding any record.
func (s *Store) ListEntities(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("activity store: nil db")
	}
	return listEntities(ctx, s.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listEntities(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT entity_id FROM activity_records ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*activity.Record, error) {
	var (
		record  activity.Record
		daySlot int
		raw     []byte
	)
	if err := row.Scan(
		&record.EntityID,
		&daySlot,
		&record.ActivityDate,
		&raw,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, activity.ErrNotFound
		}
		return nil, err
	}
	record.DaySlot = activity.DaySlot(daySlot)
	if err := json.Unmarshal(raw, &record.Samples); err != nil {
		return nil, fmt.Errorf("activity store: decode samples: %w", err)
	}
	if len(record.Samples) != activity.SlotsPerDay {
		return nil, fmt.Errorf("activity store: %s has %d samples", record.EntityID, len(record.Samples))
	}
	record.ActivityDate = dateOnly(record.ActivityDate)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

func emptySamples() string {
	raw, _ := json.Marshal(make([]activity.Sample, activity.SlotsPerDay))
	return string(raw)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
