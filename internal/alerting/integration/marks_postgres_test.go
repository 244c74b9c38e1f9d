package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	alerting "voip-monitor/internal/alerting/domain"
	markrepo "voip-monitor/internal/alerting/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestNotificationMarks_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "notification_marks") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM notification_marks")

	tracker := markrepo.NewTracker(db)
	building := alerting.BuildingKey("it-b1")
	device := alerting.DeviceKey("it-d1")
	stale := alerting.DeviceKey("it-stale")

	if err := tracker.Mark(ctx, building, time.Hour); err != nil {
		t.Fatalf("mark building: %v", err)
	}
	if err := tracker.Mark(ctx, device, time.Hour); err != nil {
		t.Fatalf("mark device: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := db.ExecContext(ctx, `
INSERT INTO notification_marks (key, value, marked_at, expires_at)
VALUES ($1, 'sent', $2, $3)`, stale, past.Add(-time.Hour), past); err != nil {
		t.Fatalf("seed expired mark: %v", err)
	}

	marked, err := tracker.IsMarked(ctx, building)
	if err != nil || !marked {
		t.Fatalf("expected building marked, got %v %v", marked, err)
	}
	marked, err = tracker.IsMarked(ctx, stale)
	if err != nil || marked {
		t.Fatalf("expected expired mark to be ignored, got %v %v", marked, err)
	}
	if _, err := tracker.Get(ctx, stale); !errors.Is(err, alerting.ErrNotFound) {
		t.Fatalf("expected not found for expired mark, got %v", err)
	}
	marks, err := tracker.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 2 || marks[0].Key != building || marks[1].Key != device {
		t.Fatalf("unexpected live marks %+v", marks)
	}

	first, err := tracker.Get(ctx, device)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if err := tracker.Mark(ctx, device, 48*time.Hour); err != nil {
		t.Fatalf("refresh device: %v", err)
	}
	refreshed, err := tracker.Get(ctx, device)
	if err != nil {
		t.Fatalf("get refreshed: %v", err)
	}
	if !refreshed.ExpiresAt.After(first.ExpiresAt.Add(24*time.Hour)) || refreshed.Value != alerting.MarkValue {
		t.Fatalf("expected refreshed expiry, got %s (was %s)", refreshed.ExpiresAt, first.ExpiresAt)
	}

	if err := tracker.Clear(ctx, device); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if marked, _ := tracker.IsMarked(ctx, device); marked {
		t.Fatalf("expected device cleared")
	}

	removed, err := tracker.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired mark swept, got %d", removed)
	}
	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_marks").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected only the building mark left, got %d rows", rows)
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO notification_marks (key, value, marked_at, expires_at)
VALUES ($1, 'sent', $2, $3)`, stale, past.Add(-time.Hour), past); err != nil {
		t.Fatalf("reseed expired mark: %v", err)
	}
	cleared, err := tracker.ResetAll(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected reset to count only the live mark, got %d", cleared)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_marks").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected empty table after reset, got %d rows", rows)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
