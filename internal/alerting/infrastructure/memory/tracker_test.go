package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alerting "voip-monitor/internal/alerting/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTrackerMarkAndExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)}
	tracker := NewTracker(WithClock(clock))

	key := alerting.BuildingKey("B")
	if marked, _ := tracker.IsMarked(ctx, key); marked {
		t.Fatalf("expected unmarked")
	}
	if err := tracker.Mark(ctx, key, time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if marked, _ := tracker.IsMarked(ctx, key); !marked {
		t.Fatalf("expected marked")
	}
	mark, err := tracker.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mark.Value != alerting.MarkValue || !mark.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected mark %+v", mark)
	}

	clock.Add(time.Hour)
	if marked, _ := tracker.IsMarked(ctx, key); marked {
		t.Fatalf("expected mark to expire without a sweep")
	}
	if _, err := tracker.Get(ctx, key); !errors.Is(err, alerting.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTrackerClearResetSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)}
	tracker := NewTracker(WithClock(clock))

	_ = tracker.Mark(ctx, alerting.BuildingKey("1"), time.Minute)
	_ = tracker.Mark(ctx, alerting.DeviceKey("d1"), 2*time.Hour)
	_ = tracker.Mark(ctx, alerting.DeviceKey("d2"), 0)

	if err := tracker.Clear(ctx, alerting.DeviceKey("d1")); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := tracker.Clear(ctx, alerting.DeviceKey("missing")); err != nil {
		t.Fatalf("clear absent key: %v", err)
	}
	clock.Add(2 * time.Minute)

	marks, _ := tracker.List(ctx)
	if len(marks) != 1 || marks[0].Key != "device:d2" {
		t.Fatalf("unexpected marks %+v", marks)
	}
	removed, _ := tracker.Sweep(ctx)
	if removed != 1 {
		t.Fatalf("expected 1 swept, got %d", removed)
	}
	reset, _ := tracker.ResetAll(ctx)
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}
	if marks, _ := tracker.List(ctx); len(marks) != 0 {
		t.Fatalf("expected no marks after reset")
	}
}

func TestTrackerRejectsEmptyKey(t *testing.T) {
	tracker := NewTracker()
	if err := tracker.Mark(context.Background(), "", time.Hour); !errors.Is(err, alerting.ErrEmptyKey) {
		t.Fatalf("expected empty key error, got %v", err)
	}
}
