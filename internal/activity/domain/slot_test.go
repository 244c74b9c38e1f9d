package activity

import (
	"testing"
	"time"
)

func TestSlotIndexBounds(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	prev := -1
	for minute := 0; minute < 24*60; minute++ {
		now := day.Add(time.Duration(minute) * time.Minute)
		slot := SlotIndex(now, DefaultGranularityMinutes)
		if slot < 0 || slot > SlotsPerDay-1 {
			t.Fatalf("slot %d out of range at %s", slot, now.Format("15:04"))
		}
		if slot < prev {
			t.Fatalf("slot decreased at %s: %d < %d", now.Format("15:04"), slot, prev)
		}
		prev = slot
	}
	if prev != SlotsPerDay-1 {
		t.Fatalf("expected last slot %d, got %d", SlotsPerDay-1, prev)
	}
}

func TestSlotIndexKnownInstants(t *testing.T) {
	cases := []struct {
		hour, minute int
		want         int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{0, 5, 1},
		{0, 50, 10},
		{1, 0, 12},
		{12, 0, 144},
		{23, 59, 287},
	}
	for _, tc := range cases {
		now := time.Date(2026, 3, 9, tc.hour, tc.minute, 59, 0, time.UTC)
		if got := SlotIndex(now, 5); got != tc.want {
			t.Fatalf("%02d:%02d: expected slot %d, got %d", tc.hour, tc.minute, tc.want, got)
		}
	}
}

func TestSlotIndexClampsFineGranularity(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	if got := SlotIndex(now, 1); got != SlotsPerDay-1 {
		t.Fatalf("expected clamp to %d, got %d", SlotsPerDay-1, got)
	}
	if got := SlotIndex(now, 7); got != 205 {
		t.Fatalf("expected 205 for 7 minute slots, got %d", got)
	}
	if got := SlotIndex(now, 0); got != 287 {
		t.Fatalf("expected default granularity, got %d", got)
	}
}

func TestSlotIndexUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	utc := time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC)
	if got := SlotIndex(utc.In(loc), 5); got != 6 {
		t.Fatalf("expected slot 6 in UTC+7, got %d", got)
	}
}

func TestRecordAvailability(t *testing.T) {
	record := NewRecord("dev-1", DayToday, time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC), time.Now())
	if len(record.Samples) != SlotsPerDay {
		t.Fatalf("expected %d samples, got %d", SlotsPerDay, len(record.Samples))
	}
	if !record.ActivityDate.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected truncated date, got %s", record.ActivityDate)
	}
	record.Samples[0] = SampleOnline
	record.Samples[1] = SampleOnline
	if got := record.Availability(4); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := record.OnlineSlots(); got != 2 {
		t.Fatalf("expected 2 online slots, got %d", got)
	}
	clone := record.Clone()
	clone.Samples[0] = SampleOffline
	if record.Samples[0] != SampleOnline {
		t.Fatalf("clone shares samples with original")
	}
}
