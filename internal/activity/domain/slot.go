package activity

import "time"

const (
	// SlotsPerDay is the number of samples in a daily buffer.
	SlotsPerDay = 288
	// DefaultGranularityMinutes is the width of one slot.
	DefaultGranularityMinutes = 5

	minutesPerDay = 24 * 60
)

// SlotIndex returns the slot of the day that contains now.
// Hour and minute are read in now's location; callers convert to the dashboard zone first.
func SlotIndex(now time.Time, granularityMinutes int) int {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	minutes := now.Hour()*60 + now.Minute()
	if minutes >= minutesPerDay {
		minutes = minutesPerDay - 1
	}
	slot := minutes / granularityMinutes
	if slot > SlotsPerDay-1 {
		slot = SlotsPerDay - 1
	}
	if slot < 0 {
		slot = 0
	}
	return slot
}

// SlotStart returns the wall-clock offset from midnight at which slot begins.
func SlotStart(slot int) time.Duration {
	return time.Duration(slot*DefaultGranularityMinutes) * time.Minute
}

// ValidSlot reports whether slot addresses a sample in a daily buffer.
func ValidSlot(slot int) bool {
	return slot >= 0 && slot < SlotsPerDay
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
