package activity

import (
	"context"
	"time"
)

// DaySlot tags the rolling two-day window.
type DaySlot int

const (
	DayToday     DaySlot = 1
	DayYesterday DaySlot = 2
)

// Valid reports whether d is today or yesterday.
func (d DaySlot) Valid() bool {
	return d == DayToday || d == DayYesterday
}

func (d DaySlot) String() string {
	switch d {
	case DayToday:
		return "today"
	case DayYesterday:
		return "yesterday"
	default:
		return "unknown"
	}
}

// Sample is a single 5-minute observation.
type Sample int

const (
	SampleOffline Sample = 0
	SampleOnline  Sample = 1
)

// Valid reports whether s is 0 or 1.
func (s Sample) Valid() bool {
	return s == SampleOffline || s == SampleOnline
}

// SampleFor maps an observed status to a sample.
func SampleFor(online bool) Sample {
	if online {
		return SampleOnline
	}
	return SampleOffline
}

// Record is one entity's daily activity buffer.
type Record struct {
	EntityID     string    `json:"entity_id"`
	DaySlot      DaySlot   `json:"day_slot"`
	ActivityDate time.Time `json:"activity_date"`
	Samples      []Sample  `json:"samples"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRecord builds an all-zero buffer.
func NewRecord(entityID string, daySlot DaySlot, date time.Time, now time.Time) *Record {
	return &Record{
		EntityID:     entityID,
		DaySlot:      daySlot,
		ActivityDate: DateOf(date),
		Samples:      make([]Sample, SlotsPerDay),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy so callers cannot mutate stored buffers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Samples = make([]Sample, len(r.Samples))
	copy(out.Samples, r.Samples)
	return &out
}

// OnlineSlots counts slots recorded as online.
func (r *Record) OnlineSlots() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, s := range r.Samples {
		if s == SampleOnline {
			count++
		}
	}
	return count
}

// Availability returns the online share of the first upTo slots (all slots when upTo <= 0).
func (r *Record) Availability(upTo int) float64 {
	if r == nil || len(r.Samples) == 0 {
		return 0
	}
	if upTo <= 0 || upTo > len(r.Samples) {
		upTo = len(r.Samples)
	}
	online := 0
	for _, s := range r.Samples[:upTo] {
		if s == SampleOnline {
			online++
		}
	}
	return float64(online) / float64(upTo)
}

// DeviceStatus is the live status of one monitored entity.
type DeviceStatus struct {
	EntityID string
	Online   bool
}

// Store persists per-entity daily buffers.
type Store interface {
	Get(ctx context.Context, entityID string, daySlot DaySlot) (*Record, error)
	UpsertToday(ctx context.Context, entityID string, date time.Time) (*Record, error)
	WriteSample(ctx context.Context, entityID string, slot int, value Sample) error
	Rotate(ctx context.Context, newDate time.Time) error
	ListEntities(ctx context.Context) ([]string, error)
}
