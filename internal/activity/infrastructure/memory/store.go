package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	activity "voip-monitor/internal/activity/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type recordKey struct {
	entityID string
	daySlot  activity.DaySlot
}

// Store is an in-memory activity store for demo/testing.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]*activity.Record
	clock   Clock
}

// NewStore constructs a store. A nil clock uses the system clock.
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		records: make(map[recordKey]*activity.Record),
		clock:   clock,
	}
}

// Get returns a copy of the record.
func (s *Store) Get(ctx context.Context, entityID string, daySlot activity.DaySlot) (*activity.Record, error) {
	_ = ctx
	if entityID == "" {
		return nil, activity.ErrEmptyEntityID
	}
	if !daySlot.Valid() {
		return nil, activity.ErrInvalidDaySlot
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record := s.records[recordKey{entityID, daySlot}]
	if record == nil {
		return nil, activity.ErrNotFound
	}
	return record.Clone(), nil
}

// UpsertToday returns the existing today buffer or creates an all-zero one.
func (s *Store) UpsertToday(ctx context.Context, entityID string, date time.Time) (*activity.Record, error) {
	_ = ctx
	if entityID == "" {
		return nil, activity.ErrEmptyEntityID
	}
	key := recordKey{entityID, activity.DayToday}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[key]
	if record == nil {
		record = activity.NewRecord(entityID, activity.DayToday, date, s.clock.Now().UTC())
		s.records[key] = record
	}
	return record.Clone(), nil
}

// WriteSample sets one slot of the today buffer.
func (s *Store) WriteSample(ctx context.Context, entityID string, slot int, value activity.Sample) error {
	_ = ctx
	if entityID == "" {
		return activity.ErrEmptyEntityID
	}
	if !activity.ValidSlot(slot) {
		return activity.ErrInvalidSlot
	}
	if !value.Valid() {
		return activity.ErrInvalidSample
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[recordKey{entityID, activity.DayToday}]
	if record == nil {
		return activity.ErrNotFound
	}
	record.Samples[slot] = value
	record.UpdatedAt = s.clock.Now().UTC()
	return nil
}

// Rotate demotes today to yesterday and starts fresh buffers dated newDate.
// The new generation is built aside and swapped in one step.
func (s *Store) Rotate(ctx context.Context, newDate time.Time) error {
	_ = ctx
	if newDate.IsZero() {
		return activity.ErrRotationFailed
	}
	today := activity.DateOf(newDate)
	yesterday := today.AddDate(0, 0, -1)
	now := s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[recordKey]*activity.Record, len(s.records))
	entities := make(map[string]struct{})
	for key, record := range s.records {
		entities[key.entityID] = struct{}{}
		if key.daySlot != activity.DayToday {
			continue
		}
		demoted := record.Clone()
		demoted.DaySlot = activity.DayYesterday
		demoted.ActivityDate = yesterday
		demoted.UpdatedAt = now
		next[recordKey{key.entityID, activity.DayYesterday}] = demoted
	}
	for entityID := range entities {
		next[recordKey{entityID, activity.DayToday}] = activity.NewRecord(entityID, activity.DayToday, today, now)
	}
	s.records = next
	return nil
}

// ListEntities returns entity ids holding any record.
func (s *Store) ListEntities(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	seen := make(map[string]struct{})
	for key := range s.records {
		seen[key.entityID] = struct{}{}
	}
	s.mu.RUnlock()
	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
