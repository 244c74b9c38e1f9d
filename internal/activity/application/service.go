package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	activity "voip-monitor/internal/activity/domain"
)

// StatusSource lists the live status of every monitored entity.
type StatusSource interface {
	ListDeviceStatuses(ctx context.Context) ([]activity.DeviceStatus, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service records activity samples and rotates daily buffers.
// RecordTick and RotateDay share one lock, so ticks never overlap each other or a rotation.
type Service struct {
	store       activity.Store
	statuses    StatusSource
	location    *time.Location
	granularity int
	logger      *log.Logger
	clock       Clock
	mu          sync.Mutex
}

// Option customizes the service.
type Option func(*Service)

// WithLocation sets the zone that defines the dashboard's calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithGranularity overrides the slot width in minutes.
func WithGranularity(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 {
			s.granularity = minutes
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs an activity service.
func NewService(store activity.Store, statuses StatusSource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("activity: nil store")
	}
	if statuses == nil {
		return nil, errors.New("activity: nil status source")
	}
	s := &Service{
		store:       store,
		statuses:    statuses,
		location:    time.UTC,
		granularity: activity.DefaultGranularityMinutes,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetActivity returns one buffer for rendering. Missing data yields activity.ErrNotFound.
func (s *Service) GetActivity(ctx context.Context, entityID string, daySlot activity.DaySlot) (*activity.Record, error) {
	if s == nil {
		return nil, errors.New("activity: nil service")
	}
	return s.store.Get(ctx, entityID, daySlot)
}

// ListEntities returns entities that hold activity data.
func (s *Service) ListEntities(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, errors.New("activity: nil service")
	}
	return s.store.ListEntities(ctx)
}

// Location returns the zone defining the calendar day.
func (s *Service) Location() *time.Location {
	if s == nil || s.location == nil {
		return time.UTC
	}
	return s.location
}

// Now returns the service clock in the dashboard zone.
func (s *Service) Now() time.Time {
	return s.clock.Now().In(s.Location())
}

func (s *Service) logf(format string, args ...any) {
	if s != nil && s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, activity.ErrInvalidSlot),
		errors.Is(err, activity.ErrInvalidSample),
		errors.Is(err, activity.ErrEmptyEntityID),
		errors.Is(err, activity.ErrNotFound),
		errors.Is(err, activity.ErrStorageUnavailable):
		return err
	default:
		return errors.Join(activity.ErrStorageUnavailable, err)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
