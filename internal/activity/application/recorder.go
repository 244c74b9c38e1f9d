package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	activity "voip-monitor/internal/activity/domain"
	"voip-monitor/internal/observability/metrics"
)

// EntityFailure describes one entity that could not be recorded.
type EntityFailure struct {
	EntityID string
	Err      error
}

// TickReport summarizes a recording tick.
type TickReport struct {
	At       time.Time
	Date     time.Time
	Slot     int
	Recorded int
	Failures []EntityFailure
}

// Failed reports whether any entity failed.
func (r TickReport) Failed() bool {
	return len(r.Failures) > 0
}

// RecordTick writes one sample per monitored entity into today's buffer.
// A failing entity is logged and skipped; the returned error joins every failure.
func (s *Service) RecordTick(ctx context.Context, now time.Time) (TickReport, error) {
	if s == nil {
		return TickReport{}, errors.New("activity: nil service")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	local := now.In(s.Location())
	report := TickReport{
		At:   local,
		Date: activity.DateOf(local),
		Slot: activity.SlotIndex(local, s.granularity),
	}

	statuses, err := s.statuses.ListDeviceStatuses(ctx)
	if err != nil {
		s.logf("activity tick error: status source: %v", err)
		metrics.ObserveTick(0, 1, time.Since(started))
		return report, fmt.Errorf("activity: list statuses: %w", classify(err))
	}

	var errs []error
	for _, status := range statuses {
		if err := s.recordOne(ctx, report.Date, report.Slot, status); err != nil {
			err = classify(err)
			s.logf("activity tick error: entity=%s slot=%d err=%v", status.EntityID, report.Slot, err)
			report.Failures = append(report.Failures, EntityFailure{EntityID: status.EntityID, Err: err})
			errs = append(errs, fmt.Errorf("entity %s: %w", status.EntityID, err))
			continue
		}
		report.Recorded++
	}
	metrics.ObserveTick(report.Recorded, len(report.Failures), time.Since(started))
	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}

func (s *Service) recordOne(ctx context.Context, date time.Time, slot int, status activity.DeviceStatus) error {
	if status.EntityID == "" {
		return activity.ErrEmptyEntityID
	}
	if _, err := s.store.UpsertToday(ctx, status.EntityID, date); err != nil {
		return err
	}
	return s.store.WriteSample(ctx, status.EntityID, slot, activity.SampleFor(status.Online))
}
