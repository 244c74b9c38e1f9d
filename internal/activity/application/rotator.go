package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	activity "voip-monitor/internal/activity/domain"
	"voip-monitor/internal/observability/metrics"
)

// RotateDay retires today's buffers into yesterday and starts the day containing now.
// The store applies the rotation atomically; any failure leaves the previous state intact.
func (s *Service) RotateDay(ctx context.Context, now time.Time) error {
	if s == nil {
		return errors.New("activity: nil service")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	today := activity.DateOf(now.In(s.Location()))
	if err := s.store.Rotate(ctx, today); err != nil {
		metrics.ObserveRotation(metrics.ResultError, time.Since(started))
		s.logf("ACTIVITY ROTATION FAILED: date=%s err=%v", today.Format("2006-01-02"), err)
		return fmt.Errorf("%w: %s: %w", activity.ErrRotationFailed, today.Format("2006-01-02"), err)
	}
	metrics.ObserveRotation(metrics.ResultSuccess, time.Since(started))
	s.logf("activity rotated: today=%s yesterday=%s", today.Format("2006-01-02"), today.AddDate(0, 0, -1).Format("2006-01-02"))
	return nil
}
