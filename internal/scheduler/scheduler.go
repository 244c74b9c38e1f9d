package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	activityapp "voip-monitor/internal/activity/application"
	alertapp "voip-monitor/internal/alerting/application"
)

// Recorder records one activity tick.
type Recorder interface {
	RecordTick(ctx context.Context, now time.Time) (activityapp.TickReport, error)
}

// Rotator rotates daily buffers.
type Rotator interface {
	RotateDay(ctx context.Context, now time.Time) error
}

// Dispatcher runs one notification cycle.
type Dispatcher interface {
	RunCycle(ctx context.Context, now time.Time) (alertapp.CycleReport, error)
}

// Sweeper drops expired notification marks.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config defines job cadence.
type Config struct {
	RecordEvery   time.Duration
	DispatchEvery time.Duration
	SweepEvery    time.Duration
	RotateAt      string
	JobTimeout    time.Duration
}

// Scheduler runs the monitor jobs. Every job is singleton: a run that is
// still in progress when the next one is due makes the next one wait.
type Scheduler struct {
	cron       *gocron.Scheduler
	recorder   Recorder
	rotator    Rotator
	dispatcher Dispatcher
	sweeper    Sweeper
	timeout    time.Duration
	logger     *log.Logger
}

// New registers the jobs on a scheduler running in loc.
// Nil collaborators leave their job unscheduled.
func New(loc *time.Location, cfg Config, recorder Recorder, rotator Rotator, dispatcher Dispatcher, sweeper Sweeper, logger *log.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:       gocron.NewScheduler(loc),
		recorder:   recorder,
		rotator:    rotator,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		timeout:    cfg.JobTimeout,
		logger:     logger,
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}
	s.cron.SingletonModeAll()

	if recorder != nil {
		if cfg.RecordEvery <= 0 {
			return nil, errors.New("scheduler: record interval must be positive")
		}
		first := nextSlotMidpoint(time.Now().In(loc), cfg.RecordEvery)
		if _, err := s.cron.Every(cfg.RecordEvery).StartAt(first).Tag("record").Do(s.runRecord); err != nil {
			return nil, fmt.Errorf("scheduler: record job: %w", err)
		}
	}
	if rotator != nil {
		if _, err := time.Parse("15:04", cfg.RotateAt); err != nil {
			return nil, fmt.Errorf("scheduler: rotate_at %q: %w", cfg.RotateAt, err)
		}
		if _, err := s.cron.Every(1).Day().At(cfg.RotateAt).WaitForSchedule().Tag("rotate").Do(s.runRotate); err != nil {
			return nil, fmt.Errorf("scheduler: rotate job: %w", err)
		}
	}
	if dispatcher != nil {
		if cfg.DispatchEvery <= 0 {
			return nil, errors.New("scheduler: dispatch interval must be positive")
		}
		if _, err := s.cron.Every(cfg.DispatchEvery).Tag("dispatch").Do(s.runDispatch); err != nil {
			return nil, fmt.Errorf("scheduler: dispatch job: %w", err)
		}
	}
	if sweeper != nil && cfg.SweepEvery > 0 {
		if _, err := s.cron.Every(cfg.SweepEvery).Tag("sweep").Do(s.runSweep); err != nil {
			return nil, fmt.Errorf("scheduler: sweep job: %w", err)
		}
	}
	return s, nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	if s == nil || s.cron == nil {
		return 0
	}
	return s.cron.Len()
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.StartAsync()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Stop()
}

func (s *Scheduler) runRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	report, err := s.recorder.RecordTick(ctx, time.Now())
	if err != nil {
		s.logf("record job error: recorded=%d failed=%d err=%v", report.Recorded, len(report.Failures), err)
	}
}

func (s *Scheduler) runRotate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.rotator.RotateDay(ctx, time.Now()); err != nil {
		s.logf("rotate job error: %v", err)
	}
}

func (s *Scheduler) runDispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	report, err := s.dispatcher.RunCycle(ctx, time.Now())
	if err != nil {
		s.logf("dispatch job error: cycle=%s err=%v", report.ID, err)
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.logf("sweep job error: %v", err)
	}
}

// nextSlotMidpoint returns the first midpoint of an interval-wide slot after now.
// Slots are counted from local midnight so record ticks land inside distinct slots.
func nextSlotMidpoint(now time.Time, interval time.Duration) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	slot := now.Sub(midnight) / interval
	next := midnight.Add(slot*interval + interval/2)
	if !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

func (s *Scheduler) logf(format string, args ...any) {
	if s != nil && s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
