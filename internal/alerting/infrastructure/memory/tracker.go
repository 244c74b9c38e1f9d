package memory

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	alerting "voip-monitor/internal/alerting/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Tracker keeps notification marks in a map with expiry.
type Tracker struct {
	mu     sync.Mutex
	marks  map[string]alerting.Mark
	clock  Clock
	logger *log.Logger
}

// Option configures the tracker.
type Option func(*Tracker)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger assigns a logger for the sweep loop.
func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker constructs an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		marks: make(map[string]alerting.Mark),
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsMarked reports whether key holds an unexpired mark.
func (t *Tracker) IsMarked(ctx context.Context, key string) (bool, error) {
	_ = ctx
	if key == "" {
		return false, alerting.ErrEmptyKey
	}
	now := t.clock.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	mark, ok := t.marks[key]
	if !ok {
		return false, nil
	}
	if mark.Expired(now) {
		delete(t.marks, key)
		return false, nil
	}
	return true, nil
}

// Mark sets key as notified until ttl elapses. A non-positive ttl uses the default.
func (t *Tracker) Mark(ctx context.Context, key string, ttl time.Duration) error {
	_ = ctx
	if key == "" {
		return alerting.ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = alerting.DefaultMarkTTL
	}
	now := t.clock.Now().UTC()
	t.mu.Lock()
	t.marks[key] = alerting.Mark{
		Key:       key,
		Value:     alerting.MarkValue,
		MarkedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	t.mu.Unlock()
	return nil
}

// Clear removes the mark. Clearing an absent key is not an error.
func (t *Tracker) Clear(ctx context.Context, key string) error {
	_ = ctx
	if key == "" {
		return alerting.ErrEmptyKey
	}
	t.mu.Lock()
	delete(t.marks, key)
	t.mu.Unlock()
	return nil
}

// ResetAll drops every mark and returns how many were live.
func (t *Tracker) ResetAll(ctx context.Context) (int, error) {
	_ = ctx
	now := t.clock.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	live := 0
	for _, mark := range t.marks {
		if !mark.Expired(now) {
			live++
		}
	}
	t.marks = make(map[string]alerting.Mark)
	return live, nil
}

// Get returns one unexpired mark.
func (t *Tracker) Get(ctx context.Context, key string) (*alerting.Mark, error) {
	_ = ctx
	if key == "" {
		return nil, alerting.ErrEmptyKey
	}
	now := t.clock.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	mark, ok := t.marks[key]
	if !ok || mark.Expired(now) {
		return nil, alerting.ErrNotFound
	}
	return &mark, nil
}

// List returns unexpired marks ordered by key.
func (t *Tracker) List(ctx context.Context) ([]alerting.Mark, error) {
	_ = ctx
	now := t.clock.Now().UTC()
	t.mu.Lock()
	result := make([]alerting.Mark, 0, len(t.marks))
	for _, mark := range t.marks {
		if !mark.Expired(now) {
			result = append(result, mark)
		}
	}
	t.mu.Unlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Sweep deletes expired marks.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	_ = ctx
	now := t.clock.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, mark := range t.marks {
		if mark.Expired(now) {
			delete(t.marks, key)
			removed++
		}
	}
	return removed, nil
}

// Start sweeps expired marks every interval until ctx is done.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if t == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, _ := t.Sweep(ctx)
				if removed > 0 && t.logger != nil {
					t.logger.Printf("notification marks swept: %d", removed)
				}
			}
		}
	}()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
