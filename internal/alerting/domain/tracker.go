package alerting

import (
	"context"
	"time"
)

// DefaultMarkTTL is the expiry horizon of a mark.
const DefaultMarkTTL = 30 * 24 * time.Hour

// MarkValue is the value stored with every mark.
const MarkValue = "sent"

// Tracker stores "already notified" marks with expiry.
// Expired marks are never reported as marked.
type Tracker interface {
	IsMarked(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
	ResetAll(ctx context.Context) (int, error)
	Get(ctx context.Context, key string) (*Mark, error)
	List(ctx context.Context) ([]Mark, error)
	Sweep(ctx context.Context) (int, error)
}
