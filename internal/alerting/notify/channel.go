package notify

import (
	"context"
	"errors"
	"fmt"
)

// Message is one consolidated notification.
type Message struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Channel delivers a rendered message.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// MultiChannel delivers to every configured channel.
// Delivery succeeds only when every channel succeeds.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel, ignoring nil channels.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	kept := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &MultiChannel{channels: kept}
}

// Len returns the number of channels.
func (m *MultiChannel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.channels)
}

// Send forwards msg to all channels and joins their errors.
func (m *MultiChannel) Send(ctx context.Context, msg Message) error {
	if m == nil || len(m.channels) == 0 {
		return errors.New("notify: no channels configured")
	}
	var errs []error
	for i, ch := range m.channels {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
