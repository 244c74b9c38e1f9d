package alerting

import "errors"

var (
	// ErrNotFound indicates a missing notification mark.
	ErrNotFound = errors.New("alerting: not found")
	// ErrInvalidThresholds indicates thresholds outside [0,100] or upper <= lower.
	ErrInvalidThresholds = errors.New("alerting: invalid thresholds")
	// ErrDeliveryFailed indicates the consolidated message could not be sent.
	ErrDeliveryFailed = errors.New("alerting: delivery failed")
	// ErrNoRecipients indicates an empty recipient list.
	ErrNoRecipients = errors.New("alerting: no recipients")
	// ErrEmptyKey indicates a missing subject key.
	ErrEmptyKey = errors.New("alerting: empty key")
	// ErrStorageUnavailable wraps mark store failures.
	ErrStorageUnavailable = errors.New("alerting: storage unavailable")
)
