package activity

import "errors"

var (
	// ErrNotFound indicates a missing activity record.
	ErrNotFound = errors.New("activity: record not found")
	// ErrInvalidSlot indicates a slot index outside [0, SlotsPerDay).
	ErrInvalidSlot = errors.New("activity: invalid slot")
	// ErrInvalidDaySlot indicates a day slot other than today/yesterday.
	ErrInvalidDaySlot = errors.New("activity: invalid day slot")
	// ErrInvalidSample indicates a sample value other than 0 or 1.
	ErrInvalidSample = errors.New("activity: invalid sample value")
	// ErrEmptyEntityID indicates a missing entity id.
	ErrEmptyEntityID = errors.New("activity: empty entity id")
	// ErrStorageUnavailable wraps transient storage failures.
	ErrStorageUnavailable = errors.New("activity: storage unavailable")
	// ErrRotationFailed indicates the daily rotation was rolled back.
	ErrRotationFailed = errors.New("activity: rotation failed")
)
