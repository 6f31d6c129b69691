package webhooks

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFound is returned when a webhook event row does not exist.
	ErrEventNotFound = errors.New("webhook event not found")
	// ErrStatusConflict is returned when a guarded status transition lost
	// against a concurrent writer.
	ErrStatusConflict = errors.New("webhook event status changed concurrently")
	// ErrLocked is returned when another worker holds the lock on the event or
	// on its logical id.
	ErrLocked = errors.New("webhook event is locked by another worker")
	// ErrInvalidPayload is returned for bodies that cannot be stored or parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// ProcessingError wraps a domain handler failure after it was recorded on the
// event row.
type ProcessingError struct {
	EventID   string
	LogicalID string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing webhook event %s (%s): %v", e.EventID, e.LogicalID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
