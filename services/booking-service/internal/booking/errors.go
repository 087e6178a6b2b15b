package booking

import "errors"

// Business-rule failures are sentinel errors so callers can map them to
// transport responses without string matching. Anything else returned by the
// engine is a dependency failure and wraps the underlying cause.
var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrPastDate        = errors.New("past date")
	ErrSlotUnavailable = errors.New("time slot not available")
	ErrNotFound        = errors.New("appointment not found")
	ErrNotOwner        = errors.New("appointment belongs to another user")
	ErrAlreadyCanceled = errors.New("appointment is already canceled")
	ErrTooLateToCancel = errors.New("appointment can no longer be canceled")
	ErrNotProvider     = errors.New("user is not a provider")
)
