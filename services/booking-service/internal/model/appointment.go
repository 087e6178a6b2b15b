package model

import "time"

// Appointment reserves one hour-slot of a provider's calendar for a client.
// Cancellation is a soft state transition; rows are never deleted.
type Appointment struct {
	ID         string
	UserID     string
	ProviderID string
	Date       time.Time
	CanceledAt *time.Time
	CreatedAt  time.Time
}

// Past reports whether the appointment's slot is already behind now.
func (a Appointment) Past(now time.Time) bool {
	return a.Date.Before(now)
}

// Cancelable reports whether the appointment may still be canceled: it must be
// active and now must be strictly earlier than two hours before the slot.
func (a Appointment) Cancelable(now time.Time) bool {
	if a.CanceledAt != nil {
		return false
	}
	return now.Before(a.Date.Add(-CancelWindow))
}

// CancelWindow is the protection window before the slot during which an
// appointment can no longer be canceled.
const CancelWindow = 2 * time.Hour
