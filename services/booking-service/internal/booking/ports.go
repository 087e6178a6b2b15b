package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// UserDirectory resolves identities. The caller's userID is already
// authenticated by the excluded identity layer; the engine trusts it.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (model.User, bool, error)
	FindProviderByID(ctx context.Context, id string) (model.User, bool, error)
}

// AppointmentStore is the only shared mutable resource. Slot exclusivity is
// enforced inside Insert by a storage-level uniqueness constraint over active
// (provider, slot) rows; Insert returns ErrSlotUnavailable when that
// constraint rejects the row, which makes the engine's pre-check advisory.
type AppointmentStore interface {
	SlotTaken(ctx context.Context, providerID string, slot time.Time) (bool, error)
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	FindByID(ctx context.Context, id string) (model.Appointment, bool, error)
	// Cancel sets canceledAt and durably records the cancelled event carrying
	// the notice snapshot in the same transaction.
	Cancel(ctx context.Context, id string, canceledAt time.Time, notice model.CancelationNotice) (model.Appointment, error)
	ListActiveForUser(ctx context.Context, userID string, page int) ([]model.Appointment, error)
	ListActiveForProviderBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n model.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

// JobQueue accepts mail work. Enqueue returns once the job is durably
// recorded, not once delivered.
type JobQueue interface {
	Enqueue(ctx context.Context, job model.QueuedJob) error
}
