package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/schedule"
)

const pageSize = 20

// Engine holds the booking and cancellation business rules. It is constructed
// once at process start and is safe for concurrent use; all mutable state
// lives behind the injected stores.
type Engine struct {
	users         UserDirectory
	appointments  AppointmentStore
	notifications NotificationStore
	queue         JobQueue
	logger        *slog.Logger

	now func() time.Time
}

func NewEngine(users UserDirectory, appointments AppointmentStore, notifications NotificationStore, queue JobQueue, logger *slog.Logger) *Engine {
	return &Engine{
		users:         users,
		appointments:  appointments,
		notifications: notifications,
		queue:         queue,
		logger:        logger,
		now:           time.Now,
	}
}

// Book reserves the hour-slot of date with the provider for the given user.
// The slot pre-check is advisory: two concurrent bookings for the same slot
// both pass it, and the loser is rejected by the store's uniqueness
// constraint at insert time.
func (e *Engine) Book(ctx context.Context, userID, providerID string, date time.Time) (model.Appointment, error) {
	if providerID == userID {
		return model.Appointment{}, ErrInvalidProvider
	}
	_, ok, err := e.users.FindProviderByID(ctx, providerID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("resolve provider: %w", err)
	}
	if !ok {
		return model.Appointment{}, ErrInvalidProvider
	}

	slot := schedule.StartOfHour(date)
	if slot.Before(e.now()) {
		return model.Appointment{}, ErrPastDate
	}

	taken, err := e.appointments.SlotTaken(ctx, providerID, slot)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("check slot availability: %w", err)
	}
	if taken {
		return model.Appointment{}, ErrSlotUnavailable
	}

	appt, err := e.appointments.Insert(ctx, model.Appointment{
		UserID:     userID,
		ProviderID: providerID,
		Date:       slot,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	e.notifyProvider(ctx, appt)
	return appt, nil
}

// notifyProvider records the "new appointment" notice. The appointment is
// already committed at this point; a failed notice is logged, never rolled
// back into a failed booking.
func (e *Engine) notifyProvider(ctx context.Context, appt model.Appointment) {
	client, ok, err := e.users.FindByID(ctx, appt.UserID)
	if err != nil || !ok {
		e.logger.Warn("client lookup failed; skipping provider notification",
			"appointment_id", appt.ID, "user_id", appt.UserID, "err", err)
		return
	}

	content := fmt.Sprintf("New appointment scheduled to %s at %s",
		client.Name, schedule.FormatDisplay(appt.Date))
	if err := e.notifications.Insert(ctx, model.Notification{
		UserID:  appt.ProviderID,
		Content: content,
	}); err != nil {
		e.logger.Warn("provider notification insert failed",
			"appointment_id", appt.ID, "provider_id", appt.ProviderID, "err", err)
	}
}

// ListForUser returns the user's active appointments, soonest first.
func (e *Engine) ListForUser(ctx context.Context, userID string, page int) ([]model.Appointment, error) {
	if page < 1 {
		page = 1
	}
	appts, err := e.appointments.ListActiveForUser(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ProviderAgenda returns the provider's active appointments for one day.
func (e *Engine) ProviderAgenda(ctx context.Context, providerID string, day time.Time) ([]model.Appointment, error) {
	_, ok, err := e.users.FindProviderByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}
	if !ok {
		return nil, ErrNotProvider
	}
	appts, err := e.appointments.ListActiveForProviderBetween(ctx, providerID, schedule.StartOfDay(day), schedule.EndOfDay(day))
	if err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}
	return appts, nil
}

// Notifications returns the provider's latest notices, newest first.
func (e *Engine) Notifications(ctx context.Context, providerID string) ([]model.Notification, error) {
	_, ok, err := e.users.FindProviderByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}
	if !ok {
		return nil, ErrNotProvider
	}
	notices, err := e.notifications.ListForUser(ctx, providerID, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notices, nil
}
