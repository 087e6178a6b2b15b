package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/schedule"
)

// Cancel soft-cancels the appointment for its owning user and hands the
// cancelation notice to the mail queue. The cancel itself commits together
// with a cancelled outbox event; the direct enqueue afterwards is best-effort
// because the event replay re-creates the job if the enqueue is lost.
func (e *Engine) Cancel(ctx context.Context, userID, appointmentID string) (model.Appointment, error) {
	appt, ok, err := e.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if appt.UserID != userID {
		return model.Appointment{}, ErrNotOwner
	}
	if appt.CanceledAt != nil {
		return model.Appointment{}, ErrAlreadyCanceled
	}

	now := e.now()
	if !appt.Cancelable(now) {
		return model.Appointment{}, ErrTooLateToCancel
	}

	notice, err := e.buildNotice(ctx, appt)
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := e.appointments.Cancel(ctx, appt.ID, now, notice)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("encode cancelation notice: %w", err)
	}
	job := model.QueuedJob{
		Key:            model.CancelationMailKey,
		IdempotencyKey: model.CancelationMailKey + ":" + appt.ID,
		Payload:        payload,
	}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		// The cancellation is committed; the cancelled event replay will
		// re-create this job, so the notice is delayed, not lost.
		e.logger.Error("cancelation mail enqueue failed",
			"appointment_id", appt.ID, "err", err)
	}

	return updated, nil
}

// buildNotice snapshots everything the mailer needs so it never has to query
// the store: provider contact details and the display-formatted slot.
func (e *Engine) buildNotice(ctx context.Context, appt model.Appointment) (model.CancelationNotice, error) {
	provider, ok, err := e.users.FindByID(ctx, appt.ProviderID)
	if err != nil {
		return model.CancelationNotice{}, fmt.Errorf("resolve provider: %w", err)
	}
	if !ok {
		e.logger.Warn("provider missing from directory", "provider_id", appt.ProviderID)
	}

	client, ok, err := e.users.FindByID(ctx, appt.UserID)
	if err != nil {
		return model.CancelationNotice{}, fmt.Errorf("resolve client: %w", err)
	}
	if !ok {
		e.logger.Warn("client missing from directory", "user_id", appt.UserID)
	}

	return model.CancelationNotice{
		AppointmentID: appt.ID,
		ProviderName:  provider.Name,
		ProviderEmail: provider.Email,
		UserName:      client.Name,
		Date:          schedule.FormatDisplay(appt.Date),
	}, nil
}
