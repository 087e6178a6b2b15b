package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

const listPageSize = 20

// AppointmentRepository persists appointments and enforces slot exclusivity.
// The appointments table carries a partial unique index over active
// (provider_id, date) rows, so concurrent inserts for the same slot cannot
// both succeed regardless of what the pre-check saw.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AppointmentRepository) SlotTaken(ctx context.Context, providerID string, slot time.Time) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1 AND date = $2 AND canceled_at IS NULL
		)
	`, providerID, slot).Scan(&taken)
	return taken, err
}

// Insert writes the appointment and its booked event in one transaction.
// A unique violation on the active-slot index maps to ErrSlotUnavailable.
func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, provider_id, date)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, appt.ID, appt.UserID, appt.ProviderID, appt.Date).Scan(&appt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Appointment{}, booking.ErrSlotUnavailable
		}
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"user_id":        appt.UserID,
		"provider_id":    appt.ProviderID,
		"date":           appt.Date.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (model.Appointment, bool, error) {
	var appt model.Appointment
	var canceledAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider_id, date, canceled_at, created_at
		FROM appointments
		WHERE id = $1
	`, id).Scan(&appt.ID, &appt.UserID, &appt.ProviderID, &appt.Date, &canceledAt, &appt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	appt.CanceledAt = canceledAt
	return appt, true, nil
}

// Cancel marks the appointment canceled and records the cancelled event with
// the notice snapshot in the same transaction. The guard on canceled_at keeps
// the timestamp immutable if two cancels race.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string, canceledAt time.Time, notice model.CancelationNotice) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt := model.Appointment{ID: id, CanceledAt: &canceledAt}
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET canceled_at = $2
		WHERE id = $1 AND canceled_at IS NULL
		RETURNING user_id, provider_id, date, created_at
	`, id, canceledAt).Scan(&appt.UserID, &appt.ProviderID, &appt.Date, &appt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, booking.ErrAlreadyCanceled
	}
	if err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) ListActiveForUser(ctx context.Context, userID string, page int) ([]model.Appointment, error) {
	if page < 1 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider_id, date, canceled_at, created_at
		FROM appointments
		WHERE user_id = $1 AND canceled_at IS NULL
		ORDER BY date ASC
		LIMIT $2 OFFSET $3
	`, userID, listPageSize, (page-1)*listPageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) ListActiveForProviderBetween(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider_id, date, canceled_at, created_at
		FROM appointments
		WHERE provider_id = $1 AND canceled_at IS NULL AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var canceledAt *time.Time
		if err := rows.Scan(&appt.ID, &appt.UserID, &appt.ProviderID, &appt.Date, &canceledAt, &appt.CreatedAt); err != nil {
			return nil, err
		}
		appt.CanceledAt = canceledAt
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
