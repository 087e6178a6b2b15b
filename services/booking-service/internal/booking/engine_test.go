package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type fakeUsers struct {
	users map[string]model.User
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (model.User, bool, error) {
	u, ok := f.users[id]
	return u, ok, nil
}

func (f *fakeUsers) FindProviderByID(_ context.Context, id string) (model.User, bool, error) {
	u, ok := f.users[id]
	if !ok || !u.Provider {
		return model.User{}, false, nil
	}
	return u, true, nil
}

type fakeAppointments struct {
	appts     map[string]model.Appointment
	nextID    int
	insertErr error
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{appts: make(map[string]model.Appointment)}
}

func (f *fakeAppointments) active(providerID string, slot time.Time) bool {
	for _, a := range f.appts {
		if a.ProviderID == providerID && a.Date.Equal(slot) && a.CanceledAt == nil {
			return true
		}
	}
	return false
}

func (f *fakeAppointments) SlotTaken(_ context.Context, providerID string, slot time.Time) (bool, error) {
	return f.active(providerID, slot), nil
}

func (f *fakeAppointments) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	if f.insertErr != nil {
		return model.Appointment{}, f.insertErr
	}
	// Mirrors the store's uniqueness constraint over active slots.
	if f.active(appt.ProviderID, appt.Date) {
		return model.Appointment{}, ErrSlotUnavailable
	}
	f.nextID++
	appt.ID = fmt.Sprintf("appt-%d", f.nextID)
	appt.CreatedAt = time.Now()
	f.appts[appt.ID] = appt
	return appt, nil
}

func (f *fakeAppointments) FindByID(_ context.Context, id string) (model.Appointment, bool, error) {
	a, ok := f.appts[id]
	return a, ok, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id string, canceledAt time.Time, _ model.CancelationNotice) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok || a.CanceledAt != nil {
		return model.Appointment{}, ErrAlreadyCanceled
	}
	a.CanceledAt = &canceledAt
	f.appts[id] = a
	return a, nil
}

func (f *fakeAppointments) ListActiveForUser(_ context.Context, userID string, _ int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.UserID == userID && a.CanceledAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) ListActiveForProviderBetween(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.ProviderID == providerID && a.CanceledAt == nil && !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeNotifications struct {
	notices   []model.Notification
	insertErr error
}

func (f *fakeNotifications) Insert(_ context.Context, n model.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.notices = append(f.notices, n)
	return nil
}

func (f *fakeNotifications) ListForUser(_ context.Context, userID string, _ int) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.notices {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeQueue struct {
	jobs       []model.QueuedJob
	enqueueErr error
}

func (f *fakeQueue) Enqueue(_ context.Context, job model.QueuedJob) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fixture struct {
	engine        *Engine
	users         *fakeUsers
	appointments  *fakeAppointments
	notifications *fakeNotifications
	queue         *fakeQueue
}

func newFixture(now time.Time) *fixture {
	users := &fakeUsers{users: map[string]model.User{
		"client-1":   {ID: "client-1", Name: "Diego Fernandes", Email: "diego@example.com"},
		"client-2":   {ID: "client-2", Name: "Cleiton Souza", Email: "cleiton@example.com"},
		"provider-1": {ID: "provider-1", Name: "John Barber", Email: "john@example.com", Provider: true},
	}}
	appts := newFakeAppointments()
	notices := &fakeNotifications{}
	queue := &fakeQueue{}
	eng := NewEngine(users, appts, notices, queue, slog.New(slog.NewTextHandler(io.Discard, nil)))
	eng.now = func() time.Time { return now }
	return &fixture{engine: eng, users: users, appointments: appts, notifications: notices, queue: queue}
}

var testNow = time.Date(2025, time.June, 1, 8, 30, 0, 0, time.UTC)

func TestBook(t *testing.T) {
	fx := newFixture(testNow)

	appt, err := fx.engine.Book(context.Background(), "client-1", "provider-1",
		time.Date(2025, time.June, 1, 10, 25, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	want := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	if !appt.Date.Equal(want) {
		t.Errorf("slot = %v, want truncated to %v", appt.Date, want)
	}
	if appt.ID == "" {
		t.Error("expected assigned appointment id")
	}

	if len(fx.notifications.notices) != 1 {
		t.Fatalf("expected one provider notification, got %d", len(fx.notifications.notices))
	}
	n := fx.notifications.notices[0]
	if n.UserID != "provider-1" {
		t.Errorf("notification recipient = %q, want provider-1", n.UserID)
	}
	wantContent := "New appointment scheduled to Diego Fernandes at June 01, 10:00am"
	if n.Content != wantContent {
		t.Errorf("notification content = %q, want %q", n.Content, wantContent)
	}
}

func TestBookSelfBooking(t *testing.T) {
	fx := newFixture(testNow)
	_, err := fx.engine.Book(context.Background(), "provider-1", "provider-1", testNow.Add(4*time.Hour))
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("err = %v, want ErrInvalidProvider", err)
	}
}

func TestBookUnknownProvider(t *testing.T) {
	fx := newFixture(testNow)
	_, err := fx.engine.Book(context.Background(), "client-1", "nobody", testNow.Add(4*time.Hour))
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("err = %v, want ErrInvalidProvider", err)
	}
}

func TestBookNonProviderUser(t *testing.T) {
	fx := newFixture(testNow)
	_, err := fx.engine.Book(context.Background(), "client-1", "client-2", testNow.Add(4*time.Hour))
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("err = %v, want ErrInvalidProvider", err)
	}
}

func TestBookPastDate(t *testing.T) {
	fx := newFixture(testNow)
	_, err := fx.engine.Book(context.Background(), "client-1", "provider-1",
		time.Date(2025, time.June, 1, 7, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("err = %v, want ErrPastDate", err)
	}

	// 8:45 truncates to 8:00, which is already behind 8:30.
	_, err = fx.engine.Book(context.Background(), "client-1", "provider-1",
		time.Date(2025, time.June, 1, 8, 45, 0, 0, time.UTC))
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("truncated-past err = %v, want ErrPastDate", err)
	}
}

func TestBookSlotTaken(t *testing.T) {
	fx := newFixture(testNow)
	slot := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	if _, err := fx.engine.Book(context.Background(), "client-1", "provider-1", slot); err != nil {
		t.Fatalf("first Book: %v", err)
	}
	_, err := fx.engine.Book(context.Background(), "client-2", "provider-1", slot)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}

	// Same wall-clock hour through a different minute collides too.
	_, err = fx.engine.Book(context.Background(), "client-2", "provider-1", slot.Add(35*time.Minute))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("same-hour err = %v, want ErrSlotUnavailable", err)
	}
}

func TestBookSlotFreedByCancel(t *testing.T) {
	fx := newFixture(testNow)
	slot := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)

	appt, err := fx.engine.Book(context.Background(), "client-1", "provider-1", slot)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := fx.engine.Cancel(context.Background(), "client-1", appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := fx.engine.Book(context.Background(), "client-2", "provider-1", slot); err != nil {
		t.Fatalf("rebooking canceled slot: %v", err)
	}
}

func TestBookRacingInsertRejected(t *testing.T) {
	fx := newFixture(testNow)
	// The advisory pre-check passes but the store rejects at insert, the way
	// the unique index does when two requests race.
	fx.appointments.insertErr = ErrSlotUnavailable

	_, err := fx.engine.Book(context.Background(), "client-1", "provider-1", testNow.Add(4*time.Hour))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestBookNotificationFailureDoesNotFailBooking(t *testing.T) {
	fx := newFixture(testNow)
	fx.notifications.insertErr = errors.New("notification store down")

	appt, err := fx.engine.Book(context.Background(), "client-1", "provider-1", testNow.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, ok := fx.appointments.appts[appt.ID]; !ok {
		t.Error("appointment not persisted")
	}
}

func TestListForUserExcludesCanceled(t *testing.T) {
	fx := newFixture(testNow)

	kept, err := fx.engine.Book(context.Background(), "client-1", "provider-1", testNow.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	dropped, err := fx.engine.Book(context.Background(), "client-1", "provider-1", testNow.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := fx.engine.Cancel(context.Background(), "client-1", dropped.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	appts, err := fx.engine.ListForUser(context.Background(), "client-1", 1)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != kept.ID {
		t.Errorf("got %d appointments, want only %s", len(appts), kept.ID)
	}
}

func TestProviderAgenda(t *testing.T) {
	fx := newFixture(testNow)

	inDay, err := fx.engine.Book(context.Background(), "client-1", "provider-1",
		time.Date(2025, time.June, 1, 14, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := fx.engine.Book(context.Background(), "client-1", "provider-1",
		time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Book: %v", err)
	}

	appts, err := fx.engine.ProviderAgenda(context.Background(), "provider-1",
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProviderAgenda: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != inDay.ID {
		t.Errorf("agenda = %v, want only %s", appts, inDay.ID)
	}

	if _, err := fx.engine.ProviderAgenda(context.Background(), "client-1", testNow); !errors.Is(err, ErrNotProvider) {
		t.Fatalf("non-provider agenda err = %v, want ErrNotProvider", err)
	}
}

func TestNotificationsRequiresProvider(t *testing.T) {
	fx := newFixture(testNow)
	if _, err := fx.engine.Notifications(context.Background(), "client-1"); !errors.Is(err, ErrNotProvider) {
		t.Fatalf("err = %v, want ErrNotProvider", err)
	}
}
