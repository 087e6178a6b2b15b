package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type stubUsers map[string]model.User

func (s stubUsers) FindByID(_ context.Context, id string) (model.User, bool, error) {
	u, ok := s[id]
	return u, ok, nil
}

func (s stubUsers) FindProviderByID(_ context.Context, id string) (model.User, bool, error) {
	u, ok := s[id]
	if !ok || !u.Provider {
		return model.User{}, false, nil
	}
	return u, true, nil
}

type stubAppointments struct {
	appts  map[string]model.Appointment
	nextID int
}

func (s *stubAppointments) SlotTaken(_ context.Context, providerID string, slot time.Time) (bool, error) {
	for _, a := range s.appts {
		if a.ProviderID == providerID && a.Date.Equal(slot) && a.CanceledAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAppointments) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	if taken, _ := s.SlotTaken(context.Background(), appt.ProviderID, appt.Date); taken {
		return model.Appointment{}, booking.ErrSlotUnavailable
	}
	s.nextID++
	appt.ID = fmt.Sprintf("appt-%d", s.nextID)
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *stubAppointments) FindByID(_ context.Context, id string) (model.Appointment, bool, error) {
	a, ok := s.appts[id]
	return a, ok, nil
}

func (s *stubAppointments) Cancel(_ context.Context, id string, canceledAt time.Time, _ model.CancelationNotice) (model.Appointment, error) {
	a := s.appts[id]
	a.CanceledAt = &canceledAt
	s.appts[id] = a
	return a, nil
}

func (s *stubAppointments) ListActiveForUser(_ context.Context, userID string, _ int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.UserID == userID && a.CanceledAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAppointments) ListActiveForProviderBetween(_ context.Context, _ string, _, _ time.Time) ([]model.Appointment, error) {
	return nil, nil
}

type stubNotifications struct{ notices []model.Notification }

func (s *stubNotifications) Insert(_ context.Context, n model.Notification) error {
	s.notices = append(s.notices, n)
	return nil
}

func (s *stubNotifications) ListForUser(_ context.Context, _ string, _ int) ([]model.Notification, error) {
	return s.notices, nil
}

type stubQueue struct{ jobs []model.QueuedJob }

func (s *stubQueue) Enqueue(_ context.Context, job model.QueuedJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func newTestHandler() (*AppointmentHandler, *stubAppointments) {
	users := stubUsers{
		"client-1":   {ID: "client-1", Name: "Diego Fernandes", Email: "diego@example.com"},
		"provider-1": {ID: "provider-1", Name: "John Barber", Email: "john@example.com", Provider: true},
	}
	appts := &stubAppointments{appts: make(map[string]model.Appointment)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := booking.NewEngine(users, appts, &stubNotifications{}, &stubQueue{}, logger)
	return NewAppointmentHandler(engine, logger), appts
}

func futureSlot() time.Time {
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
}

func TestCreateAppointment(t *testing.T) {
	h, _ := newTestHandler()
	slot := futureSlot()

	body := fmt.Sprintf(`{"provider_id":"provider-1","date":%q}`, slot.Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(UserIDHeader, "client-1")
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	var item appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if item.ID == "" || item.ProviderID != "provider-1" || item.UserID != "client-1" {
		t.Errorf("unexpected item %+v", item)
	}
	if item.Date != slot.Format(time.RFC3339) {
		t.Errorf("date = %q, want %q", item.Date, slot.Format(time.RFC3339))
	}
	if !item.Cancelable || item.Past {
		t.Errorf("expected cancelable future appointment, got %+v", item)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	h, _ := newTestHandler()
	slot := futureSlot().Format(time.RFC3339)

	cases := []struct {
		name   string
		userID string
		body   string
		want   int
	}{
		{"missing user header", "", fmt.Sprintf(`{"provider_id":"provider-1","date":%q}`, slot), http.StatusBadRequest},
		{"malformed json", "client-1", `{"provider_id":`, http.StatusBadRequest},
		{"missing provider", "client-1", fmt.Sprintf(`{"date":%q}`, slot), http.StatusBadRequest},
		{"bad date format", "client-1", `{"provider_id":"provider-1","date":"tomorrow"}`, http.StatusBadRequest},
		{"unknown provider", "client-1", fmt.Sprintf(`{"provider_id":"ghost","date":%q}`, slot), http.StatusBadRequest},
		{"self booking", "provider-1", fmt.Sprintf(`{"provider_id":"provider-1","date":%q}`, slot), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(tc.body))
			if tc.userID != "" {
				req.Header.Set(UserIDHeader, tc.userID)
			}
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	h, _ := newTestHandler()
	body := fmt.Sprintf(`{"provider_id":"provider-1","date":%q}`, futureSlot().Format(time.RFC3339))

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
		req.Header.Set(UserIDHeader, "client-1")
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestCancelAppointment(t *testing.T) {
	h, appts := newTestHandler()
	appts.appts["appt-9"] = model.Appointment{
		ID: "appt-9", UserID: "client-1", ProviderID: "provider-1", Date: futureSlot(),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel",
		strings.NewReader(`{"appointment_id":"appt-9"}`))
	req.Header.Set(UserIDHeader, "client-1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	var item appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if item.CanceledAt == "" {
		t.Error("canceled_at missing from response")
	}
}

func TestCancelAppointmentErrors(t *testing.T) {
	h, appts := newTestHandler()
	appts.appts["appt-9"] = model.Appointment{
		ID: "appt-9", UserID: "client-1", ProviderID: "provider-1", Date: futureSlot(),
	}
	appts.appts["appt-soon"] = model.Appointment{
		ID: "appt-soon", UserID: "client-1", ProviderID: "provider-1", Date: time.Now().UTC().Add(time.Hour),
	}

	cases := []struct {
		name   string
		userID string
		body   string
		want   int
	}{
		{"not found", "client-1", `{"appointment_id":"missing"}`, http.StatusNotFound},
		{"not owner", "provider-1", `{"appointment_id":"appt-9"}`, http.StatusForbidden},
		{"too late", "client-1", `{"appointment_id":"appt-soon"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(tc.body))
			req.Header.Set(UserIDHeader, tc.userID)
			rec := httptest.NewRecorder()
			h.Cancel(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestListAppointments(t *testing.T) {
	h, appts := newTestHandler()
	canceledAt := time.Now()
	appts.appts["a1"] = model.Appointment{ID: "a1", UserID: "client-1", ProviderID: "provider-1", Date: futureSlot()}
	appts.appts["a2"] = model.Appointment{ID: "a2", UserID: "client-1", ProviderID: "provider-1", Date: futureSlot().Add(time.Hour), CanceledAt: &canceledAt}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?page=1", nil)
	req.Header.Set(UserIDHeader, "client-1")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var items []appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a1" {
		t.Errorf("items = %+v, want only a1", items)
	}
}

func TestNotificationsForbiddenForNonProvider(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set(UserIDHeader, "client-1")
	rec := httptest.NewRecorder()
	h.Notifications(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAgendaRequiresDate(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil)
	req.Header.Set(UserIDHeader, "provider-1")
	rec := httptest.NewRecorder()
	h.Agenda(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
