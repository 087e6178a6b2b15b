package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// UserIDHeader carries the authenticated user, resolved by the upstream
// identity layer. The service trusts it as-is.
const UserIDHeader = "X-User-Id"

type AppointmentHandler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func NewAppointmentHandler(engine *booking.Engine, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{engine: engine, logger: logger}
}

type createAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentItem struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	CanceledAt string `json:"canceled_at,omitempty"`
	Past       bool   `json:"past"`
	Cancelable bool   `json:"cancelable"`
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	appts, err := h.engine.ListForUser(r.Context(), userID, page)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentItems(appts))
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" || strings.TrimSpace(req.Date) == "" {
		http.Error(w, "provider_id and date required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Book(r.Context(), userID, req.ProviderID, date)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentToItem(appt, time.Now()))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Cancel(r.Context(), userID, req.AppointmentID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt, time.Now()))
}

func (h *AppointmentHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidProvider), errors.Is(err, booking.ErrPastDate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrNotOwner), errors.Is(err, booking.ErrNotProvider):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotUnavailable), errors.Is(err, booking.ErrAlreadyCanceled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrTooLateToCancel):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("booking engine failure", "err", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}

func requestUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

func appointmentItems(appts []model.Appointment) []appointmentItem {
	now := time.Now()
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentToItem(appt, now))
	}
	return items
}

func appointmentToItem(appt model.Appointment, now time.Time) appointmentItem {
	item := appointmentItem{
		ID:         appt.ID,
		UserID:     appt.UserID,
		ProviderID: appt.ProviderID,
		Date:       appt.Date.UTC().Format(time.RFC3339),
		Past:       appt.Past(now),
		Cancelable: appt.Cancelable(now),
	}
	if appt.CanceledAt != nil {
		item.CanceledAt = appt.CanceledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
