package handlers

import (
	"net/http"
	"strings"
	"time"
)

type notificationItem struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Agenda serves a provider's day schedule. The caller must itself be a
// provider; the date is a calendar day, not a timestamp.
func (h *AppointmentHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	appts, err := h.engine.ProviderAgenda(r.Context(), userID, day)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentItems(appts))
}

func (h *AppointmentHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := requestUserID(r)
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	notices, err := h.engine.Notifications(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]notificationItem, 0, len(notices))
	for _, n := range notices {
		items = append(items, notificationItem{
			ID:        n.ID,
			Content:   n.Content,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
