package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hanki/internal/escalate"
	"hanki/internal/model"
	"hanki/internal/store"
)

type AdminHandler struct {
	users          *store.UserStore
	alerts         *store.AlertStore
	scanner        *escalate.Scanner
	thresholdHours int
	logger         *slog.Logger
}

func NewAdminHandler(users *store.UserStore, alerts *store.AlertStore, scanner *escalate.Scanner, thresholdHours int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, alerts: alerts, scanner: scanner, thresholdHours: thresholdHours, logger: logger}
}

type adminUser struct {
	model.User
	Unresponsive bool `json:"unresponsive"`
}

// Users handles GET /api/admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	threshold := time.Now().Add(-time.Duration(h.thresholdHours) * time.Hour)
	out := make([]adminUser, 0, len(users))
	for _, u := range users {
		out = append(out, adminUser{
			User:         u,
			Unresponsive: u.LastCheckIn == nil || u.LastCheckIn.Before(threshold),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// Alerts handles GET /api/admin/alerts
func (h *AdminHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListRecent(50)
	if err != nil {
		h.logger.Error("list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// TriggerAlert handles POST /api/admin/alerts/{userID}. It dispatches a
// guardian SMS immediately, bypassing the same-day suppression.
func (h *AdminHandler) TriggerAlert(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	alert, err := h.scanner.Alert(r.Context(), userID, time.Now())
	switch {
	case errors.Is(err, escalate.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, escalate.ErrNoGuardian):
		writeError(w, http.StatusBadRequest, "user has no guardian phone configured")
		return
	case err != nil:
		h.logger.Error("manual alert", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "alert failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": alert.Success, "alert": alert})
}
