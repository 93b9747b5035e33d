package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hanki/internal/auth"
	"hanki/internal/checkin"
	"hanki/internal/store"
	"hanki/internal/websocket"
)

type CheckInHandler struct {
	recorder *checkin.Recorder
	checkIns *store.CheckInStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewCheckInHandler(recorder *checkin.Recorder, checkIns *store.CheckInStore, hub *websocket.Hub, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{recorder: recorder, checkIns: checkIns, hub: hub, logger: logger}
}

type checkInRequest struct {
	UserID   string `json:"userId"`
	Response string `json:"response"`
}

// Submit handles POST /api/check-in
func (h *CheckInHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		req.UserID = auth.UserID(r.Context())
	}
	if !auth.CanAccess(r.Context(), req.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	result, err := h.recorder.Record(r.Context(), req.UserID, req.Response, time.Now())
	switch {
	case errors.Is(err, checkin.ErrInvalidResponse):
		writeError(w, http.StatusBadRequest, "response must be one of: ate, not_ate")
		return
	case errors.Is(err, checkin.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("record check-in", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "check-in failed")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.Message{
			Type:   "check_in",
			UserID: req.UserID,
			Extra:  map[string]any{"response": result.Response, "streak": result.NewStreak},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"newStreak": result.NewStreak,
		"response":  result.Response,
		"checkedAt": result.CheckedAt,
	})
}

// Today handles GET /api/check-in
func (h *CheckInHandler) Today(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = auth.UserID(r.Context())
	}
	if !auth.CanAccess(r.Context(), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	status, err := h.recorder.Today(r.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error("today status", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// History handles GET /api/check-ins
func (h *CheckInHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = auth.UserID(r.Context())
	}
	if !auth.CanAccess(r.Context(), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}

	checkIns, err := h.checkIns.ListByUser(userID, limit)
	if err != nil {
		h.logger.Error("list check-ins", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkIns": checkIns})
}
