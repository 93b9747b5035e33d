package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"hanki/internal/auth"
	"hanki/internal/store"
)

type SettingsHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewSettingsHandler(users *store.UserStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{users: users, logger: logger}
}

type settingsRequest struct {
	Nickname      string `json:"nickname"`
	GuardianPhone string `json:"guardianPhone"`
}

// Update handles PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		writeError(w, http.StatusBadRequest, "nickname is required")
		return
	}

	userID := auth.UserID(r.Context())
	user, err := h.users.UpdateSettings(userID, req.Nickname, strings.TrimSpace(req.GuardianPhone))
	if err != nil {
		h.logger.Error("update settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Me handles GET /api/me
func (h *SettingsHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get current user", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
