package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"hanki/internal/auth"
	"hanki/internal/push"
	"hanki/internal/store"
)

type PushHandler struct {
	svc    *push.Service
	users  *store.UserStore
	logger *slog.Logger
}

func NewPushHandler(svc *push.Service, users *store.UserStore, logger *slog.Logger) *PushHandler {
	return &PushHandler{svc: svc, users: users, logger: logger}
}

type subscribeRequest struct {
	UserID       string `json:"userId"`
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
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

	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription endpoint and keys are required")
		return
	}

	if err := h.users.SetPushSubscription(req.UserID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth); err != nil {
		h.logger.Error("set push subscription", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}

	h.logger.Info("push subscription registered", "user_id", req.UserID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Unsubscribe handles DELETE /api/push/subscribe
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = auth.UserID(r.Context())
	}
	if !auth.CanAccess(r.Context(), userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.users.ClearPushSubscription(userID); err != nil {
		h.logger.Error("clear push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "unsubscribe failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	key := h.svc.VAPIDPublicKey()
	if key == "" {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}
