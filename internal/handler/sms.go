package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"hanki/internal/sms"
)

type SMSHandler struct {
	dispatcher *sms.Dispatcher
	logger     *slog.Logger
}

func NewSMSHandler(dispatcher *sms.Dispatcher, logger *slog.Logger) *SMSHandler {
	return &SMSHandler{dispatcher: dispatcher, logger: logger}
}

type sendSMSRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Send handles POST /api/sms/send
func (h *SMSHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)
	if req.Phone == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "phone and message are required")
		return
	}

	result := h.dispatcher.Send(r.Context(), req.Phone, req.Message)

	msg := "SMS sent"
	if !result.Success {
		msg = "SMS delivery failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  result.Success,
		"provider": result.Provider,
		"message":  msg,
	})
}
