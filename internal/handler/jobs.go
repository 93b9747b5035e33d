package handler

import (
	"log/slog"
	"net/http"
	"time"

	"hanki/internal/escalate"
	"hanki/internal/reminder"
)

// JobsHandler exposes the scheduled jobs for external cron triggers. The
// routes are guarded by the cron key middleware; the in-process tickers call
// the same Run methods.
type JobsHandler struct {
	scanner   *escalate.Scanner
	reminders *reminder.Scheduler
	logger    *slog.Logger
}

func NewJobsHandler(scanner *escalate.Scanner, reminders *reminder.Scheduler, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{scanner: scanner, reminders: reminders, logger: logger}
}

// CheckUnresponsive handles POST /api/jobs/check-unresponsive
func (h *JobsHandler) CheckUnresponsive(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scanner.Run(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("unresponsive scan", "error", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SendReminder handles POST /api/jobs/send-reminder
func (h *JobsHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reminders.Run(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("reminder run", "error", err)
		writeError(w, http.StatusInternalServerError, "reminder failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
