package model

import "time"

// EmergencyAlert records one guardian SMS attempt. Rows are immutable; any
// row sent today (successful or not) suppresses further automatic alerts
// for that user until the next calendar day.
type EmergencyAlert struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	GuardianPhone string    `json:"guardian_phone"`
	Message       string    `json:"message"`
	SentAt        time.Time `json:"sent_at"`
	Success       bool      `json:"success"`
}

// Notification log types.
const (
	NotifTypeReminder = "reminder"
)

// NotificationLog records one push notification attempt.
type NotificationLog struct {
	ID      int64     `json:"id"`
	UserID  string    `json:"user_id"`
	Type    string    `json:"type"`
	SentAt  time.Time `json:"sent_at"`
	Success bool      `json:"success"`
}
