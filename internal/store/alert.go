package store

import (
	"database/sql"
	"fmt"
	"time"

	"hanki/internal/model"
)

type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// Create logs one guardian SMS attempt, successful or not.
func (s *AlertStore) Create(userID, guardianPhone, message string, sentAt time.Time, success bool) (*model.EmergencyAlert, error) {
	var successInt int
	if success {
		successInt = 1
	}
	result, err := s.db.Exec(
		`INSERT INTO emergency_alerts (user_id, guardian_phone, message, sent_at, success)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, guardianPhone, message, sentAt.UTC(), successInt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert emergency alert: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.EmergencyAlert{
		ID:            id,
		UserID:        userID,
		GuardianPhone: guardianPhone,
		Message:       message,
		SentAt:        sentAt,
		Success:       success,
	}, nil
}

// AlertedUserIDsSince returns users with any alert row at or after since.
// Failed attempts count: one attempt per user per day, win or lose.
func (s *AlertStore) AlertedUserIDsSince(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT user_id FROM emergency_alerts WHERE sent_at >= ?`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list alerted user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alerted user id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ListRecent returns the newest alerts for the admin overview.
func (s *AlertStore) ListRecent(limit int) ([]model.EmergencyAlert, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, guardian_phone, message, sent_at, success
		 FROM emergency_alerts ORDER BY sent_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.EmergencyAlert
	for rows.Next() {
		var a model.EmergencyAlert
		var successInt int
		if err := rows.Scan(&a.ID, &a.UserID, &a.GuardianPhone, &a.Message, &a.SentAt, &successInt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Success = successInt != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
