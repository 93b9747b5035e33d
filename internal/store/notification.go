package store

import (
	"database/sql"
	"fmt"
	"time"

	"hanki/internal/model"
)

type NotificationLogStore struct {
	db *sql.DB
}

func NewNotificationLogStore(db *sql.DB) *NotificationLogStore {
	return &NotificationLogStore{db: db}
}

// Create logs one push notification attempt.
func (s *NotificationLogStore) Create(userID, notifType string, sentAt time.Time, success bool) error {
	var successInt int
	if success {
		successInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO notification_logs (user_id, type, sent_at, success) VALUES (?, ?, ?, ?)`,
		userID, notifType, sentAt.UTC(), successInt,
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// ListByUser returns a user's notification history, newest first.
func (s *NotificationLogStore) ListByUser(userID string, limit int) ([]model.NotificationLog, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, type, sent_at, success
		 FROM notification_logs WHERE user_id = ? ORDER BY sent_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	defer rows.Close()

	var logs []model.NotificationLog
	for rows.Next() {
		var l model.NotificationLog
		var successInt int
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.SentAt, &successInt); err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		l.Success = successInt != 0
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
