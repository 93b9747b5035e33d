package store

import (
	"database/sql"
	"fmt"
	"time"

	"hanki/internal/model"
)

type CheckInStore struct {
	db *sql.DB
}

func NewCheckInStore(db *sql.DB) *CheckInStore {
	return &CheckInStore{db: db}
}

const checkInCols = `id, user_id, response, responded_at, scheduled_at, is_missed, created_at`

func scanCheckIn(scanner interface{ Scan(...any) error }) (*model.CheckIn, error) {
	var c model.CheckIn
	var respondedAt sql.NullTime
	var isMissed int
	err := scanner.Scan(&c.ID, &c.UserID, &c.Response, &respondedAt, &c.ScheduledAt, &isMissed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		c.RespondedAt = &t
	}
	c.IsMissed = isMissed != 0
	return &c, nil
}

// LatestSince returns the newest answered check-in at or after since, or nil.
// Missed system entries are ignored: they carry no response.
func (s *CheckInStore) LatestSince(userID string, since time.Time) (*model.CheckIn, error) {
	row := s.db.QueryRow(
		`SELECT `+checkInCols+` FROM check_ins
		 WHERE user_id = ? AND is_missed = 0 AND responded_at >= ?
		 ORDER BY responded_at DESC LIMIT 1`,
		userID, since.UTC(),
	)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest check-in: %w", err)
	}
	return c, nil
}

// ListByUser returns the user's check-in history, newest first.
func (s *CheckInStore) ListByUser(userID string, limit int) ([]model.CheckIn, error) {
	rows, err := s.db.Query(
		`SELECT `+checkInCols+` FROM check_ins
		 WHERE user_id = ? ORDER BY scheduled_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []model.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		checkIns = append(checkIns, *c)
	}
	return checkIns, rows.Err()
}

// UserIDsRespondedSince returns the set of users with an answered check-in
// at or after since.
func (s *CheckInStore) UserIDsRespondedSince(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT user_id FROM check_ins WHERE is_missed = 0 AND responded_at >= ?`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list responded user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertMissed appends a system-generated missed entry so the user's history
// shows the unanswered window.
func (s *CheckInStore) InsertMissed(userID string, scheduledAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO check_ins (user_id, response, responded_at, scheduled_at, is_missed)
		 VALUES (?, '', NULL, ?, 1)`,
		userID, scheduledAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert missed check-in: %w", err)
	}
	return nil
}
