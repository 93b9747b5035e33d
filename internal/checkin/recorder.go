// Package checkin records daily meal check-ins and maintains user streaks.
package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hanki/internal/model"
	"hanki/internal/store"
	"hanki/internal/streak"
)

var (
	// ErrInvalidResponse is returned for a response outside {ate, not_ate}.
	ErrInvalidResponse = errors.New("invalid check-in response")
	// ErrUserNotFound is returned when the user id does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Result is the outcome of a recorded check-in.
type Result struct {
	NewStreak int       `json:"newStreak"`
	Response  string    `json:"response"`
	CheckedAt time.Time `json:"checkedAt"`
}

// TodayStatus reports whether the user already answered today.
type TodayStatus struct {
	HasCheckedIn bool           `json:"hasCheckedIn"`
	CheckIn      *model.CheckIn `json:"checkIn"`
}

// Recorder appends check-in events and updates the user's streak in a single
// transaction.
type Recorder struct {
	db       *sql.DB
	checkIns *store.CheckInStore
	logger   *slog.Logger
}

func NewRecorder(db *sql.DB, checkIns *store.CheckInStore, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, checkIns: checkIns, logger: logger}
}

// Record stores a check-in for the user and returns the updated streak.
// Calling twice on the same calendar day appends a second event row but
// leaves the streak unchanged.
func (r *Recorder) Record(ctx context.Context, userID, response string, now time.Time) (*Result, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	if !model.ValidResponse(response) {
		return nil, ErrInvalidResponse
	}

	// The user update is conditional on the last_check_in value read inside
	// the transaction. A concurrent check-in makes it match zero rows; one
	// retry with fresh state is enough because the second attempt lands in
	// the idempotent same-day branch.
	result, err := r.record(ctx, userID, response, now)
	if errors.Is(err, errConflict) {
		r.logger.Warn("concurrent check-in, retrying", "user_id", userID)
		result, err = r.record(ctx, userID, response, now)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("check-in recorded", "user_id", userID, "response", response, "streak", result.NewStreak)
	return result, nil
}

var errConflict = errors.New("check-in update conflict")

func (r *Recorder) record(ctx context.Context, userID, response string, now time.Time) (*Result, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin check-in tx: %w", err)
	}
	defer tx.Rollback()

	var currentStreak int
	var lastCheckIn sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT streak, last_check_in FROM users WHERE id = ?`, userID,
	).Scan(&currentStreak, &lastCheckIn)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read user streak: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO check_ins (user_id, response, responded_at, scheduled_at, is_missed)
		 VALUES (?, ?, ?, ?, 0)`,
		userID, response, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert check-in: %w", err)
	}

	var prev *time.Time
	if lastCheckIn.Valid {
		prev = &lastCheckIn.Time
	}
	newStreak := streak.Compute(prev, currentStreak, now)

	var res sql.Result
	if lastCheckIn.Valid {
		res, err = tx.ExecContext(ctx,
			`UPDATE users SET streak = ?, last_check_in = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND last_check_in = ?`,
			newStreak, now.UTC(), userID, lastCheckIn.Time,
		)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE users SET streak = ?, last_check_in = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND last_check_in IS NULL`,
			newStreak, now.UTC(), userID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update user streak: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check-in tx: %w", err)
	}

	return &Result{NewStreak: newStreak, Response: response, CheckedAt: now}, nil
}

// Today returns the user's answered check-in since local midnight, newest
// row first, or HasCheckedIn=false if there is none.
func (r *Recorder) Today(ctx context.Context, userID string, now time.Time) (*TodayStatus, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	c, err := r.checkIns.LatestSince(userID, startOfDay(now))
	if err != nil {
		return nil, err
	}
	return &TodayStatus{HasCheckedIn: c != nil, CheckIn: c}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
