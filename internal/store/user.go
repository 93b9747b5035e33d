package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hanki/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, email, password_hash, nickname, guardian_phone, streak, last_check_in,
	push_endpoint, push_p256dh, push_auth, is_admin, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var lastCheckIn sql.NullTime
	var isAdmin int
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.GuardianPhone,
		&u.Streak, &lastCheckIn, &u.PushEndpoint, &u.PushP256dh, &u.PushAuth,
		&isAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastCheckIn.Valid {
		t := lastCheckIn.Time
		u.LastCheckIn = &t
	}
	u.IsAdmin = isAdmin != 0
	return &u, nil
}

func (s *UserStore) Create(email, passwordHash, nickname string) (*model.User, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, password_hash, nickname) VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, nickname,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateSettings changes the user-editable profile fields.
func (s *UserStore) UpdateSettings(id, nickname, guardianPhone string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET nickname = ?, guardian_phone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nickname, guardianPhone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user settings: %w", err)
	}
	return s.GetByID(id)
}

// SetPushSubscription stores the web push delivery descriptor on the user.
func (s *UserStore) SetPushSubscription(id, endpoint, p256dh, auth string) error {
	_, err := s.db.Exec(
		`UPDATE users SET push_endpoint = ?, push_p256dh = ?, push_auth = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		endpoint, p256dh, auth, id,
	)
	if err != nil {
		return fmt.Errorf("set push subscription: %w", err)
	}
	return nil
}

// ClearPushSubscription removes the user's push descriptor, if any.
func (s *UserStore) ClearPushSubscription(id string) error {
	_, err := s.db.Exec(
		`UPDATE users SET push_endpoint = '', push_p256dh = '', push_auth = '', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear push subscription: %w", err)
	}
	return nil
}

// ClearPushSubscriptionByEndpoint removes an expired descriptor wherever it
// is registered.
func (s *UserStore) ClearPushSubscriptionByEndpoint(endpoint string) error {
	_, err := s.db.Exec(
		`UPDATE users SET push_endpoint = '', push_p256dh = '', push_auth = '', updated_at = CURRENT_TIMESTAMP
		 WHERE push_endpoint = ?`,
		endpoint,
	)
	if err != nil {
		return fmt.Errorf("clear push subscription by endpoint: %w", err)
	}
	return nil
}

// ListUnresponsive returns users whose last check-in is absent or older than
// before, and who have a guardian phone configured.
func (s *UserStore) ListUnresponsive(before time.Time) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users
		 WHERE (last_check_in IS NULL OR last_check_in < ?) AND guardian_phone != ''
		 ORDER BY created_at`,
		before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list unresponsive users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListWithPushSubscription returns users that registered a push endpoint.
func (s *UserStore) ListWithPushSubscription() ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE push_endpoint != '' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list push users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
