package model

import "time"

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Nickname      string     `json:"nickname"`
	GuardianPhone string     `json:"guardian_phone,omitempty"`
	Streak        int        `json:"streak"`
	LastCheckIn   *time.Time `json:"last_check_in"`
	PushEndpoint  string     `json:"-"`
	PushP256dh    string     `json:"-"`
	PushAuth      string     `json:"-"`
	IsAdmin       bool       `json:"is_admin,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasPushSubscription reports whether the user registered a web push endpoint.
func (u *User) HasPushSubscription() bool {
	return u.PushEndpoint != ""
}

// HasGuardian reports whether an emergency contact is configured.
func (u *User) HasGuardian() bool {
	return u.GuardianPhone != ""
}
