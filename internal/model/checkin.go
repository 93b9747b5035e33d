package model

import "time"

// Check-in response values.
const (
	ResponseAte    = "ate"
	ResponseNotAte = "not_ate"
)

// ValidResponse reports whether r is one of the two allowed answers.
func ValidResponse(r string) bool {
	return r == ResponseAte || r == ResponseNotAte
}

type CheckIn struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Response    string     `json:"response"`
	RespondedAt *time.Time `json:"responded_at"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	IsMissed    bool       `json:"is_missed"`
	CreatedAt   time.Time  `json:"created_at"`
}
