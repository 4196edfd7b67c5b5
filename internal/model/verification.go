package model

import "time"

// VerificationCode is a short-lived email confirmation code.
type VerificationCode struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Code      string     `json:"-"`
	Purpose   string     `json:"purpose"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}
