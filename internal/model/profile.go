package model

import "time"

// VerificationStatus tracks the identity-verification step of signup.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationSkipped  VerificationStatus = "skipped"
	VerificationFailed   VerificationStatus = "failed"
)

// ValidVerificationStatus reports whether s is one of the known statuses.
func ValidVerificationStatus(s VerificationStatus) bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationSkipped, VerificationFailed:
		return true
	}
	return false
}

type UserProfile struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	Email              string             `json:"email"`
	FullName           string             `json:"full_name"`
	DateOfBirth        string             `json:"date_of_birth,omitempty"`
	Gender             string             `json:"gender,omitempty"`
	IsHeadOfHousehold  bool               `json:"is_head_of_household"`
	HouseID            *string            `json:"house_id,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
