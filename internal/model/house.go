package model

import "time"

type House struct {
	ID                string    `json:"id"`
	HouseCode         string    `json:"house_code"`
	HeadOfHouseholdID string    `json:"head_of_household_id"`
	HouseName         string    `json:"house_name,omitempty"`
	Address           string    `json:"address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type HouseMember struct {
	ID       string    `json:"id"`
	HouseID  string    `json:"house_id"`
	UserID   string    `json:"user_id"`
	IsHead   bool      `json:"is_head"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberDetail is a membership row with the member's profile fields attached,
// as returned by member listings.
type MemberDetail struct {
	HouseMember
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// HouseDetail is a house with its members, as returned by code lookups.
type HouseDetail struct {
	House
	Members []MemberDetail `json:"members"`
}
