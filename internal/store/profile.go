package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecotrackhq/ecotrack/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// CreateProfileParams are the fields collected during signup.
type CreateProfileParams struct {
	UserID             string
	Email              string
	FullName           string
	DateOfBirth        string
	Gender             string
	IsHeadOfHousehold  bool
	HouseID            *string
	VerificationStatus model.VerificationStatus
}

// UpdateProfileParams carries a partial update; nil fields are left unchanged.
type UpdateProfileParams struct {
	FullName           *string
	DateOfBirth        *string
	Gender             *string
	VerificationStatus *model.VerificationStatus
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var p model.UserProfile
	var houseID sql.NullString
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Email, &p.FullName, &p.DateOfBirth, &p.Gender,
		&p.IsHeadOfHousehold, &houseID, &p.VerificationStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if houseID.Valid {
		p.HouseID = &houseID.String
	}
	return &p, nil
}

const profileCols = `id, user_id, email, full_name, date_of_birth, gender, is_head_of_household, house_id, verification_status, created_at, updated_at`

func (s *ProfileStore) Create(params CreateProfileParams) (*model.UserProfile, error) {
	status := params.VerificationStatus
	if status == "" {
		status = model.VerificationPending
	}
	if !model.ValidVerificationStatus(status) {
		return nil, fmt.Errorf("invalid verification status %q", status)
	}

	var houseID sql.NullString
	if params.HouseID != nil {
		houseID = sql.NullString{String: *params.HouseID, Valid: true}
	}

	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO user_profiles (id, user_id, email, full_name, date_of_birth, gender, is_head_of_household, house_id, verification_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, params.UserID, params.Email, params.FullName, params.DateOfBirth,
		params.Gender, params.IsHeadOfHousehold, houseID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.Get(params.UserID)
}

// Get returns the profile for a user, or nil when none exists.
func (s *ProfileStore) Get(userID string) (*model.UserProfile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update merges non-nil fields into the existing profile and stamps updated_at.
func (s *ProfileStore) Update(userID string, params UpdateProfileParams) (*model.UserProfile, error) {
	existing, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProfileNotFound
	}

	fullName := existing.FullName
	if params.FullName != nil {
		fullName = *params.FullName
	}
	dob := existing.DateOfBirth
	if params.DateOfBirth != nil {
		dob = *params.DateOfBirth
	}
	gender := existing.Gender
	if params.Gender != nil {
		gender = *params.Gender
	}
	status := existing.VerificationStatus
	if params.VerificationStatus != nil {
		status = *params.VerificationStatus
	}
	if !model.ValidVerificationStatus(status) {
		return nil, fmt.Errorf("invalid verification status %q", status)
	}

	_, err = s.db.Exec(
		`UPDATE user_profiles SET full_name = ?, date_of_birth = ?, gender = ?, verification_status = ?, updated_at = datetime('now')
		 WHERE user_id = ?`,
		fullName, dob, gender, status, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(userID)
}

// UpdateVerificationStatus is a restricted wrapper over Update for the
// identity-verification step.
func (s *ProfileStore) UpdateVerificationStatus(userID string, status model.VerificationStatus) (*model.UserProfile, error) {
	if !model.ValidVerificationStatus(status) {
		return nil, fmt.Errorf("invalid verification status %q", status)
	}
	return s.Update(userID, UpdateProfileParams{VerificationStatus: &status})
}

func (s *ProfileStore) Delete(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
