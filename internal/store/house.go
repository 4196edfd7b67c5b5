package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/ecotrackhq/ecotrack/internal/housecode"
	"github.com/ecotrackhq/ecotrack/internal/model"
)

// codeRetries bounds generate-and-insert attempts when a fresh house code
// collides with an existing one. The unique constraint on houses.house_code
// is the source of truth; randomness only makes collisions rare.
const codeRetries = 5

type HouseStore struct {
	db *sql.DB
}

func NewHouseStore(db *sql.DB) *HouseStore {
	return &HouseStore{db: db}
}

func scanHouse(scanner interface{ Scan(...any) error }) (*model.House, error) {
	var h model.House
	err := scanner.Scan(&h.ID, &h.HouseCode, &h.HeadOfHouseholdID, &h.HouseName, &h.Address, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.HouseMember, error) {
	var m model.HouseMember
	err := scanner.Scan(&m.ID, &m.HouseID, &m.UserID, &m.IsHead, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const houseCols = `id, house_code, head_of_household_id, house_name, address, created_at, updated_at`
const memberCols = `id, house_id, user_id, is_head, joined_at`

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// Create makes a new house with headUserID as head of household. The house
// row and the head's membership row are written in one transaction, and a
// code collision regenerates and retries.
func (s *HouseStore) Create(ctx context.Context, headUserID, houseName, address string) (*model.House, error) {
	var houseID string

	backoff := retry.WithMaxRetries(codeRetries, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		code, err := housecode.Generate(time.Now())
		if err != nil {
			return err
		}
		id, err := s.insertHouse(code, headUserID, houseName, address)
		if isUniqueViolation(err, "houses.house_code") {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		houseID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create house: %w", err)
	}

	return s.GetByID(houseID)
}

func (s *HouseStore) insertHouse(code, headUserID, houseName, address string) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	houseID := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO houses (id, house_code, head_of_household_id, house_name, address) VALUES (?, ?, ?, ?, ?)`,
		houseID, code, headUserID, houseName, address,
	); err != nil {
		return "", err
	}

	if _, err := tx.Exec(
		`INSERT INTO house_members (id, house_id, user_id, is_head) VALUES (?, ?, ?, 1)`,
		uuid.New().String(), houseID, headUserID,
	); err != nil {
		return "", fmt.Errorf("insert head membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return houseID, nil
}

// Join enrolls userID in the house identified by code. The code is expected
// to be format-validated by the caller. Returns the house and the new
// membership row.
func (s *HouseStore) Join(userID, code string) (*model.House, *model.HouseMember, error) {
	house, err := s.getByCode(housecode.Normalize(code))
	if err != nil {
		return nil, nil, err
	}
	if house == nil {
		return nil, nil, ErrHouseCodeNotFound
	}

	existing, err := s.GetUserMembership(userID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		if existing.HouseID == house.ID {
			return nil, nil, ErrAlreadyMember
		}
		return nil, nil, ErrAlreadyInHouse
	}

	memberID := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO house_members (id, house_id, user_id, is_head) VALUES (?, ?, ?, 0)`,
		memberID, house.ID, userID,
	)
	// The unique index on user_id backs the check above when two joins race.
	if isUniqueViolation(err, "house_members.user_id") {
		return nil, nil, ErrAlreadyInHouse
	}
	if err != nil {
		return nil, nil, fmt.Errorf("join house: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+memberCols+` FROM house_members WHERE id = ?`, memberID)
	member, err := scanMember(row)
	if err != nil {
		return nil, nil, fmt.Errorf("read membership: %w", err)
	}
	return house, member, nil
}

func (s *HouseStore) GetByID(id string) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE id = ?`, id)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

func (s *HouseStore) getByCode(code string) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE house_code = ?`, code)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house by code: %w", err)
	}
	return h, nil
}

// GetByCode returns the house with its members, or nil when no house has the
// code. This is an advisory read used for pre-submission feedback; a house
// found here can still fail to join later.
func (s *HouseStore) GetByCode(code string) (*model.HouseDetail, error) {
	house, err := s.getByCode(housecode.Normalize(code))
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, nil
	}
	members, err := s.ListMembers(house.ID)
	if err != nil {
		return nil, err
	}
	return &model.HouseDetail{House: *house, Members: members}, nil
}

// GetUserMembership returns the user's membership row, or nil when the user
// belongs to no house.
func (s *HouseStore) GetUserMembership(userID string) (*model.HouseMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM house_members WHERE user_id = ?`, userID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// GetUserHouse returns the (at most one) house the user belongs to, or nil.
func (s *HouseStore) GetUserHouse(userID string) (*model.House, error) {
	row := s.db.QueryRow(
		`SELECT h.id, h.house_code, h.head_of_household_id, h.house_name, h.address, h.created_at, h.updated_at
		 FROM houses h
		 JOIN house_members hm ON h.id = hm.house_id
		 WHERE hm.user_id = ?`,
		userID,
	)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user house: %w", err)
	}
	return h, nil
}

// ListMembers returns all members of a house, head of household first, with
// profile fields attached. Members whose profile has not been written yet
// carry empty profile fields.
func (s *HouseStore) ListMembers(houseID string) ([]model.MemberDetail, error) {
	rows, err := s.db.Query(
		`SELECT hm.id, hm.house_id, hm.user_id, hm.is_head, hm.joined_at,
		        COALESCE(p.full_name, ''), COALESCE(p.email, ''), COALESCE(p.date_of_birth, ''), COALESCE(p.gender, '')
		 FROM house_members hm
		 LEFT JOIN user_profiles p ON p.user_id = hm.user_id
		 WHERE hm.house_id = ?
		 ORDER BY hm.is_head DESC, hm.joined_at ASC`,
		houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.MemberDetail
	for rows.Next() {
		var m model.MemberDetail
		if err := rows.Scan(
			&m.ID, &m.HouseID, &m.UserID, &m.IsHead, &m.JoinedAt,
			&m.FullName, &m.Email, &m.DateOfBirth, &m.Gender,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Leave removes the user's membership. A head of household cannot leave;
// that is rejected explicitly rather than silently ignored.
func (s *HouseStore) Leave(userID string) error {
	member, err := s.GetUserMembership(userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotAMember
	}
	if member.IsHead {
		return ErrHeadCannotLeave
	}
	_, err = s.db.Exec(`DELETE FROM house_members WHERE user_id = ? AND is_head = 0`, userID)
	if err != nil {
		return fmt.Errorf("leave house: %w", err)
	}
	return nil
}

// Update applies a partial update to house_name/address and stamps
// updated_at. Authorization (head only) is enforced by the caller.
func (s *HouseStore) Update(houseID string, houseName, address *string) (*model.House, error) {
	existing, err := s.GetByID(houseID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrHouseNotFound
	}

	name := existing.HouseName
	if houseName != nil {
		name = *houseName
	}
	addr := existing.Address
	if address != nil {
		addr = *address
	}

	_, err = s.db.Exec(
		`UPDATE houses SET house_name = ?, address = ?, updated_at = datetime('now') WHERE id = ?`,
		name, addr, houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("update house: %w", err)
	}
	return s.GetByID(houseID)
}

// Delete removes a house and, via cascade, its membership rows. Used by the
// signup saga to compensate when profile creation fails after a house was
// created.
func (s *HouseStore) Delete(houseID string) error {
	_, err := s.db.Exec(`DELETE FROM houses WHERE id = ?`, houseID)
	if err != nil {
		return fmt.Errorf("delete house: %w", err)
	}
	return nil
}

// CountMembers returns the number of members in a house.
func (s *HouseStore) CountMembers(houseID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM house_members WHERE house_id = ?`, houseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}
