package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ecotrackhq/ecotrack/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var confirmedAt sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &confirmedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		u.EmailConfirmedAt = &confirmedAt.Time
	}
	return &u, nil
}

const userCols = `id, email, full_name, password_hash, email_confirmed_at, created_at, updated_at`

func (s *UserStore) Create(email, passwordHash, fullName string) (*model.User, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, full_name, password_hash) VALUES (?, ?, ?, ?)`,
		id, strings.ToLower(strings.TrimSpace(email)), fullName, passwordHash,
	)
	// The unique index on email backs the service-level duplicate check when
	// two signups race.
	if isUniqueViolation(err, "users.email") {
		return nil, ErrEmailTaken
	}
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
	row := s.db.QueryRow(
		`SELECT `+userCols+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ConfirmEmail stamps email_confirmed_at; a no-op if already confirmed.
func (s *UserStore) ConfirmEmail(id string) error {
	_, err := s.db.Exec(
		`UPDATE users SET email_confirmed_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ? AND email_confirmed_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
