// Package account orchestrates sign-up and session lifecycle. It is the only
// place that sequences multiple stores into one logical operation.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/email"
	"github.com/ecotrackhq/ecotrack/internal/housecode"
	"github.com/ecotrackhq/ecotrack/internal/model"
	"github.com/ecotrackhq/ecotrack/internal/store"
)

const (
	minPasswordLength = 8
	maxCodeAttempts   = 5
	signupPurpose     = "signup"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Sentinel errors; handlers map them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrWeakPassword           = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailNotConfirmed      = errors.New("email not confirmed")
	ErrHouseChoiceRequired    = errors.New("either head of household or a house code is required")
	ErrInvalidHouseCode       = errors.New("malformed house code")
	ErrInvalidSession         = errors.New("invalid or expired session")
	ErrCodeExpired            = errors.New("code has expired or already been used")
	ErrIncorrectCode          = errors.New("incorrect code")
	ErrTooManyAttempts        = errors.New("too many incorrect attempts")
)

type Service struct {
	users    *store.UserStore
	profiles *store.ProfileStore
	houses   *store.HouseStore
	sessions *store.SessionStore
	codes    *store.VerificationCodeStore
	email    *email.Client

	jwtSecret  []byte
	accessTTL  time.Duration
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewService(
	users *store.UserStore,
	profiles *store.ProfileStore,
	houses *store.HouseStore,
	sessions *store.SessionStore,
	codes *store.VerificationCodeStore,
	emailClient *email.Client,
	jwtSecret []byte,
	accessTTL, sessionTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:      users,
		profiles:   profiles,
		houses:     houses,
		sessions:   sessions,
		codes:      codes,
		email:      emailClient,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// SignUpInput carries the fields collected by the multi-step signup form.
type SignUpInput struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	FullName          string `json:"full_name"`
	DateOfBirth       string `json:"date_of_birth"`
	Gender            string `json:"gender"`
	IsHeadOfHousehold bool   `json:"is_head_of_household"`
	HouseCode         string `json:"house_code"`
}

// SignUpResult is the provisioned account. No tokens are issued until the
// email is confirmed.
type SignUpResult struct {
	User    *model.User        `json:"user"`
	Profile *model.UserProfile `json:"profile"`
	House   *model.House       `json:"house,omitempty"`
}

// AuthResult is a signed-in identity with its tokens.
type AuthResult struct {
	User         *model.User        `json:"user"`
	Profile      *model.UserProfile `json:"profile,omitempty"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// SignUp provisions an account, its household, and its profile as one logical
// unit. The three writes span independent stores, so failures after the
// account insert are compensated: the freshly created house (when this signup
// created one) and the user are deleted, leaving no orphaned account behind.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !emailPattern.MatchString(in.Email) {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	// Validation errors are caught before any store write.
	if !in.IsHeadOfHousehold {
		if in.HouseCode == "" {
			return nil, ErrHouseChoiceRequired
		}
		if !housecode.Valid(in.HouseCode) {
			return nil, ErrInvalidHouseCode
		}
	}

	existing, err := s.users.GetByEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(in.Email, string(hash), strings.TrimSpace(in.FullName))
	if errors.Is(err, store.ErrEmailTaken) {
		// Lost a race with a concurrent signup for the same email.
		return nil, ErrEmailAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	var house *model.House
	var createdHouse bool
	if in.IsHeadOfHousehold {
		house, err = s.houses.Create(ctx, user.ID, "", "")
		if err != nil {
			s.compensate(user.ID, "")
			return nil, err
		}
		createdHouse = true
	} else {
		house, _, err = s.houses.Join(user.ID, in.HouseCode)
		if err != nil {
			s.compensate(user.ID, "")
			return nil, err
		}
	}

	profile, err := s.profiles.Create(store.CreateProfileParams{
		UserID:             user.ID,
		Email:              user.Email,
		FullName:           strings.TrimSpace(in.FullName),
		DateOfBirth:        in.DateOfBirth,
		Gender:             in.Gender,
		IsHeadOfHousehold:  in.IsHeadOfHousehold,
		HouseID:            &house.ID,
		VerificationStatus: model.VerificationPending,
	})
	if err != nil {
		houseID := ""
		if createdHouse {
			houseID = house.ID
		}
		s.compensate(user.ID, houseID)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.sendCode(user.Email)

	return &SignUpResult{User: user, Profile: profile, House: house}, nil
}

// compensate undoes the partial signup: the created house (when any) and the
// user. Failures here are logged, not returned; the caller already has the
// original error.
func (s *Service) compensate(userID, houseID string) {
	if houseID != "" {
		if err := s.houses.Delete(houseID); err != nil {
			s.logger.Error("signup compensation: delete house", "house_id", houseID, "error", err)
		}
	}
	if err := s.users.Delete(userID); err != nil {
		s.logger.Error("signup compensation: delete user", "user_id", userID, "error", err)
	}
}

// sendCode issues a fresh verification code and emails it, best effort.
func (s *Service) sendCode(emailAddr string) {
	code, err := s.codes.Create(emailAddr, signupPurpose)
	if err != nil {
		s.logger.Error("create verification code", "error", err)
		return
	}
	if !s.email.Configured() {
		s.logger.Warn("email client not configured, skipping verification email", "email", emailAddr)
		return
	}
	if err := s.email.SendVerificationCode(emailAddr, code.Code, signupPurpose); err != nil {
		s.logger.Error("send verification code", "error", err)
	}
}

// SignIn authenticates by email and password and opens a session.
// ErrEmailNotConfirmed is distinguished so the caller can redirect to the
// OTP-verification step.
func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (*AuthResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := s.sessions.Create(user.ID, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	access, expiresAt, err := auth.GenerateToken(user.ID, sess.ID, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Get(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		Profile:      profile,
		AccessToken:  access,
		RefreshToken: sess.Token,
		ExpiresAt:    expiresAt,
	}, nil
}

// SignOut revokes the session behind the given refresh token. Unknown tokens
// are a no-op.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.GetByToken(refreshToken)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return s.sessions.Revoke(sess.ID)
}

// SignOutSession revokes a session by id, for callers already authenticated
// with an access token.
func (s *Service) SignOutSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Revoke(sessionID)
}

// Refresh exchanges a live refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	sess, err := s.sessions.GetByToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidSession
	}

	access, expiresAt, err := auth.GenerateToken(user.ID, sess.ID, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: sess.Token,
		ExpiresAt:    expiresAt,
	}, nil
}

// VerifyOTP checks a 6-digit signup code and marks the email confirmed.
// Expiry and attempt limits follow the code store's policy: 15-minute codes,
// at most 5 attempts before invalidation.
func (s *Service) VerifyOTP(ctx context.Context, emailAddr, code string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if emailAddr == "" || code == "" {
		return ErrIncorrectCode
	}

	latest, err := s.codes.GetLatestByEmail(emailAddr)
	if err != nil {
		return err
	}
	if latest == nil {
		return ErrCodeExpired
	}
	if latest.Attempts >= maxCodeAttempts {
		if err := s.codes.MarkUsed(latest.ID); err != nil {
			s.logger.Error("invalidate verification code", "code_id", latest.ID, "error", err)
		}
		return ErrTooManyAttempts
	}
	if latest.Code != code {
		attempts, err := s.codes.IncrementAttempts(latest.ID)
		if err != nil {
			return err
		}
		if attempts >= maxCodeAttempts {
			if err := s.codes.MarkUsed(latest.ID); err != nil {
				s.logger.Error("invalidate verification code", "code_id", latest.ID, "error", err)
			}
			return ErrTooManyAttempts
		}
		return ErrIncorrectCode
	}

	if err := s.codes.MarkUsed(latest.ID); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(emailAddr)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrCodeExpired
	}
	return s.users.ConfirmEmail(user.ID)
}

// ResendOTP issues a fresh code for an unconfirmed account. It succeeds
// silently for unknown or already-confirmed emails to avoid enumeration.
func (s *Service) ResendOTP(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	user, err := s.users.GetByEmail(emailAddr)
	if err != nil {
		return err
	}
	if user == nil || user.Confirmed() {
		return nil
	}
	s.sendCode(emailAddr)
	return nil
}

// Session resolves a refresh token to its user, the getSession analog.
func (s *Service) Session(ctx context.Context, refreshToken string) (*model.User, *model.Session, error) {
	sess, err := s.sessions.GetByToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	return s.resolveSession(sess)
}

// SessionByID resolves a live session by id, for bearer-authenticated callers.
func (s *Service) SessionByID(ctx context.Context, sessionID string) (*model.User, *model.Session, error) {
	if sessionID == "" {
		return nil, nil, ErrInvalidSession
	}
	sess, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return s.resolveSession(sess)
}

func (s *Service) resolveSession(sess *model.Session) (*model.User, *model.Session, error) {
	if sess == nil {
		return nil, nil, ErrInvalidSession
	}
	user, err := s.users.GetByID(sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidSession
	}
	return user, sess, nil
}
