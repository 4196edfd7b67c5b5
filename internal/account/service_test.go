package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ecotrackhq/ecotrack/internal/database"
	"github.com/ecotrackhq/ecotrack/internal/email"
	"github.com/ecotrackhq/ecotrack/internal/housecode"
	"github.com/ecotrackhq/ecotrack/internal/model"
	"github.com/ecotrackhq/ecotrack/internal/store"
)

func setupService(t *testing.T) (*Service, *store.UserStore, *store.HouseStore, *store.VerificationCodeStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	profiles := store.NewProfileStore(db)
	houses := store.NewHouseStore(db)
	sessions := store.NewSessionStore(db)
	codes := store.NewVerificationCodeStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(users, profiles, houses, sessions, codes,
		email.NewClient("", "", ""),
		[]byte("test-secret"), 15*time.Minute, 30*24*time.Hour, logger)
	return svc, users, houses, codes
}

func headInput(emailAddr string) SignUpInput {
	return SignUpInput{
		Email:             emailAddr,
		Password:          "correct-horse",
		FullName:          "Alice Example",
		DateOfBirth:       "1990-04-01",
		Gender:            "female",
		IsHeadOfHousehold: true,
	}
}

func TestSignUpHeadOfHousehold(t *testing.T) {
	svc, _, houses, _ := setupService(t)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, headInput("alice@example.com"))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.House == nil {
		t.Fatal("expected a house to be created")
	}
	if !housecode.Valid(res.House.HouseCode) {
		t.Errorf("house code %q does not match the expected format", res.House.HouseCode)
	}
	if res.Profile.VerificationStatus != model.VerificationPending {
		t.Errorf("verification status = %q, want pending", res.Profile.VerificationStatus)
	}
	if res.Profile.HouseID == nil || *res.Profile.HouseID != res.House.ID {
		t.Error("profile not linked to the created house")
	}

	members, err := houses.ListMembers(res.House.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("got %d members, want 1", len(members))
	}
	if !members[0].IsHead {
		t.Error("creator is not recorded as head of household")
	}
}

func TestSignUpJoinByCode(t *testing.T) {
	svc, _, houses, _ := setupService(t)
	ctx := context.Background()

	head, err := svc.SignUp(ctx, headInput("head@example.com"))
	if err != nil {
		t.Fatalf("head signup: %v", err)
	}

	in := headInput("member@example.com")
	in.IsHeadOfHousehold = false
	in.HouseCode = head.House.HouseCode
	res, err := svc.SignUp(ctx, in)
	if err != nil {
		t.Fatalf("member signup: %v", err)
	}
	if res.House.ID != head.House.ID {
		t.Error("member joined a different house")
	}

	members, err := houses.ListMembers(head.House.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
}

func TestSignUpJoinLowercaseCode(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	head, err := svc.SignUp(ctx, headInput("head@example.com"))
	if err != nil {
		t.Fatalf("head signup: %v", err)
	}

	in := headInput("member@example.com")
	in.IsHeadOfHousehold = false
	in.HouseCode = "  " + lower(head.House.HouseCode) + "  "
	if _, err := svc.SignUp(ctx, in); err != nil {
		t.Fatalf("signup with lowercase padded code: %v", err)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func TestSignUpUnknownCodeRollsBackAccount(t *testing.T) {
	svc, users, _, _ := setupService(t)
	ctx := context.Background()

	in := headInput("orphan@example.com")
	in.IsHeadOfHousehold = false
	in.HouseCode = "ECO-2026-ZZZZZZ" // well-formed, but no such house

	_, err := svc.SignUp(ctx, in)
	if !errors.Is(err, store.ErrHouseCodeNotFound) {
		t.Fatalf("err = %v, want ErrHouseCodeNotFound", err)
	}

	user, err := users.GetByEmail("orphan@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user != nil {
		t.Error("failed signup left an account behind")
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		mutate func(*SignUpInput)
		want  error
	}{
		{"bad email", func(in *SignUpInput) { in.Email = "not-an-email" }, ErrInvalidEmail},
		{"short password", func(in *SignUpInput) { in.Password = "short" }, ErrWeakPassword},
		{"no house choice", func(in *SignUpInput) { in.IsHeadOfHousehold = false }, ErrHouseChoiceRequired},
		{"malformed code", func(in *SignUpInput) {
			in.IsHeadOfHousehold = false
			in.HouseCode = "ECO-26-ABC"
		}, ErrInvalidHouseCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := headInput("valid@example.com")
			tt.mutate(&in)
			if _, err := svc.SignUp(ctx, in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("dup@example.com")); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.SignUp(ctx, headInput("DUP@example.com"))
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func confirmUser(t *testing.T, svc *Service, users *store.UserStore, emailAddr string) {
	t.Helper()
	user, err := users.GetByEmail(emailAddr)
	if err != nil || user == nil {
		t.Fatalf("get user %s: %v", emailAddr, err)
	}
	if err := users.ConfirmEmail(user.ID); err != nil {
		t.Fatalf("confirm email: %v", err)
	}
}

func TestSignInBeforeConfirmation(t *testing.T) {
	svc, _, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("new@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, err := svc.SignIn(ctx, "new@example.com", "correct-horse")
	if !errors.Is(err, ErrEmailNotConfirmed) {
		t.Errorf("err = %v, want ErrEmailNotConfirmed", err)
	}
}

func TestSignInAndSession(t *testing.T) {
	svc, users, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	confirmUser(t, svc, users, "alice@example.com")

	res, err := svc.SignIn(ctx, "Alice@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	user, _, err := svc.Session(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("session user = %q", user.Email)
	}

	if err := svc.SignOut(ctx, res.RefreshToken); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, _, err := svc.Session(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("session after signout: err = %v, want ErrInvalidSession", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc, users, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	confirmUser(t, svc, users, "alice@example.com")

	if _, err := svc.SignIn(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefresh(t *testing.T) {
	svc, users, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	confirmUser(t, svc, users, "alice@example.com")
	res, err := svc.SignIn(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("expected a fresh access token")
	}

	if _, err := svc.Refresh(ctx, "deadbeef"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("bogus token: err = %v, want ErrInvalidSession", err)
	}
}

func TestVerifyOTP(t *testing.T) {
	svc, users, _, codes := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}

	code, err := codes.GetLatestByEmail("alice@example.com")
	if err != nil || code == nil {
		t.Fatalf("expected a pending code: %v", err)
	}

	if err := svc.VerifyOTP(ctx, "alice@example.com", "000000"); !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("wrong code: err = %v, want ErrIncorrectCode", err)
	}
	if err := svc.VerifyOTP(ctx, "alice@example.com", code.Code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	user, err := users.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Confirmed() {
		t.Error("email not confirmed after verification")
	}

	// The code is single-use.
	if err := svc.VerifyOTP(ctx, "alice@example.com", code.Code); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("reused code: err = %v, want ErrCodeExpired", err)
	}
}

func TestVerifyOTPAttemptLimit(t *testing.T) {
	svc, _, _, codes := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	code, err := codes.GetLatestByEmail("alice@example.com")
	if err != nil || code == nil {
		t.Fatalf("expected a pending code: %v", err)
	}

	var last error
	for i := 0; i < maxCodeAttempts; i++ {
		last = svc.VerifyOTP(ctx, "alice@example.com", "000000")
	}
	if !errors.Is(last, ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", last)
	}
	// The correct code no longer works once invalidated.
	if err := svc.VerifyOTP(ctx, "alice@example.com", code.Code); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("err = %v, want ErrCodeExpired", err)
	}
}

func TestResendOTP(t *testing.T) {
	svc, _, _, codes := setupService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, headInput("alice@example.com")); err != nil {
		t.Fatalf("signup: %v", err)
	}
	first, err := codes.GetLatestByEmail("alice@example.com")
	if err != nil || first == nil {
		t.Fatalf("expected a pending code: %v", err)
	}

	if err := svc.ResendOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second, err := codes.GetLatestByEmail("alice@example.com")
	if err != nil || second == nil {
		t.Fatalf("expected a fresh code: %v", err)
	}
	if second.ID == first.ID {
		t.Error("resend did not issue a new code")
	}

	// Unknown emails succeed silently.
	if err := svc.ResendOTP(ctx, "nobody@example.com"); err != nil {
		t.Errorf("resend for unknown email: %v", err)
	}
}
