package store

import (
	"testing"

	"github.com/ecotrackhq/ecotrack/internal/database"
)

func setupVerificationTestDB(t *testing.T) *VerificationCodeStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewVerificationCodeStore(db)
}

func TestVerificationCodeCreate(t *testing.T) {
	vs := setupVerificationTestDB(t)

	vc, err := vs.Create("alice@example.com", "signup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(vc.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(vc.Code))
	}
	for _, c := range vc.Code {
		if c < '0' || c > '9' {
			t.Errorf("code %q contains non-digit", vc.Code)
			break
		}
	}
	if vc.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", vc.Attempts)
	}
}

func TestVerificationCodeCreateInvalidatesPrevious(t *testing.T) {
	vs := setupVerificationTestDB(t)

	first, err := vs.Create("alice@example.com", "signup")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := vs.Create("alice@example.com", "signup")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	latest, err := vs.GetLatestByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a pending code")
	}
	if latest.ID != second.ID {
		t.Errorf("latest id = %d, want %d", latest.ID, second.ID)
	}
	if latest.ID == first.ID {
		t.Error("first code should have been invalidated")
	}
}

func TestVerificationCodeMarkUsed(t *testing.T) {
	vs := setupVerificationTestDB(t)

	vc, err := vs.Create("alice@example.com", "signup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := vs.MarkUsed(vc.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	latest, err := vs.GetLatestByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest != nil {
		t.Error("used code should not be returned")
	}
}

func TestVerificationCodeIncrementAttempts(t *testing.T) {
	vs := setupVerificationTestDB(t)

	vc, err := vs.Create("alice@example.com", "signup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := vs.IncrementAttempts(vc.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}
}

func TestVerificationCodePerEmail(t *testing.T) {
	vs := setupVerificationTestDB(t)

	a, err := vs.Create("a@example.com", "signup")
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := vs.Create("b@example.com", "signup"); err != nil {
		t.Fatalf("create b: %v", err)
	}

	// b's code must not invalidate a's.
	latest, err := vs.GetLatestByEmail("a@example.com")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.ID != a.ID {
		t.Error("a's code was affected by b's creation")
	}
}
