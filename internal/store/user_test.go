package store

import (
	"errors"
	"testing"

	"github.com/ecotrackhq/ecotrack/internal/database"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreateAndGet(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("Alice@Example.COM", "hash", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if u.Confirmed() {
		t.Error("new user should not be confirmed")
	}

	got, err := us.GetByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("lookup by mixed-case email failed")
	}

	byID, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID == nil || byID.Email != u.Email {
		t.Error("lookup by id failed")
	}
}

func TestUserGetMissing(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("dup@example.com", "hash", "One"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := us.Create("DUP@example.com", "hash", "Two"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestUserConfirmEmail(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "hash", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := us.ConfirmEmail(u.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got, _ := us.GetByID(u.ID)
	if !got.Confirmed() {
		t.Fatal("user not confirmed")
	}
	first := *got.EmailConfirmedAt

	// Confirming again leaves the original timestamp.
	if err := us.ConfirmEmail(u.ID); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	got, _ = us.GetByID(u.ID)
	if !got.EmailConfirmedAt.Equal(first) {
		t.Error("second confirm changed the timestamp")
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "hash", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("user still present after delete")
	}
}
