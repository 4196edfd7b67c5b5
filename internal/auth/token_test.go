package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, expiresAt, err := GenerateToken("user-1", "sess-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if time.Until(expiresAt) < 50*time.Minute {
		t.Errorf("expiry too soon: %v", expiresAt)
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q, want %q", claims.UserID, "user-1")
	}
	if claims.SessionID != "sess-1" {
		t.Errorf("session id = %q, want %q", claims.SessionID, "sess-1")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := GenerateToken("user-1", "sess-1", []byte("secret-a"), time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken(token, []byte("secret-b")); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, _, err := GenerateToken("user-1", "sess-1", secret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseToken(token, secret); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not-a-token", []byte("secret")); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
