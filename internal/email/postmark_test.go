package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendVerificationCode(t *testing.T) {
	var got postmarkEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("token-123", "noreply@ecotrack.test", srv.URL, WithHTTPClient(srv.Client()))
	if err := c.SendVerificationCode("asha@example.com", "482913", "signup"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotToken != "token-123" {
		t.Errorf("server token = %q, want %q", gotToken, "token-123")
	}
	if got.To != "asha@example.com" {
		t.Errorf("to = %q", got.To)
	}
	if !strings.Contains(got.TextBody, "482913") {
		t.Errorf("text body missing code: %q", got.TextBody)
	}
}

func TestSendUnconfigured(t *testing.T) {
	c := NewClient("", "noreply@ecotrack.test", "http://localhost")
	if err := c.SendVerificationCode("asha@example.com", "482913", "signup"); err == nil {
		t.Error("expected error when unconfigured")
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("token-123", "noreply@ecotrack.test", srv.URL, WithHTTPClient(srv.Client()))
	if err := c.SendVerificationCode("asha@example.com", "482913", "signup"); err == nil {
		t.Error("expected error on non-200 response")
	}
}
