package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), "path=/api/profile") {
		t.Errorf("request not logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("status not logged: %s", buf.String())
	}

	buf.Reset()
	req = httptest.NewRequest("GET", "/boom", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("5xx should log at error level: %s", buf.String())
	}
}

func TestRequestLoggerSkipsHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() != 0 {
		t.Errorf("health probe should not be logged: %s", buf.String())
	}
}
