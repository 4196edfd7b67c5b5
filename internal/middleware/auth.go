package middleware

import (
	"net/http"
	"strings"

	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/store"
)

// RequireAuth validates the Bearer access token and populates AuthContext.
// The JWT proves who signed it; the session row it points at must still be
// live, so sign-out takes effect before the access token expires.
func RequireAuth(jwtSecret []byte, sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := auth.ParseToken(token, jwtSecret)
			if err != nil {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByID(claims.SessionID)
			if err != nil || sess == nil || sess.UserID != claims.UserID {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    claims.UserID,
				SessionID: claims.SessionID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
