package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecotrackhq/ecotrack/internal/account"
	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/store"
	"github.com/ecotrackhq/ecotrack/internal/websocket"
)

type AuthHandler struct {
	accounts *account.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewAuthHandler(accounts *account.Service, hub *websocket.Hub, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, hub: hub, logger: logger}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in account.SignUpInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.accounts.SignUp(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidEmail),
			errors.Is(err, account.ErrWeakPassword),
			errors.Is(err, account.ErrHouseChoiceRequired),
			errors.Is(err, account.ErrInvalidHouseCode):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, account.ErrEmailAlreadyRegistered):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, store.ErrHouseCodeNotFound):
			writeError(w, http.StatusNotFound, "house code not found")
		case errors.Is(err, store.ErrAlreadyInHouse):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("signup", "error", err)
			writeError(w, http.StatusInternalServerError, "signup failed")
		}
		return
	}

	// Existing members see the new arrival without refetching.
	if !in.IsHeadOfHousehold && res.House != nil {
		h.hub.Broadcast(websocket.NewMessage("house_member", "joined", res.User.ID,
			map[string]any{"house_id": res.House.ID}))
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, account.ErrEmailNotConfirmed):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.Error("signin", "error", err)
			writeError(w, http.StatusInternalServerError, "signin failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.SignOutSession(r.Context(), auth.SessionID(r.Context())); err != nil {
		h.logger.Error("signout", "error", err)
		writeError(w, http.StatusInternalServerError, "signout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, account.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Error("refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.accounts.VerifyOTP(r.Context(), req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, account.ErrIncorrectCode):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, account.ErrCodeExpired):
			writeError(w, http.StatusGone, err.Error())
		case errors.Is(err, account.ErrTooManyAttempts):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.logger.Error("verify otp", "error", err)
			writeError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.accounts.ResendOTP(r.Context(), req.Email); err != nil {
		h.logger.Error("resend otp", "error", err)
		writeError(w, http.StatusInternalServerError, "resend failed")
		return
	}

	// Same response whether or not the email exists.
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Session returns the caller's identity, resolved from the bearer token's
// session. The mobile client calls this on launch to restore state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, sess, err := h.accounts.SessionByID(r.Context(), auth.SessionID(r.Context()))
	if err != nil {
		if errors.Is(err, account.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Error("session", "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user, "session": sess})
}
