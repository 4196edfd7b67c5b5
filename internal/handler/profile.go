package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/model"
	"github.com/ecotrackhq/ecotrack/internal/store"
)

type ProfileHandler struct {
	profileStore *store.ProfileStore
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, logger: logger}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileStore.Get(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName    *string `json:"full_name"`
		DateOfBirth *string `json:"date_of_birth"`
		Gender      *string `json:"gender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	profile, err := h.profileStore.Update(auth.UserID(r.Context()), store.UpdateProfileParams{
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	})
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateVerification records the outcome of the identity-verification step.
func (h *ProfileHandler) UpdateVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.VerificationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidVerificationStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid verification status")
		return
	}

	profile, err := h.profileStore.UpdateVerificationStatus(auth.UserID(r.Context()), req.Status)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("update verification status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update verification status")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.profileStore.Delete(auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
