package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/housecode"
	"github.com/ecotrackhq/ecotrack/internal/store"
	"github.com/ecotrackhq/ecotrack/internal/websocket"
)

type HouseHandler struct {
	houseStore *store.HouseStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewHouseHandler(hs *store.HouseStore, hub *websocket.Hub, logger *slog.Logger) *HouseHandler {
	return &HouseHandler{houseStore: hs, hub: hub, logger: logger}
}

// Lookup is the public pre-signup check: does this code belong to a house?
// Malformed codes are rejected without touching the database.
func (h *HouseHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if !housecode.Valid(code) {
		writeError(w, http.StatusBadRequest, "malformed house code")
		return
	}

	detail, err := h.houseStore.GetByCode(code)
	if err != nil {
		h.logger.Error("lookup house", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "house code not found")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Get returns the caller's house with members attached.
func (h *HouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	house, err := h.houseStore.GetUserHouse(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user house", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get house")
		return
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "not a member of any house")
		return
	}

	detail, err := h.houseStore.GetByCode(house.HouseCode)
	if err != nil {
		h.logger.Error("get house detail", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get house")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Update changes house name or address. Only the head of household may call it.
func (h *HouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	membership, err := h.houseStore.GetUserMembership(userID)
	if err != nil {
		h.logger.Error("get membership", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get membership")
		return
	}
	if membership == nil {
		writeError(w, http.StatusNotFound, "not a member of any house")
		return
	}
	if !membership.IsHead {
		writeError(w, http.StatusForbidden, "only the head of household can update the house")
		return
	}

	var req struct {
		HouseName *string `json:"house_name"`
		Address   *string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.HouseName == nil && req.Address == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	house, err := h.houseStore.Update(membership.HouseID, req.HouseName, req.Address)
	if err != nil {
		h.logger.Error("update house", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update house")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("house", "updated", house.ID, nil))
	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Members(w http.ResponseWriter, r *http.Request) {
	house, err := h.houseStore.GetUserHouse(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user house", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get house")
		return
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "not a member of any house")
		return
	}

	members, err := h.houseStore.ListMembers(house.ID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *HouseHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	house, err := h.houseStore.GetUserHouse(userID)
	if err != nil {
		h.logger.Error("get user house", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave house")
		return
	}

	if err := h.houseStore.Leave(userID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotAMember):
			writeError(w, http.StatusNotFound, "not a member of any house")
		case errors.Is(err, store.ErrHeadCannotLeave):
			writeError(w, http.StatusConflict, "the head of household cannot leave")
		default:
			h.logger.Error("leave house", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to leave house")
		}
		return
	}

	if house != nil {
		h.hub.Broadcast(websocket.NewMessage("house_member", "left", userID,
			map[string]any{"house_id": house.ID}))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}
