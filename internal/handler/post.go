package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecotrackhq/ecotrack/internal/auth"
	"github.com/ecotrackhq/ecotrack/internal/model"
	"github.com/ecotrackhq/ecotrack/internal/store"
	"github.com/ecotrackhq/ecotrack/internal/websocket"
)

type PostHandler struct {
	postStore  *store.PostStore
	houseStore *store.HouseStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewPostHandler(ps *store.PostStore, hs *store.HouseStore, hub *websocket.Hub, logger *slog.Logger) *PostHandler {
	return &PostHandler{postStore: ps, houseStore: hs, hub: hub, logger: logger}
}

// callerHouse resolves the caller's house, writing the error response itself
// when there is none.
func (h *PostHandler) callerHouse(w http.ResponseWriter, r *http.Request) (*model.House, bool) {
	house, err := h.houseStore.GetUserHouse(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user house", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get house")
		return nil, false
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "not a member of any house")
		return nil, false
	}
	return house, true
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	house, ok := h.callerHouse(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	posts, err := h.postStore.ListByHouse(house.ID, auth.UserID(r.Context()), limit)
	if err != nil {
		h.logger.Error("list posts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	house, ok := h.callerHouse(w, r)
	if !ok {
		return
	}

	var req struct {
		Content  string `json:"content"`
		PhotoURL string `json:"photo_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && req.PhotoURL == "" {
		writeError(w, http.StatusBadRequest, "content or photo is required")
		return
	}

	post, err := h.postStore.Create(house.ID, auth.UserID(r.Context()), req.Content, req.PhotoURL)
	if err != nil {
		h.logger.Error("create post", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("post", "created", post.ID,
		map[string]any{"house_id": house.ID}))
	writeJSON(w, http.StatusCreated, post)
}

// getPost loads a post and verifies it belongs to the caller's house.
func (h *PostHandler) getPost(w http.ResponseWriter, r *http.Request) (*model.Post, bool) {
	house, ok := h.callerHouse(w, r)
	if !ok {
		return nil, false
	}

	post, err := h.postStore.Get(r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get post", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get post")
		return nil, false
	}
	if post == nil || post.HouseID != house.ID {
		writeError(w, http.StatusNotFound, "post not found")
		return nil, false
	}
	return post, true
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}
	if err := h.postStore.Like(post.ID, auth.UserID(r.Context())); err != nil {
		h.logger.Error("like post", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to like post")
		return
	}
	h.hub.Broadcast(websocket.NewMessage("post", "liked", post.ID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "liked"})
}

func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}
	if err := h.postStore.Unlike(post.ID, auth.UserID(r.Context())); err != nil {
		h.logger.Error("unlike post", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unlike post")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unliked"})
}

func (h *PostHandler) Repost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}
	if err := h.postStore.Repost(post.ID, auth.UserID(r.Context())); err != nil {
		h.logger.Error("repost", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to repost")
		return
	}
	h.hub.Broadcast(websocket.NewMessage("post", "reposted", post.ID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reposted"})
}

func (h *PostHandler) Unrepost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}
	if err := h.postStore.Unrepost(post.ID, auth.UserID(r.Context())); err != nil {
		h.logger.Error("unrepost", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove repost")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unreposted"})
}

func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}
	comments, err := h.postStore.ListComments(post.ID)
	if err != nil {
		h.logger.Error("list comments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []model.PostComment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	post, ok := h.getPost(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	comment, err := h.postStore.AddComment(post.ID, auth.UserID(r.Context()), req.Content)
	if err != nil {
		h.logger.Error("add comment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("post", "commented", post.ID, nil))
	writeJSON(w, http.StatusCreated, comment)
}
