package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
	"github.com/sakif/indie-arcade/internal/service"
)

// PostHandler serves the feed, the profile page and every post mutation.
//
// HANDLER RESPONSIBILITIES:
//   - HandleFeed    → home page data, optional session
//   - HandleProfile → the signed-in user's posts
//   - HandleCreate  → new review
//   - HandleLike    → like toggle
//   - HandleDelete  → delete own review
//
// Handlers only translate HTTP to service calls; ownership and validation
// live in the service layer.
type PostHandler struct {
	posts    *service.PostService
	likes    *service.LikeService
	sessions *service.AuthService
	logger   *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(
	posts *service.PostService,
	likes *service.LikeService,
	sessions *service.AuthService,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		posts:    posts,
		likes:    likes,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleFeed returns the home page view data.
//
// HTTP: GET /?order=mostLikes&tagFilter=RPG&sortLabel=Top
// Auth: Optional (personalises likedByMe / isMine)
//
// gameFilter is accepted as an older name for tagFilter.
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	tagFilter := q.Get("tagFilter")
	if tagFilter == "" {
		tagFilter = q.Get("gameFilter")
	}

	feed, err := h.posts.Feed(r.Context(), viewer,
		repository.ParseOrder(q.Get("order")), tagFilter, q.Get("sortLabel"))
	if err != nil {
		h.logger.Error("feed failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// HandleProfile returns the signed-in user with their posts.
//
// HTTP: GET /profile
// Auth: Required
func (h *PostHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.posts.Profile(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleCreate publishes a review authored by the signed-in user.
//
// HTTP: POST /posts
// Auth: Required
// BODY (JSON or form): title, content, tags ("a,b" or ["a","b"]), rating (1-5, optional)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	fields, err := requestFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	rating, err := parseRating(fields["rating"])
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(),
		fields["title"],
		fields["content"],
		user.Username,
		model.SplitTags(fields["tags"]),
		rating,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.NewPostViews([]model.Post{*post}, user)[0])
}

// HandleLike toggles the signed-in user's like.
//
// HTTP: POST /like/{id}
// Auth: Required
// RESPONSE: {"liked": true, "likeCount": 3}
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	liked, err := h.likes.Toggle(r.Context(), id, user.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		// Deleted between the toggle and this read.
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"liked":     liked,
		"likeCount": post.LikeCount(),
	})
}

// HandleDelete removes a post if the signed-in user wrote it.
//
// HTTP: POST /delete/{id} or DELETE /posts/{id}
// Auth: Required
// RESPONSE: {"deleted": false} when the post is missing or not the caller's.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := h.posts.Delete(r.Context(), id, user.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// viewer returns the signed-in user, or nil for anonymous requests. A
// session for a user that no longer exists is treated as anonymous.
func (h *PostHandler) viewer(ctx context.Context) (*model.User, error) {
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, nil
	}
	user, err := h.sessions.CurrentUser(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (h *PostHandler) requireUser(ctx context.Context) (*model.User, error) {
	user, err := h.viewer(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized("sign in first")
	}
	return user, nil
}

func parseRating(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.ValidationFailed("rating", "rating must be a whole number from 1 to 5")
	}
	return &n, nil
}
