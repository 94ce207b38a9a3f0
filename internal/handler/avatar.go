package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
)

// AvatarSource is what HandleAvatar needs from the avatar cache.
// *avatar.Store implements it.
type AvatarSource interface {
	Get(ctx context.Context, username string) ([]byte, error)
}

// AvatarHandler serves generated profile pictures.
type AvatarHandler struct {
	avatars AvatarSource
	logger  *slog.Logger
}

func NewAvatarHandler(avatars AvatarSource, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, logger: logger}
}

// HandleAvatar returns the user's avatar PNG, generating it on first use.
//
// HTTP: GET /avatar/{username}
// 404 for unknown users, 400 for names that cannot be a file name.
func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	data, err := h.avatars.Get(r.Context(), username)
	if err != nil {
		h.logger.Warn("avatar lookup failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// The image never changes once written.
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
