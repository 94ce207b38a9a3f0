package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/metrics"
	"github.com/sakif/indie-arcade/internal/repository"
)

// LikeService toggles likes.
type LikeService struct {
	likes  repository.LikeRepository
	logger *slog.Logger
}

func NewLikeService(likes repository.LikeRepository, logger *slog.Logger) *LikeService {
	return &LikeService{likes: likes, logger: logger}
}

// Toggle flips username's like on postID and returns the new state.
// Calling it twice restores the original state. Anonymous callers are
// rejected; a missing post is apperror.ErrNotFound.
func (s *LikeService) Toggle(ctx context.Context, postID int64, username string) (bool, error) {
	if username == "" {
		return false, apperror.Unauthorized("log in to like posts")
	}

	liked, err := s.likes.ToggleLike(ctx, postID, username)
	if err != nil {
		return false, fmt.Errorf("service/like: toggling like on post %d: %w", postID, err)
	}

	result := "unliked"
	if liked {
		result = "liked"
	}
	metrics.LikeTogglesTotal.WithLabelValues(result).Inc()
	s.logger.Debug("like toggled",
		slog.Int64("post", postID),
		slog.String("username", username),
		slog.String("result", result),
	)
	return liked, nil
}
