// Package service holds the business rules between the HTTP handlers and
// the repositories.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, checks ownership, orchestrates
//	Repository      → reads/writes storage
//
// Services accept primitives and return domain errors (apperror), so the same
// rules apply to the HTTP server, the seed command and tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/metrics"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// newPostInput is validated before a post reaches storage.
type newPostInput struct {
	Title   string   `validate:"required,max=200"`
	Content string   `validate:"required,max=20000"`
	Author  string   `validate:"required"`
	Tags    []string `validate:"max=20,dive,max=40"`
	Rating  *int     `validate:"omitempty,min=1,max=5"`
}

// PostService handles creating, listing and deleting posts.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		logger: logger,
	}
}

// Create validates and stores a new post by author.
//
// Title and content are trimmed and must be non-empty; rating, when given,
// must be in [1,5]; the author must be an existing username. The timestamp
// is taken now and the like set starts empty.
func (s *PostService) Create(ctx context.Context, title, content, author string, tags []string, rating *int) (*model.Post, error) {
	in := newPostInput{
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		Author:  author,
		Tags:    model.NormalizeTags(tags),
		Rating:  rating,
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByUsername(ctx, author); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("author", "author does not exist: "+author)
		}
		return nil, fmt.Errorf("service/post: resolving author: %w", err)
	}

	post := &model.Post{
		Title:     in.Title,
		Content:   in.Content,
		Username:  author,
		Tags:      in.Tags,
		TagString: model.JoinTags(tags),
		Rating:    in.Rating,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author", author),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	metrics.PostsCreatedTotal.Inc()
	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		slog.String("author", author),
		slog.String("title", post.Title),
	)
	return post, nil
}

// GetByID returns a post or apperror.ErrNotFound.
func (s *PostService) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	if id <= 0 {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	return s.posts.GetPostByID(ctx, id)
}

// List returns the feed in the given order, optionally restricted to posts
// whose joined tag string contains tagFilter (case-sensitive).
//
// limit <= 0 returns every matching post; larger limits are capped at
// MaxListLimit.
func (s *PostService) List(ctx context.Context, order repository.Order, tagFilter string, limit, offset int) ([]model.Post, error) {
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	posts, err := s.posts.ListPosts(ctx, repository.ListOptions{
		Order:     repository.ParseOrder(string(order)),
		TagFilter: tagFilter,
		Limit:     limit,
		Offset:    max(offset, 0),
	})
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor returns every post written by username, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, username string) ([]model.Post, error) {
	posts, err := s.posts.ListPosts(ctx, repository.ListOptions{
		Order:  repository.OrderNewest,
		Author: username,
	})
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts by %q: %w", username, err)
	}
	return posts, nil
}

// Delete removes post id if requester wrote it and reports whether anything
// was deleted. A missing post or a non-owner is a no-op, not an error.
func (s *PostService) Delete(ctx context.Context, id int64, requester string) (bool, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/post: loading post %d: %w", id, err)
	}

	if !model.IsOwner(post, requester) {
		s.logger.Warn("delete refused: not the author",
			slog.Int64("id", id),
			slog.String("requester", requester),
		)
		return false, nil
	}

	deleted, err := s.posts.DeletePost(ctx, id)
	if err != nil {
		return false, fmt.Errorf("service/post: deleting post %d: %w", id, err)
	}
	if deleted {
		metrics.PostsDeletedTotal.Inc()
		s.logger.Info("post deleted", slog.Int64("id", id), slog.String("author", requester))
	}
	return deleted, nil
}
