package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// MaxStars is the length of PostView.Stars.
const MaxStars = 5

// PostView is a post plus the per-viewer fields the pages display.
type PostView struct {
	model.Post
	LikeCount int    `json:"likeCount"`
	LikedByMe bool   `json:"likedByMe"`
	IsMine    bool   `json:"isMine"`
	Stars     []bool `json:"stars"`
}

// FeedView is the home page data.
type FeedView struct {
	Posts     []PostView       `json:"posts"`
	User      *model.User      `json:"user"`
	Order     repository.Order `json:"order"`
	SortLabel string           `json:"sortLabel"`
	TagFilter string           `json:"tagFilter"`
}

// ProfileView is a user with their posts embedded.
type ProfileView struct {
	*model.User
	Posts []PostView `json:"posts"`
}

// Stars renders a rating as MaxStars flags, the first rating of them set.
// A missing rating is all unset.
func Stars(rating *int) []bool {
	stars := make([]bool, MaxStars)
	if rating == nil {
		return stars
	}
	for i := range stars {
		stars[i] = i < *rating
	}
	return stars
}

// SortLabel is the default heading for an order.
func SortLabel(order repository.Order) string {
	switch order {
	case repository.OrderOldest:
		return "Oldest"
	case repository.OrderMostLikes:
		return "Most Liked"
	default:
		return "Newest"
	}
}

// NewPostViews decorates posts for viewer (nil for anonymous).
func NewPostViews(posts []model.Post, viewer *model.User) []PostView {
	name := ""
	if viewer != nil {
		name = viewer.Username
	}
	return lo.Map(posts, func(p model.Post, _ int) PostView {
		return PostView{
			Post:      p,
			LikeCount: p.LikeCount(),
			LikedByMe: p.IsLikedBy(name),
			IsMine:    model.IsOwner(&p, name),
			Stars:     Stars(p.Rating),
		}
	})
}

// Feed builds the home page data. sortLabel overrides the default label
// when non-empty.
func (s *PostService) Feed(ctx context.Context, viewer *model.User, order repository.Order, tagFilter, sortLabel string) (*FeedView, error) {
	order = repository.ParseOrder(string(order))
	posts, err := s.List(ctx, order, tagFilter, 0, 0)
	if err != nil {
		return nil, err
	}
	if sortLabel == "" {
		sortLabel = SortLabel(order)
	}
	return &FeedView{
		Posts:     NewPostViews(posts, viewer),
		User:      viewer,
		Order:     order,
		SortLabel: sortLabel,
		TagFilter: tagFilter,
	}, nil
}

// Profile builds the profile page data for user.
func (s *PostService) Profile(ctx context.Context, user *model.User) (*ProfileView, error) {
	if user == nil {
		return nil, fmt.Errorf("service/post: profile needs a user")
	}
	posts, err := s.ListByAuthor(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	return &ProfileView{User: user, Posts: NewPostViews(posts, user)}, nil
}
