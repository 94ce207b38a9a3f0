// Package repository declares the storage contracts the services depend on.
//
// The sqlite sub-package is the only implementation; services receive these
// interfaces so their tests can use in-memory fakes.
//
// Lookups signal absence with apperror.ErrNotFound. Any other error is a
// storage fault.
package repository

import (
	"context"

	"github.com/sakif/indie-arcade/internal/model"
)

// Order selects the feed sort.
type Order string

const (
	OrderNewest    Order = "newest"
	OrderOldest    Order = "oldest"
	OrderMostLikes Order = "mostLikes"
)

// ParseOrder maps a query value to an Order. Unknown values fall back to
// newest.
func ParseOrder(s string) Order {
	switch Order(s) {
	case OrderOldest:
		return OrderOldest
	case OrderMostLikes:
		return OrderMostLikes
	default:
		return OrderNewest
	}
}

// ListOptions filters and pages a post listing.
//
// TagFilter is a case-sensitive substring match against the joined tag
// string. Author restricts to one username. Limit <= 0 means no limit.
// Posts that tie on the sort key come back in an order callers must not rely
// on.
type ListOptions struct {
	Order     Order
	TagFilter string
	Author    string
	Limit     int
	Offset    int
}

type UserRepository interface {
	// CreateUser inserts the user and fills in ID. A taken username or
	// identity hash is an apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByIdentityHash(ctx context.Context, hash string) (*model.User, error)
	// SetAvatarRef records the avatar location. It is a no-op when the user
	// already has one.
	SetAvatarRef(ctx context.Context, username, ref string) error
}

type PostRepository interface {
	// CreatePost inserts the post and fills in ID.
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id int64) (*model.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	// DeletePost removes the post and its likes. It reports whether a row
	// was removed.
	DeletePost(ctx context.Context, id int64) (bool, error)
}

type LikeRepository interface {
	// ToggleLike flips username's membership in the post's like set and
	// returns the new state (true = liked).
	ToggleLike(ctx context.Context, postID int64, username string) (bool, error)
}
