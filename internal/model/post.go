// Package model defines the domain records shared by every layer.
//
// These are plain structs. Storage-specific row shapes live in the
// repository packages and are converted to these types at the boundary, so
// services and handlers never deal with nullable columns or JSON text.
package model

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Post is a game review.
//
// Title, Content, Tags and Rating are fixed at creation. The only mutation a
// post ever sees is the set of users who like it.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
	Rating    *int      `json:"rating,omitempty"`

	// TagString is the tag text as the author entered it, spacing and
	// order kept. Tag filters match against it; Tags is the cleaned list.
	TagString string `json:"-"`

	// LikedBy holds each liking username at most once, sorted.
	LikedBy []string `json:"likedBy"`
}

// LikeCount is the cardinality of LikedBy.
func (p *Post) LikeCount() int {
	return len(p.LikedBy)
}

// IsLikedBy reports whether username appears in LikedBy.
func (p *Post) IsLikedBy(username string) bool {
	if username == "" {
		return false
	}
	return lo.Contains(p.LikedBy, username)
}

// JoinedTags is the string tag filters match against.
func (p *Post) JoinedTags() string {
	if p.TagString != "" {
		return p.TagString
	}
	return JoinTags(p.Tags)
}

// OwnerUsername implements Owned.
func (p *Post) OwnerUsername() string {
	return p.Username
}

// TagSeparator joins tags into the stored tag string.
const TagSeparator = ","

// ParseTags splits a comma-separated tag string, trimming each entry and
// dropping empties and duplicates. Order of first appearance is kept.
func ParseTags(raw string) []string {
	parts := lo.Map(strings.Split(raw, TagSeparator), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(parts))
}

// NormalizeTags applies the same cleanup as ParseTags to an already split list.
func NormalizeTags(tags []string) []string {
	return ParseTags(strings.Join(tags, TagSeparator))
}

// JoinTags joins tags with TagSeparator, entries unchanged.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SplitTags splits raw tag text without touching the entries, so
// JoinTags(SplitTags(raw)) == raw. Empty input yields no tags.
func SplitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, TagSeparator)
}

// SortedUsernames returns a sorted copy without duplicates.
func SortedUsernames(names []string) []string {
	out := lo.Uniq(names)
	slices.Sort(out)
	return out
}
