package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestPost inserts a post at baseTime+offset.
func createTestPost(t *testing.T, db *DB, author, title string, tags []string, offset time.Duration) *model.Post {
	t.Helper()
	p := &model.Post{
		Title:     title,
		Content:   "content of " + title,
		Username:  author,
		Tags:      tags,
		Timestamp: baseTime.Add(offset),
	}
	if err := db.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("failed to create test post %q: %v", title, err)
	}
	return p
}

func titles(posts []model.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreatePost_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "Alice")

	rating := 4
	p := &model.Post{
		Title:    "Celeste",
		Content:  "Tough but fair.",
		Username: "Alice",
		Tags:     []string{"Platformer", "Indie"},
		Rating:   &rating,
	}
	if err := db.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if p.ID == 0 || p.Timestamp.IsZero() {
		t.Fatalf("CreatePost() did not fill ID/Timestamp: %+v", p)
	}

	got, err := db.GetPostByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.Title != "Celeste" || got.Username != "Alice" {
		t.Errorf("GetPostByID() = %+v", got)
	}
	if !equalStrings(got.Tags, []string{"Platformer", "Indie"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.Rating == nil || *got.Rating != 4 {
		t.Errorf("Rating = %v, want 4", got.Rating)
	}
	if got.LikedBy == nil || len(got.LikedBy) != 0 {
		t.Errorf("LikedBy = %#v, want empty non-nil", got.LikedBy)
	}
	if !got.Timestamp.Equal(p.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, p.Timestamp)
	}
}

func TestCreatePost_NilRating(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Alice")
	p := createTestPost(t, db, "Alice", "T", nil, 0)

	got, err := db.GetPostByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.Rating != nil {
		t.Errorf("Rating = %d, want nil", *got.Rating)
	}
}

func TestCreatePost_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)

	err := db.CreatePost(context.Background(), &model.Post{Title: "T", Content: "C", Username: "ghost"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreatePost() error = %v, want ErrValidation", err)
	}
}

func TestCreatePost_RatingCheckConstraint(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Alice")

	bad := 9
	err := db.CreatePost(context.Background(), &model.Post{Title: "T", Content: "C", Username: "Alice", Rating: &bad})
	if err == nil {
		t.Error("CreatePost() accepted rating 9")
	}
}

func TestGetPostByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPostByID(context.Background(), 12345)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPostByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListPosts_Orders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, u := range []string{"A", "B", "C"} {
		createTestUser(t, db, u)
	}

	first := createTestPost(t, db, "A", "first", nil, 0)
	second := createTestPost(t, db, "A", "second", nil, time.Hour)
	third := createTestPost(t, db, "A", "third", nil, 2*time.Hour)

	// second: 3 likes, first: 1 like, third: none
	for _, u := range []string{"A", "B", "C"} {
		if _, err := db.ToggleLike(ctx, second.ID, u); err != nil {
			t.Fatalf("ToggleLike() error = %v", err)
		}
	}
	if _, err := db.ToggleLike(ctx, first.ID, "B"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	_ = third

	tests := []struct {
		order repository.Order
		want  []string
	}{
		{order: repository.OrderNewest, want: []string{"third", "second", "first"}},
		{order: repository.OrderOldest, want: []string{"first", "second", "third"}},
		{order: repository.OrderMostLikes, want: []string{"second", "first", "third"}},
		{order: "", want: []string{"third", "second", "first"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			posts, err := db.ListPosts(ctx, repository.ListOptions{Order: tt.order})
			if err != nil {
				t.Fatalf("ListPosts() error = %v", err)
			}
			if got := titles(posts); !equalStrings(got, tt.want) {
				t.Errorf("ListPosts(%q) = %v, want %v", tt.order, got, tt.want)
			}
		})
	}
}

func TestListPosts_MostLikesNonIncreasing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4"}
	for _, u := range users {
		createTestUser(t, db, u)
	}

	// Post i gets likes from users[:likes[i]].
	likes := []int{2, 0, 4, 1, 3, 2}
	for i, n := range likes {
		p := createTestPost(t, db, "u1", "p", nil, time.Duration(i)*time.Minute)
		for _, u := range users[:n] {
			if _, err := db.ToggleLike(ctx, p.ID, u); err != nil {
				t.Fatalf("ToggleLike() error = %v", err)
			}
		}
	}

	posts, err := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderMostLikes})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != len(likes) {
		t.Fatalf("ListPosts() returned %d posts, want %d", len(posts), len(likes))
	}
	for i := 1; i < len(posts); i++ {
		if posts[i].LikeCount() > posts[i-1].LikeCount() {
			t.Errorf("like counts not non-increasing at %d: %d > %d", i, posts[i].LikeCount(), posts[i-1].LikeCount())
		}
	}
}

func TestListPosts_TagFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "A")

	createTestPost(t, db, "A", "Celeste", []string{"Platformer", "Indie"}, 0)
	createTestPost(t, db, "A", "Civ", []string{"Strategy"}, time.Minute)
	createTestPost(t, db, "A", "Untagged", nil, 2*time.Minute)

	tests := []struct {
		filter string
		want   []string
	}{
		{filter: "", want: []string{"Untagged", "Civ", "Celeste"}},
		{filter: "form", want: []string{"Celeste"}},
		{filter: "Platformer,Indie", want: []string{"Celeste"}},
		{filter: "FORM", want: []string{}},
		{filter: "strategy", want: []string{}},
		{filter: "Strat", want: []string{"Civ"}},
		{filter: "%", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			posts, err := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderNewest, TagFilter: tt.filter})
			if err != nil {
				t.Fatalf("ListPosts() error = %v", err)
			}
			if got := titles(posts); !equalStrings(got, tt.want) {
				t.Errorf("ListPosts(filter=%q) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestListPosts_TagFilterMatchesEnteredText(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "A")

	p := &model.Post{
		Title:     "Spaced",
		Content:   "c",
		Username:  "A",
		Tags:      []string{"x", "y"},
		TagString: "x, y",
	}
	if err := db.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	got, err := db.GetPostByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.TagString != "x, y" || !equalStrings(got.Tags, []string{"x", "y"}) {
		t.Errorf("tags = %q / %v, want %q / [x y]", got.TagString, got.Tags, "x, y")
	}

	for filter, want := range map[string]int{"x, y": 1, ", y": 1, "x,y": 0} {
		posts, err := db.ListPosts(ctx, repository.ListOptions{TagFilter: filter})
		if err != nil {
			t.Fatalf("ListPosts() error = %v", err)
		}
		if len(posts) != want {
			t.Errorf("ListPosts(filter=%q) returned %d posts, want %d", filter, len(posts), want)
		}
	}
}

func TestListPosts_AuthorAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "A")
	createTestUser(t, db, "B")

	for i := range 5 {
		createTestPost(t, db, "A", string(rune('a'+i)), nil, time.Duration(i)*time.Minute)
	}
	createTestPost(t, db, "B", "b-post", nil, time.Hour)

	mine, err := db.ListPosts(ctx, repository.ListOptions{Author: "A"})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(mine) != 5 {
		t.Errorf("ListPosts(Author=A) returned %d posts, want 5", len(mine))
	}

	page, err := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderOldest, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if got := titles(page); !equalStrings(got, []string{"b", "c"}) {
		t.Errorf("page = %v, want [b c]", got)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeletePost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "A")
	createTestUser(t, db, "B")
	p := createTestPost(t, db, "A", "doomed", nil, 0)

	if _, err := db.ToggleLike(ctx, p.ID, "B"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}

	deleted, err := db.DeletePost(ctx, p.ID)
	if err != nil || !deleted {
		t.Fatalf("DeletePost() = %v, %v; want true, nil", deleted, err)
	}
	if _, err := db.GetPostByID(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPostByID() after delete error = %v, want ErrNotFound", err)
	}

	var likes int
	if err := db.conn.Get(&likes, `SELECT COUNT(*) FROM post_likes WHERE post_id = ?`, p.ID); err != nil {
		t.Fatalf("counting likes: %v", err)
	}
	if likes != 0 {
		t.Errorf("%d likes left after delete, want 0 (cascade)", likes)
	}

	deleted, err = db.DeletePost(ctx, p.ID)
	if err != nil || deleted {
		t.Errorf("second DeletePost() = %v, %v; want false, nil", deleted, err)
	}
}

// =========================================================================
// END-TO-END
// =========================================================================

func TestPostScenario(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "Alice")
	createTestUser(t, db, "Bob")

	createTestPost(t, db, "Bob", "older", []string{"z"}, -time.Hour)

	rating := 4
	p := &model.Post{Title: "T", Content: "C", Username: "Alice", Tags: model.ParseTags("x,y"), Rating: &rating}
	if err := db.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	newest, err := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderNewest})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(newest) == 0 || newest[0].ID != p.ID {
		t.Fatalf("newest first = %v, want %q first", titles(newest), "T")
	}

	withX, _ := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderNewest, TagFilter: "x"})
	if !equalStrings(titles(withX), []string{"T"}) {
		t.Errorf("filter x = %v, want [T]", titles(withX))
	}

	withZ, _ := db.ListPosts(ctx, repository.ListOptions{Order: repository.OrderNewest, TagFilter: "z"})
	for _, got := range withZ {
		if got.ID == p.ID {
			t.Errorf("filter z included post %q", got.Title)
		}
	}
}
