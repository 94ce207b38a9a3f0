package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/indie-arcade/internal/apperror"
)

func TestToggleLike_Involution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "Alice")
	createTestUser(t, db, "Bob")
	p := createTestPost(t, db, "Alice", "T", nil, 0)

	liked, err := db.ToggleLike(ctx, p.ID, "Bob")
	if err != nil || !liked {
		t.Fatalf("ToggleLike() = %v, %v; want true, nil", liked, err)
	}

	got, _ := db.GetPostByID(ctx, p.ID)
	if !got.IsLikedBy("Bob") || got.LikeCount() != 1 {
		t.Errorf("after like: LikedBy = %v", got.LikedBy)
	}

	liked, err = db.ToggleLike(ctx, p.ID, "Bob")
	if err != nil || liked {
		t.Fatalf("second ToggleLike() = %v, %v; want false, nil", liked, err)
	}

	got, _ = db.GetPostByID(ctx, p.ID)
	if got.IsLikedBy("Bob") || got.LikeCount() != 0 {
		t.Errorf("after unlike: LikedBy = %v", got.LikedBy)
	}
}

func TestToggleLike_OwnPostAllowed(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Alice")
	p := createTestPost(t, db, "Alice", "T", nil, 0)

	liked, err := db.ToggleLike(context.Background(), p.ID, "Alice")
	if err != nil || !liked {
		t.Errorf("ToggleLike() own post = %v, %v; want true, nil", liked, err)
	}
}

func TestToggleLike_LikersAreSorted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, u := range []string{"Carol", "Alice", "Bob"} {
		createTestUser(t, db, u)
	}
	p := createTestPost(t, db, "Alice", "T", nil, 0)

	for _, u := range []string{"Carol", "Alice", "Bob"} {
		if _, err := db.ToggleLike(ctx, p.ID, u); err != nil {
			t.Fatalf("ToggleLike(%s) error = %v", u, err)
		}
	}

	got, _ := db.GetPostByID(ctx, p.ID)
	if !equalStrings(got.LikedBy, []string{"Alice", "Bob", "Carol"}) {
		t.Errorf("LikedBy = %v, want sorted", got.LikedBy)
	}
}

func TestToggleLike_MissingPost(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Alice")

	_, err := db.ToggleLike(context.Background(), 777, "Alice")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike() error = %v, want ErrNotFound", err)
	}
}

func TestToggleLike_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Alice")
	p := createTestPost(t, db, "Alice", "T", nil, 0)

	_, err := db.ToggleLike(context.Background(), p.ID, "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike() error = %v, want ErrNotFound", err)
	}

	got, _ := db.GetPostByID(context.Background(), p.ID)
	if got.LikeCount() != 0 {
		t.Errorf("failed toggle left %d likes", got.LikeCount())
	}
}

// Each user toggles once concurrently: no like may be lost.
func TestToggleLike_ConcurrentUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	for _, u := range users {
		createTestUser(t, db, u)
	}
	p := createTestPost(t, db, "u1", "T", nil, 0)

	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx, p.ID, u); err != nil {
				errs <- err
			}
		}(u)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("ToggleLike() error = %v", err)
	}

	got, _ := db.GetPostByID(ctx, p.ID)
	if got.LikeCount() != len(users) {
		t.Errorf("LikeCount() = %d, want %d", got.LikeCount(), len(users))
	}
}
