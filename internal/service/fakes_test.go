package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of the user, post and like
// repositories. It mirrors the sqlite semantics the services rely on:
// unique usernames and identity hashes, NotFound on misses, case-sensitive
// tag filtering.
type fakeStore struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	posts  map[int64]*model.Post
	nextID int64

	// set to a non-nil error to simulate a storage failure
	listErr   error
	createErr error
}

var (
	_ repository.UserRepository = (*fakeStore)(nil)
	_ repository.PostRepository = (*fakeStore)(nil)
	_ repository.LikeRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]*model.User),
		posts: make(map[int64]*model.Post),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("username", u.Username)
		}
		if existing.IdentityHash == u.IdentityHash {
			return apperror.Conflict("identity", u.Username)
		}
	}
	u.ID = f.id()
	if u.MemberSince.IsZero() {
		u.MemberSince = time.Now()
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) findUser(match func(*model.User) bool, label string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", label)
}

func (f *fakeStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeStore) FindByIdentityHash(_ context.Context, hash string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.IdentityHash == hash }, "identity")
}

func (f *fakeStore) SetAvatarRef(_ context.Context, username, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			if u.AvatarRef == "" {
				u.AvatarRef = ref
			}
			return nil
		}
	}
	return apperror.NotFound("user", username)
}

func (f *fakeStore) CreatePost(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = f.id()
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	p.LikedBy = []string{}
	cp := *p
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id int64) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	cp := *p
	cp.LikedBy = slices.Clone(p.LikedBy)
	return &cp, nil
}

func (f *fakeStore) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []model.Post
	for _, p := range f.posts {
		if opts.TagFilter != "" && !strings.Contains(p.JoinedTags(), opts.TagFilter) {
			continue
		}
		if opts.Author != "" && p.Username != opts.Author {
			continue
		}
		cp := *p
		cp.LikedBy = slices.Clone(p.LikedBy)
		out = append(out, cp)
	}

	slices.SortFunc(out, func(a, b model.Post) int {
		switch opts.Order {
		case repository.OrderOldest:
			return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
		case repository.OrderMostLikes:
			return cmp.Or(cmp.Compare(b.LikeCount(), a.LikeCount()), cmp.Compare(b.ID, a.ID))
		default:
			return cmp.Or(b.Timestamp.Compare(a.Timestamp), cmp.Compare(b.ID, a.ID))
		}
	})

	if opts.Offset > 0 {
		out = out[min(opts.Offset, len(out)):]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) DeletePost(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return false, nil
	}
	delete(f.posts, id)
	return true, nil
}

func (f *fakeStore) ToggleLike(_ context.Context, postID int64, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return false, apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}
	if i := slices.Index(p.LikedBy, username); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		return false, nil
	}
	p.LikedBy = append(p.LikedBy, username)
	return true, nil
}

func (f *fakeStore) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

// mustUser adds a user directly and fails the test on error.
func (f *fakeStore) mustUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, IdentityHash: auth.HashIdentity(auth.LocalIdentity(username))}
	if err := f.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return u
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intPtr(v int) *int { return &v }

var errStorage = errors.New("disk I/O error")
