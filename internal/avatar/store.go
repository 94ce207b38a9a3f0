package avatar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/metrics"
	"github.com/sakif/indie-arcade/internal/model"
)

// Renderer produces avatar image bytes. *Generator implements it.
type Renderer interface {
	Render(glyph rune, width, height int) ([]byte, error)
}

// UserStore is the slice of the user repository the cache needs.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	SetAvatarRef(ctx context.Context, username, ref string) error
}

// Store is the get-or-create avatar cache.
//
// Each user's avatar lives at <dir>/<username>.png. The file is written at
// most once per username for the lifetime of the directory: once it exists
// it is served as-is and never regenerated.
type Store struct {
	renderer  Renderer
	users     UserStore
	dir       string
	urlPrefix string
	size      int
	logger    *slog.Logger

	// inflight collapses concurrent first requests for one username into a
	// single render. Separate processes sharing the directory can still
	// both render; they write identical bytes.
	inflight singleflight.Group
}

// NewStore creates a Store writing into dir. urlPrefix is the public path the
// static file server exposes dir under (e.g. "/avatars").
func NewStore(renderer Renderer, users UserStore, dir, urlPrefix string, logger *slog.Logger) *Store {
	return &Store{
		renderer:  renderer,
		users:     users,
		dir:       dir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		size:      DefaultSize,
		logger:    logger,
	}
}

// Path is the cache file for username.
func (s *Store) Path(username string) string {
	return filepath.Join(s.dir, username+".png")
}

// Ref is the public path stored in the user's avatar reference.
func (s *Store) Ref(username string) string {
	return s.urlPrefix + "/" + username + ".png"
}

// Get returns the avatar PNG for username, generating and caching it on the
// first request.
//
// Errors: apperror.ErrNotFound when the user does not exist,
// apperror.ErrValidation when the username cannot be used as a file name,
// apperror.ErrIO when the cache directory or file cannot be read or written.
// A failure to record the avatar reference on the user is logged and does
// not fail the request.
func (s *Store) Get(ctx context.Context, username string) ([]byte, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := checkFileName(user.Username); err != nil {
		return nil, err
	}

	data, err := s.readCached(user.Username)
	if err != nil {
		return nil, err
	}
	if data != nil {
		metrics.AvatarRequestsTotal.WithLabelValues("hit").Inc()
		return data, nil
	}

	metrics.AvatarRequestsTotal.WithLabelValues("miss").Inc()
	v, err, _ := s.inflight.Do(user.Username, func() (any, error) {
		return s.create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// readCached returns the cached bytes, or nil when there is no cache file.
func (s *Store) readCached(username string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(username))
	if err == nil {
		return data, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return nil, apperror.IO("reading avatar", err)
}

func (s *Store) create(ctx context.Context, user *model.User) ([]byte, error) {
	// A call that finished just before this one joined the group may have
	// written the file already.
	if data, err := s.readCached(user.Username); err != nil || data != nil {
		return data, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperror.IO("creating avatar directory", err)
	}

	glyph, _ := utf8.DecodeRuneInString(user.Username)
	data, err := s.renderer.Render(glyph, s.size, s.size)
	if err != nil {
		return nil, fmt.Errorf("avatar: rendering for %q: %w", user.Username, err)
	}
	metrics.AvatarGenerationsTotal.Inc()

	if err := s.writeFile(user.Username, data); err != nil {
		return nil, err
	}

	// The image is already on disk, so a failed reference update is only
	// logged.
	ref := s.Ref(user.Username)
	if err := s.users.SetAvatarRef(context.WithoutCancel(ctx), user.Username, ref); err != nil {
		s.logger.Warn("failed to record avatar reference",
			slog.String("username", user.Username),
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("avatar generated",
		slog.String("username", user.Username),
		slog.Int("bytes", len(data)),
	)
	return data, nil
}

// writeFile writes through a temp file and rename so readers never see a
// partially written PNG.
func (s *Store) writeFile(username string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+username+".*.tmp")
	if err != nil {
		return apperror.IO("writing avatar", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		return apperror.IO("writing avatar", err)
	}

	if err := os.Rename(tmpName, s.Path(username)); err != nil {
		os.Remove(tmpName)
		return apperror.IO("writing avatar", err)
	}
	return nil
}

// checkFileName rejects usernames that would escape the cache directory.
// Registration already forbids these; this guards rows created elsewhere.
func checkFileName(username string) error {
	if username == "" || !filepath.IsLocal(username) || strings.ContainsAny(username, `/\`) {
		return apperror.ValidationFailed("username", "username cannot be used for an avatar file")
	}
	return nil
}
