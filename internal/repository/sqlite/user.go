package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userRow is the users table as stored.
type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	IdentityHash string         `db:"hashed_identity"`
	AvatarURL    sql.NullString `db:"avatar_url"`
	MemberSince  time.Time      `db:"member_since"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		IdentityHash: r.IdentityHash,
		AvatarRef:    r.AvatarURL.String,
		MemberSince:  r.MemberSince,
	}
}

const userColumns = `id, username, hashed_identity, avatar_url, member_since`

// CreateUser inserts a new user. MemberSince defaults to now.
//
// Uniqueness is enforced by the UNIQUE constraints on username and
// hashed_identity rather than a prior SELECT, so two concurrent
// registrations for the same name cannot both succeed.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now()
	}
	user.MemberSince = user.MemberSince.UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, hashed_identity, avatar_url, member_since)
		 VALUES (?, ?, ?, ?)`,
		user.Username,
		user.IdentityHash,
		nullString(user.AvatarRef),
		user.MemberSince,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Tell the caller which key collided so the registration
			// flow can re-prompt for a username.
			if _, lookupErr := db.FindByUsername(ctx, user.Username); lookupErr == nil {
				return apperror.Conflict("username", user.Username)
			}
			return apperror.Conflict("identity", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, "id", id, strconv.FormatInt(id, 10))
}

// FindByUsername retrieves a user by exact (case-sensitive) username.
func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "username", username, username)
}

// FindByIdentityHash retrieves the user registered for an external identity.
func (db *DB) FindByIdentityHash(ctx context.Context, hash string) (*model.User, error) {
	return db.getUser(ctx, "hashed_identity", hash, "identity")
}

// getUser runs a point lookup on one of the unique columns. column is always
// a constant from this file.
func (db *DB) getUser(ctx context.Context, column string, value any, label string) (*model.User, error) {
	var row userRow
	err := db.conn.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return row.toModel(), nil
}

// SetAvatarRef stores the avatar location for username if none is set yet.
//
// An existing ref is left alone: the cached file it points at is the
// authoritative avatar and is never regenerated.
func (db *DB) SetAvatarRef(ctx context.Context, username, ref string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET avatar_url = ?
		 WHERE username = ? AND (avatar_url IS NULL OR avatar_url = '')`,
		ref, username,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting avatar for %q: %w", username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		// Either the user is gone or a ref was already stored.
		if _, err := db.FindByUsername(ctx, username); err != nil {
			return err
		}
	}
	return nil
}
