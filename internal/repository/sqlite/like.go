package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/repository"
)

// compile-time check that *DB implements repository.LikeRepository
var _ repository.LikeRepository = (*DB)(nil)

// ToggleLike flips username's like on postID inside one transaction.
//
// Each like is its own row in post_likes, so a toggle is "delete the pair;
// if nothing was deleted, insert it". There is no read-modify-write of a
// serialized set, and the (post_id, username) primary key rules out
// duplicates. Two concurrent toggles by the same user each flip the state
// left by the other.
func (db *DB) ToggleLike(ctx context.Context, postID int64, username string) (liked bool, err error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning like toggle: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM posts WHERE id = ?`, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperror.NotFound("post", strconv.FormatInt(postID, 10))
		}
		return false, fmt.Errorf("sqlite: checking post %d: %w", postID, err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND username = ?`, postID, username)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing like on post %d: %w", postID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, username, liked_at) VALUES (?, ?, ?)`,
			postID, username, time.Now().UTC())
		if err != nil {
			if isForeignKeyViolation(err) {
				return false, apperror.NotFound("user", username)
			}
			return false, fmt.Errorf("sqlite: adding like on post %d: %w", postID, err)
		}
		liked = true
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing like toggle: %w", err)
	}
	return liked, nil
}
