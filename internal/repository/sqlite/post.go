package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// postRow is a post joined with its aggregated likes.
//
// liked_by is produced by json_group_array over post_likes and is always a
// JSON array ("[]" when nobody likes the post). like_count is computed in
// the same query so mostLikes ordering never needs an in-memory sort.
type postRow struct {
	ID        int64         `db:"id"`
	Title     string        `db:"title"`
	Content   string        `db:"content"`
	Username  string        `db:"username"`
	Timestamp time.Time     `db:"timestamp"`
	Tags      string        `db:"tags"`
	Rating    sql.NullInt64 `db:"rating"`
	LikedBy   string        `db:"liked_by"`
	LikeCount int           `db:"like_count"`
}

func (r postRow) toModel() (model.Post, error) {
	var likedBy []string
	if r.LikedBy != "" {
		if err := json.UnmarshalFromString(r.LikedBy, &likedBy); err != nil {
			return model.Post{}, fmt.Errorf("decoding likes for post %d: %w", r.ID, err)
		}
	}

	p := model.Post{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Username:  r.Username,
		Timestamp: r.Timestamp,
		Tags:      model.ParseTags(r.Tags),
		TagString: r.Tags,
		LikedBy:   model.SortedUsernames(likedBy),
	}
	if r.Rating.Valid {
		rating := int(r.Rating.Int64)
		p.Rating = &rating
	}
	return p, nil
}

const postSelect = `
	SELECT p.id, p.title, p.content, p.username, p.timestamp, p.tags, p.rating,
	       (SELECT json_group_array(l.username) FROM post_likes l WHERE l.post_id = p.id) AS liked_by,
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count
	FROM posts p`

// orderClauses maps each feed order to SQL. Secondary keys only make the
// output repeatable; they are not part of the listing contract.
var orderClauses = map[repository.Order]string{
	repository.OrderNewest:    ` ORDER BY p.timestamp DESC, p.id DESC`,
	repository.OrderOldest:    ` ORDER BY p.timestamp ASC, p.id ASC`,
	repository.OrderMostLikes: ` ORDER BY like_count DESC, p.timestamp DESC, p.id DESC`,
}

// CreatePost inserts a post. Timestamp defaults to now; LikedBy is reset to
// empty because a new post has no likes.
//
// A non-existent author fails the posts.username foreign key and is
// reported as a validation error.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now()
	}
	post.Timestamp = post.Timestamp.UTC()
	post.LikedBy = []string{}

	var rating sql.NullInt64
	if post.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*post.Rating), Valid: true}
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (title, content, username, timestamp, tags, rating)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.Title,
		post.Content,
		post.Username,
		post.Timestamp,
		post.JoinedTags(),
		rating,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("username", "author does not exist: "+post.Username)
		}
		return fmt.Errorf("sqlite: inserting post %q: %w", post.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	post.ID = id
	return nil
}

// GetPostByID retrieves a single post with its likes.
func (db *DB) GetPostByID(ctx context.Context, id int64) (*model.Post, error) {
	var row postRow
	err := db.conn.GetContext(ctx, &row, postSelect+` WHERE p.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}

	p, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &p, nil
}

// ListPosts returns posts filtered and ordered per opts.
//
// The tag filter uses instr() rather than LIKE: LIKE is case-insensitive for
// ASCII in SQLite, and the filter must match the joined tag string exactly
// as a substring ("form" matches "Platformer", "FORM" does not).
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if opts.TagFilter != "" {
		where = append(where, `instr(p.tags, ?) > 0`)
		args = append(args, opts.TagFilter)
	}
	if opts.Author != "" {
		where = append(where, `p.username = ?`)
		args = append(args, opts.Author)
	}

	query := postSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	order, ok := orderClauses[opts.Order]
	if !ok {
		order = orderClauses[repository.OrderNewest]
	}
	query += order

	// SQLite treats a negative LIMIT as "no limit".
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(opts.Offset, 0)
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []postRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}

	posts := make([]model.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// DeletePost removes a post; its likes go with it via ON DELETE CASCADE.
// Ownership is checked by the caller.
func (db *DB) DeletePost(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}
