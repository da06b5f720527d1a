// Package forum provides discussion categories, threads and replies.
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for forum operations.
var (
	ErrNotFound  = errors.New("forum: not found")
	ErrForbidden = errors.New("forum: not allowed")
	ErrInvalid   = errors.New("forum: invalid input")
	ErrLocked    = errors.New("forum: thread is locked")
)

// Limits.
const (
	MaxTitle = 200
	MaxBody  = 20000
)

// Category groups threads.
type Category struct {
	ID          int    `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PostCount   int    `json:"postCount"`
}

// Post is a thread opener.
type Post struct {
	ID             int64     `json:"id"`
	CategorySlug   string    `json:"category"`
	AuthorID       int64     `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	Title          string    `json:"title"`
	Body           string    `json:"body,omitempty"`
	Locked         bool      `json:"locked"`
	Pinned         bool      `json:"pinned"`
	ReplyCount     int       `json:"replyCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastReplyAt    time.Time `json:"lastReplyAt"`
	Replies        []Reply   `json:"replies,omitempty"`
}

// Reply is a response within a thread.
type Reply struct {
	ID             int64     `json:"id"`
	PostID         int64     `json:"postId"`
	AuthorID       int64     `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PostInput holds the fields for a new thread.
type PostInput struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Normalize trims and validates the input.
func (in *PostInput) Normalize() error {
	in.Category = strings.TrimSpace(strings.ToLower(in.Category))
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	switch {
	case in.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalid)
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case utf8.RuneCountInString(in.Title) > MaxTitle:
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalid, MaxTitle)
	}
	return ValidateBody(in.Body)
}

// ValidateBody checks a post or reply body.
func ValidateBody(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalid)
	}
	if utf8.RuneCountInString(body) > MaxBody {
		return fmt.Errorf("%w: body must be at most %d characters", ErrInvalid, MaxBody)
	}
	return nil
}

const postSelect = `SELECT p.id, c.slug, p.author_id, u.username, p.title, p.body, p.locked, p.pinned,
	p.reply_count, p.created_at, p.updated_at, p.last_reply_at
	FROM forum_posts p
	JOIN forum_categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.CategorySlug, &p.AuthorID, &p.AuthorUsername, &p.Title, &p.Body,
		&p.Locked, &p.Pinned, &p.ReplyCount, &p.CreatedAt, &p.UpdatedAt, &p.LastReplyAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Store provides forum operations backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a forum Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Categories returns all categories with their thread counts.
func (s *Store) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT c.id, c.slug, c.name, c.description, COUNT(p.id)
		 FROM forum_categories c LEFT JOIN forum_posts p ON p.category_id = c.id
		 GROUP BY c.id ORDER BY c.position, c.slug`)
	if err != nil {
		return nil, fmt.Errorf("forum: categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.PostCount); err != nil {
			return nil, fmt.Errorf("forum: categories scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreatePost opens a thread.
func (s *Store) CreatePost(ctx context.Context, authorID int64, in PostInput) (*Post, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO forum_posts (category_id, author_id, title, body)
		 SELECT c.id, $2::bigint, $3::text, $4::text FROM forum_categories c WHERE c.slug = $1
		 RETURNING id`,
		in.Category, authorID, in.Title, in.Body).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalid, in.Category)
	}
	if err != nil {
		return nil, fmt.Errorf("forum: create post: %w", err)
	}
	return s.getPost(ctx, id)
}

// ListPosts returns threads in a category (all categories when empty),
// pinned first then by latest activity. Bodies are omitted.
func (s *Store) ListPosts(ctx context.Context, category string, page database.Page) ([]Post, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		postSelect+`
		 WHERE ($1::text = '' OR c.slug = $1::text)
		 ORDER BY p.pinned DESC, p.last_reply_at DESC
		 LIMIT $2 OFFSET $3`,
		strings.ToLower(category), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("forum: list posts: %w", err)
	}
	defer rows.Close()

	out := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("forum: list posts scan: %w", err)
		}
		p.Body = ""
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetPost returns a thread with its replies in order.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	p, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT r.id, r.post_id, r.author_id, u.username, r.body, r.created_at
		 FROM forum_replies r JOIN users u ON u.id = r.author_id
		 WHERE r.post_id = $1 ORDER BY r.created_at, r.id`, id)
	if err != nil {
		return nil, fmt.Errorf("forum: replies %d: %w", id, err)
	}
	defer rows.Close()

	p.Replies = []Reply{}
	for rows.Next() {
		var r Reply
		if err := rows.Scan(&r.ID, &r.PostID, &r.AuthorID, &r.AuthorUsername, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("forum: replies scan: %w", err)
		}
		p.Replies = append(p.Replies, r)
	}
	return p, rows.Err()
}

func (s *Store) getPost(ctx context.Context, id int64) (*Post, error) {
	p, err := scanPost(s.db.Pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("forum: get post %d: %w", id, err)
	}
	return p, nil
}

// Reply adds a reply to a thread and bumps its activity. Returns the
// reply and the thread it was added to.
func (s *Store) Reply(ctx context.Context, postID, authorID int64, body string) (*Reply, *Post, error) {
	body = strings.TrimSpace(body)
	if err := ValidateBody(body); err != nil {
		return nil, nil, err
	}

	var r Reply
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked bool
		err := tx.QueryRow(ctx,
			`SELECT locked FROM forum_posts WHERE id = $1 FOR UPDATE`, postID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: post %d", ErrNotFound, postID)
		}
		if err != nil {
			return err
		}
		if locked {
			return ErrLocked
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO forum_replies (post_id, author_id, body) VALUES ($1, $2, $3)
			 RETURNING id, post_id, author_id, (SELECT username FROM users WHERE id = $2), body, created_at`,
			postID, authorID, body,
		).Scan(&r.ID, &r.PostID, &r.AuthorID, &r.AuthorUsername, &r.Body, &r.CreatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE forum_posts SET reply_count = reply_count + 1, last_reply_at = $2 WHERE id = $1`,
			postID, r.CreatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrLocked) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("forum: reply to %d: %w", postID, err)
	}

	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	return &r, post, nil
}

// Moderation carries the caller's identity for delete and lock.
type Moderation struct {
	UserID      int64
	IsModerator bool
}

// DeletePost removes a thread. The author or a moderator may delete.
func (s *Store) DeletePost(ctx context.Context, id int64, m Moderation) error {
	return s.deleteOwned(ctx, "forum_posts", id, m)
}

// DeleteReply removes a reply. The author or a moderator may delete.
func (s *Store) DeleteReply(ctx context.Context, id int64, m Moderation) error {
	var postID int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var author int64
		err := tx.QueryRow(ctx,
			`SELECT author_id, post_id FROM forum_replies WHERE id = $1`, id).Scan(&author, &postID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: reply %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if author != m.UserID && !m.IsModerator {
			return fmt.Errorf("%w: reply %d", ErrForbidden, id)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM forum_replies WHERE id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE forum_posts SET reply_count = GREATEST(reply_count - 1, 0) WHERE id = $1`, postID)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
		return fmt.Errorf("forum: delete reply %d: %w", id, err)
	}
	return err
}

// SetFlags locks/unlocks or pins/unpins a thread. Moderators only; nil
// leaves a flag unchanged.
func (s *Store) SetFlags(ctx context.Context, id int64, m Moderation, locked, pinned *bool) (*Post, error) {
	if !m.IsModerator {
		return nil, fmt.Errorf("%w: moderators only", ErrForbidden)
	}
	result, err := s.db.Pool.Exec(ctx,
		`UPDATE forum_posts SET locked = COALESCE($2, locked), pinned = COALESCE($3, pinned), updated_at = NOW()
		 WHERE id = $1`, id, locked, pinned)
	if err != nil {
		return nil, fmt.Errorf("forum: set flags %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
	}
	return s.getPost(ctx, id)
}

// CountPostsByAuthor returns how many threads authorID has opened.
func (s *Store) CountPostsByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM forum_posts WHERE author_id = $1`, authorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("forum: count posts %d: %w", authorID, err)
	}
	return n, nil
}

// deleteOwned deletes a row from table if the caller authored it or
// moderates. table is never user-provided.
func (s *Store) deleteOwned(ctx context.Context, table string, id int64, m Moderation) error {
	result, err := s.db.Pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND (author_id = $2 OR $3)`, id, m.UserID, m.IsModerator)
	if err != nil {
		return fmt.Errorf("forum: delete %s %d: %w", table, id, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("forum: lookup %s %d: %w", table, id, err)
	}
	if exists {
		return fmt.Errorf("%w: %s %d", ErrForbidden, table, id)
	}
	return fmt.Errorf("%w: %s %d", ErrNotFound, table, id)
}
