// Package notify stores member notifications and pushes them to
// connected WebSocket clients.
package notify

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

// Sentinel errors for notification operations.
var (
	ErrNotFound = errors.New("notify: not found")
	ErrInvalid  = errors.New("notify: invalid notification")
)

// Notification kinds.
const (
	KindMessage       = "message"
	KindFriendRequest = "friend_request"
	KindFriendAccept  = "friend_accepted"
	KindForumReply    = "forum_reply"
	KindVerification  = "verification"
	KindAchievement   = "achievement"
	KindFestival      = "festival"
	KindCredits       = "credits"
	KindProject       = "project"
	KindSystem        = "system"
)

// MaxTitle is the longest title stored.
const MaxTitle = 200

// Notification is a message for one member.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Read reports whether the notification has been read.
func (n *Notification) Read() bool { return n.ReadAt != nil }

// Input describes a notification to create.
type Input struct {
	UserID int64
	Kind   string
	Title  string
	Body   string
	Link   string
}

// Normalize validates in, truncating an overlong title.
func (in *Input) Normalize() error {
	in.Kind = strings.TrimSpace(in.Kind)
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.UserID <= 0:
		return fmt.Errorf("%w: user is required", ErrInvalid)
	case in.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrInvalid)
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitle {
		in.Title = string([]rune(in.Title)[:MaxTitle])
	}
	return nil
}

const notificationColumns = `id, user_id, kind, title, body, link, read_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Link, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// Store persists notifications in PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a notification Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create stores a new unread notification.
func (s *Store) Create(ctx context.Context, in Input) (*Notification, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	n, err := scanNotification(s.db.Pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, kind, title, body, link) VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+notificationColumns,
		in.UserID, in.Kind, in.Title, in.Body, in.Link))
	if err != nil {
		return nil, fmt.Errorf("notify: create for %d: %w", in.UserID, err)
	}
	return n, nil
}

// List returns userID's notifications, newest first.
func (s *Store) List(ctx context.Context, userID int64, unreadOnly bool, page database.Page) ([]Notification, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("notify: list %d: %w", userID, err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notify: list scan: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UnreadCount returns how many of userID's notifications are unread.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("notify: unread %d: %w", userID, err)
	}
	return n, nil
}

// MarkRead marks one notification read. Marking an already-read
// notification succeeds and keeps its original read time.
func (s *Store) MarkRead(ctx context.Context, userID, id int64) (*Notification, error) {
	n, err := scanNotification(s.db.Pool.QueryRow(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+notificationColumns, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("notify: mark read %d: %w", id, err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification for userID and returns
// how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.Pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("notify: mark all read %d: %w", userID, err)
	}
	return result.RowsAffected(), nil
}

// Delete removes one of userID's notifications.
func (s *Store) Delete(ctx context.Context, userID, id int64) error {
	result, err := s.db.Pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notify: delete %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
