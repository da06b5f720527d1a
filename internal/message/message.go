// Package message stores direct messages between members.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for message operations.
var (
	ErrInvalid  = errors.New("message: invalid input")
	ErrNotFound = errors.New("message: recipient not found")
)

// MaxBody is the longest message body accepted, in characters.
const MaxBody = 5000

// Message is one direct message.
type Message struct {
	ID          int64      `json:"id"`
	SenderID    int64      `json:"senderId"`
	RecipientID int64      `json:"recipientId"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Conversation summarizes the thread with one peer.
type Conversation struct {
	PeerID       int64   `json:"peerId"`
	PeerUsername string  `json:"peerUsername"`
	PeerName     string  `json:"peerDisplayName"`
	Last         Message `json:"lastMessage"`
	Unread       int     `json:"unread"`
}

// ValidateSend checks a message before it is stored.
func ValidateSend(from, to int64, body string) (string, error) {
	body = strings.TrimSpace(body)
	switch {
	case to <= 0:
		return "", fmt.Errorf("%w: recipient is required", ErrInvalid)
	case from == to:
		return "", fmt.Errorf("%w: cannot message yourself", ErrInvalid)
	case body == "":
		return "", fmt.Errorf("%w: body is required", ErrInvalid)
	case utf8.RuneCountInString(body) > MaxBody:
		return "", fmt.Errorf("%w: body must be at most %d characters", ErrInvalid, MaxBody)
	}
	return body, nil
}

// Store provides message operations backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a message Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Send stores a message from one member to another.
func (s *Store) Send(ctx context.Context, from, to int64, body string) (*Message, error) {
	body, err := ValidateSend(from, to, body)
	if err != nil {
		return nil, err
	}

	var m Message
	err = s.db.Pool.QueryRow(ctx,
		`INSERT INTO messages (sender_id, recipient_id, body) VALUES ($1, $2, $3)
		 RETURNING id, sender_id, recipient_id, body, read_at, created_at`,
		from, to, body,
	).Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt)
	if database.IsForeignKey(err) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, to)
	}
	if err != nil {
		return nil, fmt.Errorf("message: send %d->%d: %w", from, to, err)
	}
	return &m, nil
}

// Conversation returns messages between userID and peerID, newest first.
func (s *Store) Conversation(ctx context.Context, userID, peerID int64, page database.Page) ([]Message, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, sender_id, recipient_id, body, read_at, created_at FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, peerID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("message: conversation %d/%d: %w", userID, peerID, err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("message: conversation scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Conversations lists userID's peers with the latest message and the
// number of unread messages from each, most recent first.
func (s *Store) Conversations(ctx context.Context, userID int64) ([]Conversation, error) {
	rows, err := s.db.Pool.Query(ctx,
		`WITH latest AS (
		     SELECT DISTINCT ON (peer) *
		     FROM (
		         SELECT m.*, CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END AS peer
		         FROM messages m
		         WHERE m.sender_id = $1 OR m.recipient_id = $1
		     ) t
		     ORDER BY peer, created_at DESC, id DESC
		 )
		 SELECT l.peer, u.username, u.display_name,
		        l.id, l.sender_id, l.recipient_id, l.body, l.read_at, l.created_at,
		        (SELECT COUNT(*) FROM messages x
		         WHERE x.sender_id = l.peer AND x.recipient_id = $1 AND x.read_at IS NULL)
		 FROM latest l JOIN users u ON u.id = l.peer
		 ORDER BY l.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("message: conversations %d: %w", userID, err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.PeerID, &c.PeerUsername, &c.PeerName,
			&c.Last.ID, &c.Last.SenderID, &c.Last.RecipientID, &c.Last.Body, &c.Last.ReadAt, &c.Last.CreatedAt,
			&c.Unread); err != nil {
			return nil, fmt.Errorf("message: conversations scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkRead marks every unread message from peerID to userID as read and
// returns how many changed. Calling it again is a no-op.
func (s *Store) MarkRead(ctx context.Context, userID, peerID int64) (int64, error) {
	result, err := s.db.Pool.Exec(ctx,
		`UPDATE messages SET read_at = NOW()
		 WHERE recipient_id = $1 AND sender_id = $2 AND read_at IS NULL`, userID, peerID)
	if err != nil {
		return 0, fmt.Errorf("message: mark read %d/%d: %w", userID, peerID, err)
	}
	return result.RowsAffected(), nil
}

// UnreadCount returns userID's unread direct messages.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("message: unread %d: %w", userID, err)
	}
	return n, nil
}
