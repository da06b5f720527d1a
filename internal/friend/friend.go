// Package friend manages friend requests and friendships.
//
// A friendship is a friend_requests row in status accepted. Each pair of
// members has at most one live (pending or accepted) row, in either
// direction.
package friend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for friend operations.
var (
	ErrNotFound          = errors.New("friend: not found")
	ErrInvalid           = errors.New("friend: invalid request")
	ErrDuplicate         = errors.New("friend: request already pending")
	ErrAlreadyFriends    = errors.New("friend: already friends")
	ErrInvalidTransition = errors.New("friend: request is not pending")
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
	StatusRemoved   = "removed"
)

// Actions on a pending request.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionCancel  = "cancel"
)

// Request is a friend request between two members.
type Request struct {
	ID           int64      `json:"id"`
	FromID       int64      `json:"fromId"`
	FromUsername string     `json:"fromUsername"`
	ToID         int64      `json:"toId"`
	ToUsername   string     `json:"toUsername"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	RespondedAt  *time.Time `json:"respondedAt"`
}

// Friend is a member on the other side of an accepted request.
type Friend struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Since       time.Time `json:"since"`
}

// Pending groups a member's open requests.
type Pending struct {
	Incoming []Request `json:"incoming"`
	Outgoing []Request `json:"outgoing"`
}

// Resolve returns the status a pending request moves to when callerID
// applies action. Only the recipient may accept or decline; only the
// sender may cancel.
func Resolve(r *Request, callerID int64, action string) (string, error) {
	if r.Status != StatusPending {
		return "", fmt.Errorf("%w: %d is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	switch action {
	case ActionAccept, ActionDecline:
		if callerID != r.ToID {
			return "", fmt.Errorf("%w: request %d", ErrNotFound, r.ID)
		}
		if action == ActionAccept {
			return StatusAccepted, nil
		}
		return StatusDeclined, nil
	case ActionCancel:
		if callerID != r.FromID {
			return "", fmt.Errorf("%w: request %d", ErrNotFound, r.ID)
		}
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalid, action)
}

const requestSelect = `SELECT r.id, r.from_id, f.username, r.to_id, t.username, r.status, r.created_at, r.responded_at
	FROM friend_requests r
	JOIN users f ON f.id = r.from_id
	JOIN users t ON t.id = r.to_id`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	if err := row.Scan(&r.ID, &r.FromID, &r.FromUsername, &r.ToID, &r.ToUsername,
		&r.Status, &r.CreatedAt, &r.RespondedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Store provides friend operations backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a friend Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// SendRequest asks toID to be fromID's friend. If toID already has a
// pending request to fromID, that request is accepted instead and
// returned with status accepted.
func (s *Store) SendRequest(ctx context.Context, fromID, toID int64) (*Request, error) {
	if toID <= 0 || fromID == toID {
		return nil, fmt.Errorf("%w: cannot befriend yourself", ErrInvalid)
	}

	var id int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			liveID   int64
			liveFrom int64
			status   string
		)
		err := tx.QueryRow(ctx,
			`SELECT id, from_id, status FROM friend_requests
			 WHERE LEAST(from_id, to_id) = LEAST($1::bigint, $2::bigint)
			   AND GREATEST(from_id, to_id) = GREATEST($1::bigint, $2::bigint)
			   AND status IN ('pending', 'accepted')
			 FOR UPDATE`, fromID, toID).Scan(&liveID, &liveFrom, &status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return tx.QueryRow(ctx,
				`INSERT INTO friend_requests (from_id, to_id) VALUES ($1, $2) RETURNING id`,
				fromID, toID).Scan(&id)
		case err != nil:
			return err
		case status == StatusAccepted:
			return ErrAlreadyFriends
		case liveFrom == fromID:
			return ErrDuplicate
		}

		id = liveID
		_, err = tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'accepted', responded_at = NOW() WHERE id = $1`, liveID)
		return err
	})
	switch {
	case errors.Is(err, ErrAlreadyFriends), errors.Is(err, ErrDuplicate):
		return nil, err
	case database.IsDuplicateKey(err):
		return nil, ErrDuplicate
	case database.IsForeignKey(err):
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, toID)
	case err != nil:
		return nil, fmt.Errorf("friend: send %d->%d: %w", fromID, toID, err)
	}
	return s.Get(ctx, id)
}

// Get returns a request by id.
func (s *Store) Get(ctx context.Context, id int64) (*Request, error) {
	r, err := scanRequest(s.db.Pool.QueryRow(ctx, requestSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("friend: get %d: %w", id, err)
	}
	return r, nil
}

// Respond applies action (accept, decline or cancel) to a pending request
// on behalf of callerID.
func (s *Store) Respond(ctx context.Context, id, callerID int64, action string) (*Request, error) {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRequest(tx.QueryRow(ctx, requestSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: request %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		next, err := Resolve(r, callerID, action)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE friend_requests SET status = $2, responded_at = NOW() WHERE id = $1`, id, next)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("friend: %s %d: %w", action, id, err)
	}
	return s.Get(ctx, id)
}

// Remove ends the friendship between userID and friendID.
func (s *Store) Remove(ctx context.Context, userID, friendID int64) error {
	result, err := s.db.Pool.Exec(ctx,
		`UPDATE friend_requests SET status = 'removed', responded_at = NOW()
		 WHERE status = 'accepted'
		   AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))`, userID, friendID)
	if err != nil {
		return fmt.Errorf("friend: remove %d/%d: %w", userID, friendID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: not friends with %d", ErrNotFound, friendID)
	}
	return nil
}

// ListFriends returns userID's friends, most recent first.
func (s *Store) ListFriends(ctx context.Context, userID int64) ([]Friend, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT u.id, u.username, u.display_name, COALESCE(r.responded_at, r.created_at)
		 FROM friend_requests r
		 JOIN users u ON u.id = CASE WHEN r.from_id = $1 THEN r.to_id ELSE r.from_id END
		 WHERE r.status = 'accepted' AND (r.from_id = $1 OR r.to_id = $1)
		 ORDER BY 4 DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("friend: list %d: %w", userID, err)
	}
	defer rows.Close()

	out := []Friend{}
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.UserID, &f.Username, &f.DisplayName, &f.Since); err != nil {
			return nil, fmt.Errorf("friend: list scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListPending returns userID's incoming and outgoing pending requests.
func (s *Store) ListPending(ctx context.Context, userID int64) (*Pending, error) {
	rows, err := s.db.Pool.Query(ctx,
		requestSelect+` WHERE r.status = 'pending' AND (r.from_id = $1 OR r.to_id = $1)
		 ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("friend: pending %d: %w", userID, err)
	}
	defer rows.Close()

	p := &Pending{Incoming: []Request{}, Outgoing: []Request{}}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("friend: pending scan: %w", err)
		}
		if r.ToID == userID {
			p.Incoming = append(p.Incoming, *r)
		} else {
			p.Outgoing = append(p.Outgoing, *r)
		}
	}
	return p, rows.Err()
}
