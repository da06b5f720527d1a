// Package verification implements the military-status approval
// workflow. A member submits service details; an admin approves or
// rejects. The member's verification_status column always mirrors the
// latest request.
//
//	unverified ──submit──▶ pending ──approve──▶ approved (final)
//	                          │
//	                          └──reject──▶ rejected ──submit──▶ pending
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/user"
)

// Sentinel errors.
var (
	ErrNotFound          = errors.New("verification: request not found")
	ErrInvalid           = errors.New("verification: invalid input")
	ErrInvalidTransition = errors.New("verification: invalid transition")
)

// Decisions an admin can make.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Request is one submission of service details.
type Request struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	Branch       string     `json:"branch"`
	ServiceStart time.Time  `json:"serviceStart"`
	ServiceEnd   *time.Time `json:"serviceEnd,omitempty"`
	DocumentCID  string     `json:"documentCid,omitempty"`
	Status       string     `json:"status"`
	Note         string     `json:"note,omitempty"`
	DecidedBy    *int64     `json:"decidedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
}

// SubmitParams holds a member's service details.
type SubmitParams struct {
	Branch       string     `json:"branch"`
	ServiceStart time.Time  `json:"serviceStart"`
	ServiceEnd   *time.Time `json:"serviceEnd"`
	DocumentCID  string     `json:"documentCid"`
}

// Validate checks the submission against the clock.
func (p *SubmitParams) Validate(now time.Time) error {
	p.Branch = strings.TrimSpace(strings.ToLower(p.Branch))
	if !user.ValidBranch(p.Branch) {
		return fmt.Errorf("%w: unknown branch %q", ErrInvalid, p.Branch)
	}
	if p.ServiceStart.IsZero() {
		return fmt.Errorf("%w: serviceStart is required", ErrInvalid)
	}
	if p.ServiceStart.After(now) {
		return fmt.Errorf("%w: serviceStart is in the future", ErrInvalid)
	}
	if p.ServiceEnd != nil && p.ServiceEnd.Before(p.ServiceStart) {
		return fmt.Errorf("%w: serviceEnd is before serviceStart", ErrInvalid)
	}
	if strings.TrimSpace(p.DocumentCID) == "" {
		return fmt.Errorf("%w: documentCid is required", ErrInvalid)
	}
	return nil
}

// CanSubmit reports whether a member in the given verification status
// may file a new request.
func CanSubmit(status string) error {
	switch status {
	case user.VerificationUnverified, user.VerificationRejected:
		return nil
	case user.VerificationPending:
		return fmt.Errorf("%w: a request is already pending", ErrInvalidTransition)
	case user.VerificationApproved:
		return fmt.Errorf("%w: already verified", ErrInvalidTransition)
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
}

// Outcome maps an admin decision to the resulting status.
func Outcome(decision string) (string, error) {
	switch decision {
	case DecisionApprove:
		return user.VerificationApproved, nil
	case DecisionReject:
		return user.VerificationRejected, nil
	}
	return "", fmt.Errorf("%w: decision must be %q or %q", ErrInvalid, DecisionApprove, DecisionReject)
}

const requestColumns = `id, user_id, branch, service_start, service_end, document_cid,
	status, note, decided_by, created_at, decided_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.UserID, &r.Branch, &r.ServiceStart, &r.ServiceEnd, &r.DocumentCID,
		&r.Status, &r.Note, &r.DecidedBy, &r.CreatedAt, &r.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Store persists verification requests.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore creates a verification Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Submit files a request for userID and moves the member to pending.
func (s *Store) Submit(ctx context.Context, userID int64, p SubmitParams) (*Request, error) {
	if err := p.Validate(s.now()); err != nil {
		return nil, err
	}

	var req *Request
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT verification_status FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", user.ErrNotFound, userID)
		}
		if err != nil {
			return err
		}
		if err := CanSubmit(status); err != nil {
			return err
		}

		req, err = scanRequest(tx.QueryRow(ctx,
			`INSERT INTO verification_requests (user_id, branch, service_start, service_end, document_cid)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+requestColumns,
			userID, p.Branch, p.ServiceStart, p.ServiceEnd, p.DocumentCID))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET verification_status = 'pending', military_branch = $2, updated_at = NOW()
			 WHERE id = $1`, userID, p.Branch)
		return err
	})
	if err != nil {
		return nil, wrap("submit", userID, err)
	}
	return req, nil
}

// Decide records an admin decision on the member's pending request.
func (s *Store) Decide(ctx context.Context, userID, adminID int64, decision, note string) (*Request, error) {
	outcome, err := Outcome(decision)
	if err != nil {
		return nil, err
	}

	var req *Request
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = scanRequest(tx.QueryRow(ctx,
			`UPDATE verification_requests
			 SET status = $2, note = $3, decided_by = NULLIF($4::bigint, 0), decided_at = NOW()
			 WHERE id = (
			     SELECT id FROM verification_requests
			     WHERE user_id = $1 AND status = 'pending'
			     ORDER BY created_at DESC LIMIT 1
			     FOR UPDATE
			 )
			 RETURNING `+requestColumns,
			userID, outcome, strings.TrimSpace(note), adminID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no pending request", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET verification_status = $2, updated_at = NOW() WHERE id = $1`,
			userID, outcome)
		return err
	})
	if err != nil {
		return nil, wrap("decide", userID, err)
	}
	return req, nil
}

// Latest returns the member's most recent request.
func (s *Store) Latest(ctx context.Context, userID int64) (*Request, error) {
	req, err := scanRequest(s.db.Pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM verification_requests
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, wrap("latest", userID, err)
	}
	return req, nil
}

// ListPending returns pending requests, oldest first.
func (s *Store) ListPending(ctx context.Context, page database.Page) ([]Request, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+requestColumns+` FROM verification_requests
		 WHERE status = 'pending' ORDER BY created_at LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("verification: list pending: %w", err)
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("verification: list pending scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func wrap(op string, userID int64, err error) error {
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, user.ErrNotFound) {
		return err
	}
	return fmt.Errorf("verification: %s for user %d: %w", op, userID, err)
}
