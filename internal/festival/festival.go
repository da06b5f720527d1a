// Package festival tracks project submissions to film festivals.
//
// A submission moves through:
//
//	draft -> submitted -> accepted | rejected
//	draft | submitted -> withdrawn
//
// Accepted, rejected and withdrawn are final.
package festival

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

// Sentinel errors for festival operations.
var (
	ErrNotFound          = errors.New("festival: not found")
	ErrForbidden         = errors.New("festival: not allowed")
	ErrInvalid           = errors.New("festival: invalid submission")
	ErrInvalidTransition = errors.New("festival: invalid status change")
)

// Submission statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusWithdrawn = "withdrawn"
)

// Actions that change a submission's status.
const (
	ActionSubmit   = "submit"
	ActionWithdraw = "withdraw"
	ActionAccept   = "accept"
	ActionReject   = "reject"
)

// DateLayout is the wire format for deadlines.
const DateLayout = "2006-01-02"

// Limits.
const (
	MaxFestivalName = 200
	MaxCategory     = 100
)

// Next returns the status reached by applying action to current.
func Next(current, action string) (string, error) {
	switch {
	case action == ActionSubmit && current == StatusDraft:
		return StatusSubmitted, nil
	case action == ActionWithdraw && (current == StatusDraft || current == StatusSubmitted):
		return StatusWithdrawn, nil
	case action == ActionAccept && current == StatusSubmitted:
		return StatusAccepted, nil
	case action == ActionReject && current == StatusSubmitted:
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: cannot %s a %s submission", ErrInvalidTransition, action, current)
}

// Submission is a project entered in a festival.
type Submission struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"projectId"`
	ProjectTitle string     `json:"projectTitle"`
	OwnerID      int64      `json:"ownerId"`
	FestivalName string     `json:"festivalName"`
	Category     string     `json:"category"`
	Deadline     *time.Time `json:"deadline"`
	Status       string     `json:"status"`
	DecisionNote string     `json:"decisionNote"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Input describes a new submission.
type Input struct {
	ProjectID    int64  `json:"projectId"`
	FestivalName string `json:"festivalName"`
	Category     string `json:"category"`
	Deadline     string `json:"deadline"`
	Draft        bool   `json:"draft"`

	deadline *time.Time
}

// Normalize validates in against the current time.
func (in *Input) Normalize(now time.Time) error {
	in.FestivalName = strings.TrimSpace(in.FestivalName)
	in.Category = strings.TrimSpace(in.Category)
	in.Deadline = strings.TrimSpace(in.Deadline)
	switch {
	case in.ProjectID <= 0:
		return fmt.Errorf("%w: projectId is required", ErrInvalid)
	case in.FestivalName == "":
		return fmt.Errorf("%w: festivalName is required", ErrInvalid)
	case utf8.RuneCountInString(in.FestivalName) > MaxFestivalName:
		return fmt.Errorf("%w: festivalName is too long", ErrInvalid)
	case utf8.RuneCountInString(in.Category) > MaxCategory:
		return fmt.Errorf("%w: category is too long", ErrInvalid)
	}

	in.deadline = nil
	if in.Deadline != "" {
		d, err := time.Parse(DateLayout, in.Deadline)
		if err != nil {
			return fmt.Errorf("%w: deadline must be YYYY-MM-DD", ErrInvalid)
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if !in.Draft && d.Before(today) {
			return fmt.Errorf("%w: deadline has passed", ErrInvalid)
		}
		in.deadline = &d
	}
	return nil
}

const submissionSelect = `SELECT s.id, s.project_id, p.title, s.owner_id, s.festival_name, s.category,
	s.deadline, s.status, s.decision_note, s.created_at, s.updated_at
	FROM festival_submissions s JOIN projects p ON p.id = s.project_id`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	if err := row.Scan(&s.ID, &s.ProjectID, &s.ProjectTitle, &s.OwnerID, &s.FestivalName, &s.Category,
		&s.Deadline, &s.Status, &s.DecisionNote, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Store provides festival operations backed by PostgreSQL.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore creates a festival Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Submit enters one of ownerID's projects in a festival.
func (s *Store) Submit(ctx context.Context, ownerID int64, in Input) (*Submission, error) {
	if err := in.Normalize(s.now()); err != nil {
		return nil, err
	}
	status := StatusSubmitted
	if in.Draft {
		status = StatusDraft
	}

	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO festival_submissions (project_id, owner_id, festival_name, category, deadline, status)
		 SELECT p.id, p.owner_id, $3::text, $4::text, $5::date, $6::text
		 FROM projects p WHERE p.id = $1 AND p.owner_id = $2
		 RETURNING id`,
		in.ProjectID, ownerID, in.FestivalName, in.Category, in.deadline, status).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, in.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("festival: submit project %d: %w", in.ProjectID, err)
	}
	return s.Get(ctx, id)
}

// Get returns a submission by id.
func (s *Store) Get(ctx context.Context, id int64) (*Submission, error) {
	sub, err := scanSubmission(s.db.Pool.QueryRow(ctx, submissionSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("festival: get %d: %w", id, err)
	}
	return sub, nil
}

// List returns submissions, newest first. A non-zero ownerID restricts
// to that member; a non-empty status filters by status.
func (s *Store) List(ctx context.Context, ownerID int64, status string, page database.Page) ([]Submission, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		submissionSelect+`
		 WHERE ($1::bigint = 0 OR s.owner_id = $1::bigint)
		   AND ($2::text = '' OR s.status = $2::text)
		 ORDER BY s.created_at DESC, s.id DESC
		 LIMIT $3 OFFSET $4`,
		ownerID, status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("festival: list: %w", err)
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("festival: list scan: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// Advance applies an owner action (submit or withdraw) to a submission.
func (s *Store) Advance(ctx context.Context, id, ownerID int64, action string) (*Submission, error) {
	if action != ActionSubmit && action != ActionWithdraw {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalid, action)
	}
	return s.transition(ctx, id, action, "", func(sub *Submission) error {
		if sub.OwnerID != ownerID {
			return fmt.Errorf("%w: submission %d", ErrForbidden, id)
		}
		return nil
	})
}

// Decide accepts or rejects a submitted entry on an admin's behalf.
func (s *Store) Decide(ctx context.Context, id int64, action, note string) (*Submission, error) {
	if action != ActionAccept && action != ActionReject {
		return nil, fmt.Errorf("%w: decision must be accept or reject", ErrInvalid)
	}
	return s.transition(ctx, id, action, strings.TrimSpace(note), nil)
}

func (s *Store) transition(ctx context.Context, id int64, action, note string, check func(*Submission) error) (*Submission, error) {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		sub, err := scanSubmission(tx.QueryRow(ctx, submissionSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(sub); err != nil {
				return err
			}
		}
		next, err := Next(sub.Status, action)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE festival_submissions
			 SET status = $2, decision_note = CASE WHEN $3::text = '' THEN decision_note ELSE $3::text END,
			     updated_at = NOW()
			 WHERE id = $1`, id, next, note)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("festival: %s %d: %w", action, id, err)
	}
	return s.Get(ctx, id)
}
