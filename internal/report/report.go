// Package report lets members flag content for admin review.
package report

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

// Sentinel errors for report operations.
var (
	ErrNotFound       = errors.New("report: not found")
	ErrInvalid        = errors.New("report: invalid report")
	ErrAlreadyClosed  = errors.New("report: already closed")
	ErrTargetNotFound = errors.New("report: reported content not found")
)

// Target types.
const (
	TargetUser    = "user"
	TargetScript  = "script"
	TargetPost    = "post"
	TargetReply   = "reply"
	TargetMessage = "message"
)

// Statuses.
const (
	StatusOpen      = "open"
	StatusResolved  = "resolved"
	StatusDismissed = "dismissed"
)

// MaxReason is the longest reason accepted, in characters.
const MaxReason = 1000

// targetTables maps a target type to the table holding it.
var targetTables = map[string]string{
	TargetUser:    "users",
	TargetScript:  "scripts",
	TargetPost:    "forum_posts",
	TargetReply:   "forum_replies",
	TargetMessage: "messages",
}

// Report is a member's complaint about a piece of content.
type Report struct {
	ID             int64      `json:"id"`
	ReporterID     int64      `json:"reporterId"`
	TargetType     string     `json:"targetType"`
	TargetID       int64      `json:"targetId"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	ResolutionNote string     `json:"resolutionNote"`
	ResolvedBy     *int64     `json:"resolvedBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	ResolvedAt     *time.Time `json:"resolvedAt"`
}

// Input describes a new report.
type Input struct {
	TargetType string `json:"targetType"`
	TargetID   int64  `json:"targetId"`
	Reason     string `json:"reason"`
}

// Normalize validates in.
func (in *Input) Normalize() error {
	in.TargetType = strings.ToLower(strings.TrimSpace(in.TargetType))
	in.Reason = strings.TrimSpace(in.Reason)
	if _, ok := targetTables[in.TargetType]; !ok {
		return fmt.Errorf("%w: unknown target type %q", ErrInvalid, in.TargetType)
	}
	switch {
	case in.TargetID <= 0:
		return fmt.Errorf("%w: targetId is required", ErrInvalid)
	case in.Reason == "":
		return fmt.Errorf("%w: reason is required", ErrInvalid)
	case utf8.RuneCountInString(in.Reason) > MaxReason:
		return fmt.Errorf("%w: reason must be at most %d characters", ErrInvalid, MaxReason)
	}
	return nil
}

// ValidOutcome reports whether status closes a report.
func ValidOutcome(status string) bool {
	return status == StatusResolved || status == StatusDismissed
}

const reportColumns = `id, reporter_id, target_type, target_id, reason, status, resolution_note, resolved_by, created_at, resolved_at`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	if err := row.Scan(&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID, &r.Reason, &r.Status,
		&r.ResolutionNote, &r.ResolvedBy, &r.CreatedAt, &r.ResolvedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Store provides report operations backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a report Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create files a report after checking the target exists.
func (s *Store) Create(ctx context.Context, reporterID int64, in Input) (*Report, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+targetTables[in.TargetType]+` WHERE id = $1)`,
		in.TargetID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("report: check target: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s %d", ErrTargetNotFound, in.TargetType, in.TargetID)
	}

	r, err := scanReport(s.db.Pool.QueryRow(ctx,
		`INSERT INTO reports (reporter_id, target_type, target_id, reason) VALUES ($1, $2, $3, $4)
		 RETURNING `+reportColumns,
		reporterID, in.TargetType, in.TargetID, in.Reason))
	if err != nil {
		return nil, fmt.Errorf("report: create: %w", err)
	}
	return r, nil
}

// List returns reports with status (all when empty), oldest first so
// the queue is worked in order.
func (s *Store) List(ctx context.Context, status string, page database.Page) ([]Report, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE ($1::text = '' OR status = $1::text)
		 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("report: list: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("report: list scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Resolve closes an open report as resolved or dismissed.
func (s *Store) Resolve(ctx context.Context, id, adminID int64, status, note string) (*Report, error) {
	if !ValidOutcome(status) {
		return nil, fmt.Errorf("%w: status must be resolved or dismissed", ErrInvalid)
	}
	r, err := scanReport(s.db.Pool.QueryRow(ctx,
		`UPDATE reports SET status = $2, resolution_note = $3, resolved_by = NULLIF($4::bigint, 0), resolved_at = NOW()
		 WHERE id = $1 AND status = 'open'
		 RETURNING `+reportColumns,
		id, status, strings.TrimSpace(note), adminID))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("report: lookup %d: %w", id, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %d", ErrAlreadyClosed, id)
		}
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("report: resolve %d: %w", id, err)
	}
	return r, nil
}
