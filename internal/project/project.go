// Package project tracks film productions and their crews.
package project

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

// Sentinel errors for project operations.
var (
	ErrNotFound  = errors.New("project: not found")
	ErrForbidden = errors.New("project: not allowed")
	ErrInvalid   = errors.New("project: invalid input")
	ErrIsMember  = errors.New("project: already a member")
)

// Production stages, in order.
const (
	StatusDevelopment    = "development"
	StatusPreProduction  = "pre_production"
	StatusProduction     = "production"
	StatusPostProduction = "post_production"
	StatusCompleted      = "completed"
)

// Statuses lists the production stages in order.
var Statuses = []string{
	StatusDevelopment, StatusPreProduction, StatusProduction, StatusPostProduction, StatusCompleted,
}

// Limits.
const (
	MaxTitle       = 200
	MaxDescription = 10000
	MaxMemberRole  = 50
)

// Project is a production owned by a member.
type Project struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	ScriptID    *int64    `json:"scriptId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Members     []Member  `json:"members,omitempty"`
}

// Member is a crew member attached to a project.
type Member struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	AddedAt     time.Time `json:"addedAt"`
}

// Input is the writable part of a project.
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ScriptID    *int64 `json:"scriptId"`
}

// Normalize trims and validates the input.
func (in *Input) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = strings.TrimSpace(strings.ToLower(in.Status))

	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitle {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalid, MaxTitle)
	}
	if utf8.RuneCountInString(in.Description) > MaxDescription {
		return fmt.Errorf("%w: description is too long", ErrInvalid)
	}
	if in.Status == "" {
		in.Status = StatusDevelopment
	}
	if !ValidStatus(in.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, in.Status)
	}
	if in.ScriptID != nil && *in.ScriptID <= 0 {
		return fmt.Errorf("%w: scriptId must be positive", ErrInvalid)
	}
	return nil
}

// ValidStatus reports whether s is a production stage.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

const projectColumns = `id, owner_id, script_id, title, description, status, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.ScriptID, &p.Title, &p.Description,
		&p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Store provides project CRUD backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a project Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create stores a new project. A referenced script must belong to the owner.
func (s *Store) Create(ctx context.Context, ownerID int64, in Input) (*Project, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	if err := s.checkScript(ctx, ownerID, in.ScriptID); err != nil {
		return nil, err
	}
	p, err := scanProject(s.db.Pool.QueryRow(ctx,
		`INSERT INTO projects (owner_id, script_id, title, description, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+projectColumns,
		ownerID, in.ScriptID, in.Title, in.Description, in.Status))
	if err != nil {
		return nil, fmt.Errorf("project: create %q: %w", in.Title, err)
	}
	p.Members = []Member{}
	return p, nil
}

// Get returns a project with its members.
func (s *Store) Get(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.db.Pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("project: get %d: %w", id, err)
	}
	if p.Members, err = s.members(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns projects, newest first. ownerID > 0 restricts to one
// owner; memberID > 0 restricts to projects that member belongs to.
func (s *Store) List(ctx context.Context, ownerID, memberID int64, status string, page database.Page) ([]Project, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects p
		 WHERE ($1::bigint = 0 OR p.owner_id = $1::bigint)
		   AND ($2::bigint = 0 OR p.owner_id = $2::bigint OR EXISTS (
		        SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $2::bigint))
		   AND ($3::text = '' OR p.status = $3::text)
		 ORDER BY p.updated_at DESC LIMIT $4 OFFSET $5`,
		ownerID, memberID, status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("project: list scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update replaces the writable fields. Only the owner may update.
func (s *Store) Update(ctx context.Context, id, ownerID int64, in Input) (*Project, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	if err := s.checkScript(ctx, ownerID, in.ScriptID); err != nil {
		return nil, err
	}
	p, err := scanProject(s.db.Pool.QueryRow(ctx,
		`UPDATE projects SET title = $2, description = $3, status = $4, script_id = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+projectColumns,
		id, in.Title, in.Description, in.Status, in.ScriptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("project: update %d: %w", id, err)
	}
	if p.Members, err = s.members(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project. The owner or an admin may delete.
func (s *Store) Delete(ctx context.Context, id, callerID int64, isAdmin bool) error {
	if !isAdmin {
		if err := s.checkOwner(ctx, id, callerID); err != nil {
			return err
		}
	}
	result, err := s.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("project: delete %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// AddMember attaches userID to the project with a crew role. Only the
// owner may add members; the owner cannot add themselves.
func (s *Store) AddMember(ctx context.Context, id, ownerID, userID int64, role string) (*Member, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		role = "crew"
	}
	if utf8.RuneCountInString(role) > MaxMemberRole {
		return nil, fmt.Errorf("%w: role is too long", ErrInvalid)
	}
	if userID == ownerID {
		return nil, fmt.Errorf("%w: the owner is already on the project", ErrInvalid)
	}
	if err := s.checkOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}

	var m Member
	err := s.db.Pool.QueryRow(ctx,
		`WITH ins AS (
		     INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)
		     RETURNING user_id, role, added_at
		 )
		 SELECT ins.user_id, u.username, u.display_name, ins.role, ins.added_at
		 FROM ins JOIN users u ON u.id = ins.user_id`,
		id, userID, role,
	).Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Role, &m.AddedAt)
	switch {
	case database.IsDuplicateKey(err):
		return nil, fmt.Errorf("%w: user %d", ErrIsMember, userID)
	case database.IsForeignKey(err):
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	case err != nil:
		return nil, fmt.Errorf("project: add member %d to %d: %w", userID, id, err)
	}
	_, _ = s.db.Pool.Exec(ctx, `UPDATE projects SET updated_at = NOW() WHERE id = $1`, id)
	return &m, nil
}

// RemoveMember detaches userID. The owner may remove anyone; members
// may remove themselves.
func (s *Store) RemoveMember(ctx context.Context, id, callerID, userID int64) error {
	if callerID != userID {
		if err := s.checkOwner(ctx, id, callerID); err != nil {
			return err
		}
	}
	result, err := s.db.Pool.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("project: remove member %d from %d: %w", userID, id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", ErrNotFound, userID)
	}
	return nil
}

// CountByOwner returns how many projects ownerID has created.
func (s *Store) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("project: count %d: %w", ownerID, err)
	}
	return n, nil
}

func (s *Store) members(ctx context.Context, id int64) ([]Member, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT m.user_id, u.username, u.display_name, m.role, m.added_at
		 FROM project_members m JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = $1 ORDER BY m.added_at`, id)
	if err != nil {
		return nil, fmt.Errorf("project: members %d: %w", id, err)
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("project: members scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// checkOwner returns ErrNotFound or ErrForbidden unless callerID owns
// project id.
func (s *Store) checkOwner(ctx context.Context, id, callerID int64) error {
	var owner int64
	err := s.db.Pool.QueryRow(ctx, `SELECT owner_id FROM projects WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("project: owner of %d: %w", id, err)
	}
	if owner != callerID {
		return fmt.Errorf("%w: project %d belongs to another member", ErrForbidden, id)
	}
	return nil
}

func (s *Store) checkScript(ctx context.Context, ownerID int64, scriptID *int64) error {
	if scriptID == nil {
		return nil
	}
	var owner int64
	err := s.db.Pool.QueryRow(ctx, `SELECT owner_id FROM scripts WHERE id = $1`, *scriptID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != ownerID) {
		return fmt.Errorf("%w: script %d is not yours", ErrInvalid, *scriptID)
	}
	if err != nil {
		return fmt.Errorf("project: script lookup %d: %w", *scriptID, err)
	}
	return nil
}
