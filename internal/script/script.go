// Package script stores screenplays written by members.
//
// Visibility controls who can read a script:
//   - private: the owner (and admins) only
//   - members: any signed-in member
//   - public:  anyone, including anonymous visitors
package script

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

// Sentinel errors for script operations.
var (
	ErrNotFound  = errors.New("script: not found")
	ErrForbidden = errors.New("script: not allowed")
	ErrInvalid   = errors.New("script: invalid input")
)

// Visibility levels.
const (
	VisibilityPrivate = "private"
	VisibilityMembers = "members"
	VisibilityPublic  = "public"
)

// Field limits.
const (
	MaxTitle   = 200
	MaxLogline = 500
	MaxContent = 1 << 20
)

// LinesPerPage approximates a formatted screenplay page.
const LinesPerPage = 55

// Genres accepted by the script library.
var Genres = []string{
	"action", "comedy", "documentary", "drama", "horror", "thriller",
	"sci_fi", "war", "western", "animation", "romance", "other",
}

// Script is a screenplay owned by a member.
type Script struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"ownerId"`
	Title      string    `json:"title"`
	Logline    string    `json:"logline"`
	Genre      string    `json:"genre"`
	Content    string    `json:"content,omitempty"`
	Visibility string    `json:"visibility"`
	PageCount  int       `json:"pageCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Input is the writable part of a script, used for create and update.
type Input struct {
	Title      string `json:"title"`
	Logline    string `json:"logline"`
	Genre      string `json:"genre"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

// Normalize trims and validates the input, filling defaults.
func (in *Input) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Logline = strings.TrimSpace(in.Logline)
	in.Genre = strings.TrimSpace(strings.ToLower(in.Genre))
	in.Visibility = strings.TrimSpace(strings.ToLower(in.Visibility))

	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitle {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalid, MaxTitle)
	}
	if utf8.RuneCountInString(in.Logline) > MaxLogline {
		return fmt.Errorf("%w: logline must be at most %d characters", ErrInvalid, MaxLogline)
	}
	if len(in.Content) > MaxContent {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrInvalid, MaxContent)
	}
	if in.Genre == "" {
		in.Genre = "drama"
	}
	if !validGenre(in.Genre) {
		return fmt.Errorf("%w: unknown genre %q", ErrInvalid, in.Genre)
	}
	switch in.Visibility {
	case "":
		in.Visibility = VisibilityPrivate
	case VisibilityPrivate, VisibilityMembers, VisibilityPublic:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalid, in.Visibility)
	}
	return nil
}

func validGenre(g string) bool {
	for _, v := range Genres {
		if v == g {
			return true
		}
	}
	return false
}

// PageCount estimates the screenplay length in pages. Any non-empty
// script is at least one page.
func PageCount(content string) int {
	content = strings.TrimRight(content, "\n")
	if strings.TrimSpace(content) == "" {
		return 0
	}
	lines := strings.Count(content, "\n") + 1
	return (lines + LinesPerPage - 1) / LinesPerPage
}

// Viewer identifies who is reading. A zero UserID is an anonymous visitor.
type Viewer struct {
	UserID  int64
	IsAdmin bool
}

// CanRead reports whether v may read sc.
func (sc *Script) CanRead(v Viewer) bool {
	switch {
	case v.IsAdmin, v.UserID != 0 && v.UserID == sc.OwnerID:
		return true
	case sc.Visibility == VisibilityPublic:
		return true
	case sc.Visibility == VisibilityMembers:
		return v.UserID != 0
	}
	return false
}

const scriptColumns = `id, owner_id, title, logline, genre, content, visibility, page_count, created_at, updated_at`

func scanScript(row pgx.Row) (*Script, error) {
	var sc Script
	if err := row.Scan(&sc.ID, &sc.OwnerID, &sc.Title, &sc.Logline, &sc.Genre, &sc.Content,
		&sc.Visibility, &sc.PageCount, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Store provides script CRUD backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a script Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create stores a new script for ownerID.
func (s *Store) Create(ctx context.Context, ownerID int64, in Input) (*Script, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	sc, err := scanScript(s.db.Pool.QueryRow(ctx,
		`INSERT INTO scripts (owner_id, title, logline, genre, content, visibility, page_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+scriptColumns,
		ownerID, in.Title, in.Logline, in.Genre, in.Content, in.Visibility, PageCount(in.Content)))
	if err != nil {
		return nil, fmt.Errorf("script: create %q: %w", in.Title, err)
	}
	return sc, nil
}

// Get returns a script if v may read it. Scripts v cannot see are
// reported as ErrNotFound so their existence is not leaked.
func (s *Store) Get(ctx context.Context, id int64, v Viewer) (*Script, error) {
	sc, err := scanScript(s.db.Pool.QueryRow(ctx,
		`SELECT `+scriptColumns+` FROM scripts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("script: get %d: %w", id, err)
	}
	if !sc.CanRead(v) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return sc, nil
}

// ListByOwner returns ownerID's scripts visible to v, newest first.
// Content is omitted from list results.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64, v Viewer, page database.Page) ([]Script, error) {
	page = page.Normalize()
	levels := visibleLevels(v, ownerID)
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE owner_id = $1 AND visibility = ANY($2)
		 ORDER BY updated_at DESC LIMIT $3 OFFSET $4`,
		ownerID, levels, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("script: list by owner %d: %w", ownerID, err)
	}
	return collect(rows)
}

// ListFeed returns scripts visible to v across all members, newest first.
func (s *Store) ListFeed(ctx context.Context, v Viewer, genre string, page database.Page) ([]Script, error) {
	page = page.Normalize()
	levels := []string{VisibilityPublic}
	if v.UserID != 0 {
		levels = append(levels, VisibilityMembers)
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+scriptColumns+` FROM scripts
		 WHERE visibility = ANY($1) AND ($2::text = '' OR genre = $2::text)
		 ORDER BY updated_at DESC LIMIT $3 OFFSET $4`,
		levels, strings.ToLower(genre), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("script: feed: %w", err)
	}
	return collect(rows)
}

// CountByOwner returns how many scripts ownerID has written.
func (s *Store) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scripts WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("script: count %d: %w", ownerID, err)
	}
	return n, nil
}

// Update replaces the writable fields. Only the owner may update.
func (s *Store) Update(ctx context.Context, id, ownerID int64, in Input) (*Script, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	sc, err := scanScript(s.db.Pool.QueryRow(ctx,
		`UPDATE scripts SET title = $3, logline = $4, genre = $5, content = $6,
		    visibility = $7, page_count = $8, updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+scriptColumns,
		id, ownerID, in.Title, in.Logline, in.Genre, in.Content, in.Visibility, PageCount(in.Content)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missingOrForbidden(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("script: update %d: %w", id, err)
	}
	return sc, nil
}

// Delete removes a script. The owner or an admin may delete.
func (s *Store) Delete(ctx context.Context, id int64, v Viewer) error {
	result, err := s.db.Pool.Exec(ctx,
		`DELETE FROM scripts WHERE id = $1 AND (owner_id = $2 OR $3)`, id, v.UserID, v.IsAdmin)
	if err != nil {
		return fmt.Errorf("script: delete %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return s.missingOrForbidden(ctx, id)
	}
	return nil
}

func (s *Store) missingOrForbidden(ctx context.Context, id int64) error {
	var exists bool
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scripts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("script: lookup %d: %w", id, err)
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrForbidden, id)
	}
	return fmt.Errorf("%w: %d", ErrNotFound, id)
}

func visibleLevels(v Viewer, ownerID int64) []string {
	switch {
	case v.IsAdmin, v.UserID == ownerID:
		return []string{VisibilityPrivate, VisibilityMembers, VisibilityPublic}
	case v.UserID != 0:
		return []string{VisibilityMembers, VisibilityPublic}
	}
	return []string{VisibilityPublic}
}

func collect(rows pgx.Rows) ([]Script, error) {
	defer rows.Close()
	out := []Script{}
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("script: scan: %w", err)
		}
		sc.Content = ""
		out = append(out, *sc)
	}
	return out, rows.Err()
}
