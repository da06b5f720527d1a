// Package user provides the data model and operations for community
// members. A member signs in with email and password and carries a
// role, an account status, a military-verification status and an
// onboarding tutorial step.
//
// Roles control what a member can do:
//   - member:    regular account
//   - moderator: can remove forum content and lock threads
//   - admin:     manages verification, reports, festivals and credits
//
// Statuses control whether the member can sign in:
//   - active:    fully functional
//   - suspended: sign-in refused, content preserved
//   - banned:    sign-in refused
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/database"
)

// Sentinel errors for user operations.
var (
	ErrNotFound           = errors.New("user: not found")
	ErrEmailTaken         = errors.New("user: email already registered")
	ErrUsernameTaken      = errors.New("user: username already taken")
	ErrInvalidCredentials = errors.New("user: invalid email or password")
	ErrInactive           = errors.New("user: account is not active")
	ErrInvalid            = errors.New("user: invalid input")
)

// Valid roles.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Valid statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// Verification statuses.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationApproved   = "approved"
	VerificationRejected   = "rejected"
)

// User represents a community member. The password hash is never
// exposed.
type User struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email,omitempty"`
	Username           string    `json:"username"`
	DisplayName        string    `json:"displayName"`
	Bio                string    `json:"bio"`
	Location           string    `json:"location"`
	MilitaryBranch     string    `json:"militaryBranch"`
	Specialties        []string  `json:"specialties"`
	AvatarCID          string    `json:"avatarCid,omitempty"`
	Role               string    `json:"role"`
	Status             string    `json:"status"`
	VerificationStatus string    `json:"verificationStatus"`
	TutorialStep       string    `json:"tutorialStep"`
	Points             int       `json:"points"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsVerified reports whether the member passed military verification.
func (u *User) IsVerified() bool {
	return u.VerificationStatus == VerificationApproved
}

// IsAdmin reports whether the member has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsModerator reports whether the member may moderate content.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// Public returns a copy safe to show to other members.
func (u *User) Public() *User {
	c := *u
	c.Email = ""
	return &c
}

// CreateParams holds the parameters for registering a member.
type CreateParams struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"` // plaintext, will be hashed
	DisplayName string `json:"displayName"`
	Role        string `json:"-"` // defaults to "member" if empty

	// SignupCredits is written to the credit ledger in the same
	// transaction as the account row.
	SignupCredits int64 `json:"-"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	DisplayName    *string  `json:"displayName"`
	Bio            *string  `json:"bio"`
	Location       *string  `json:"location"`
	MilitaryBranch *string  `json:"militaryBranch"`
	Specialties    []string `json:"specialties"`
	AvatarCID      *string  `json:"avatarCid"`
}

const userColumns = `id, email, username, display_name, bio, location, military_branch,
	specialties, avatar_cid, role, status, verification_status, tutorial_step, points,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (*User, error) {
	var u User
	dest := []any{&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Bio, &u.Location,
		&u.MilitaryBranch, &u.Specialties, &u.AvatarCID, &u.Role, &u.Status,
		&u.VerificationStatus, &u.TutorialStep, &u.Points, &u.CreatedAt, &u.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if u.Specialties == nil {
		u.Specialties = []string{}
	}
	return &u, nil
}

// Store provides user CRUD operations backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a user Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create registers a new member. It validates and normalizes the input,
// hashes the password, and records the signup credit grant.
func (s *Store) Create(ctx context.Context, p CreateParams) (*User, error) {
	if err := p.Normalize(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("user: create: %w", err)
	}

	role := p.Role
	if role == "" {
		role = RoleMember
	}

	var u *User
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO users (email, username, password, display_name, role)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+userColumns,
			p.Email, p.Username, hash, p.DisplayName, role)
		var err error
		if u, err = scanUser(row); err != nil {
			return err
		}
		if p.SignupCredits > 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO credit_transactions (user_id, amount, kind, note)
				 VALUES ($1, $2, 'signup_bonus', 'Welcome aboard')`,
				u.ID, p.SignupCredits)
		}
		return err
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			if strings.Contains(database.ConstraintName(err), "username") {
				return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, p.Username)
			}
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, p.Email)
		}
		return nil, fmt.Errorf("user: create %q: %w", p.Email, err)
	}
	return u, nil
}

// GetByID returns a member by id. Returns ErrNotFound if no row matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("user: get %d: %w", id, err)
	}
	return u, nil
}

// GetByEmail returns a member by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	u, err := scanUser(s.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("user: get by email %q: %w", email, err)
	}
	return u, nil
}

// Authenticate checks the password for the member with the given email.
// Unknown emails and wrong passwords both return ErrInvalidCredentials;
// suspended or banned members get ErrInactive.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	var hash string
	u, err := scanUser(s.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password FROM users WHERE email = $1`, email), &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = CheckPassword(string(dummyHash), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user: authenticate %q: %w", email, err)
	}

	if err := CheckPassword(hash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return nil, fmt.Errorf("%w: %s", ErrInactive, u.Status)
	}
	return u, nil
}

// ChangePassword verifies the current password and stores a new one.
func (s *Store) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len([]rune(next)) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
	}

	var hash string
	err := s.db.Pool.QueryRow(ctx, `SELECT password FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("user: change password %d: %w", id, err)
	}
	if err := CheckPassword(hash, current); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("user: change password %d: %w", id, err)
	}
	if _, err := s.db.Pool.Exec(ctx,
		`UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`, newHash, id); err != nil {
		return fmt.Errorf("user: change password %d: %w", id, err)
	}
	return nil
}

// List returns members ordered by username. A non-empty query filters
// on username or display name.
func (s *Store) List(ctx context.Context, query string, page database.Page) ([]User, error) {
	page = page.Normalize()
	query = strings.TrimSpace(query)

	var rows pgx.Rows
	var err error
	if query != "" {
		pattern := "%" + escapeLike(query) + "%"
		rows, err = s.db.Pool.Query(ctx,
			`SELECT `+userColumns+` FROM users
			 WHERE status = 'active' AND (username ILIKE $1 OR display_name ILIKE $1)
			 ORDER BY username LIMIT $2 OFFSET $3`,
			pattern, page.Limit, page.Offset)
	} else {
		rows, err = s.db.Pool.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE status = 'active'
			 ORDER BY username LIMIT $1 OFFSET $2`,
			page.Limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("user: list scan: %w", err)
		}
		users = append(users, *u.Public())
	}
	return users, rows.Err()
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Store) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error) {
	if err := upd.Normalize(); err != nil {
		return nil, err
	}

	u, err := scanUser(s.db.Pool.QueryRow(ctx,
		`UPDATE users SET
		    display_name    = COALESCE($2, display_name),
		    bio             = COALESCE($3, bio),
		    location        = COALESCE($4, location),
		    military_branch = COALESCE($5, military_branch),
		    specialties     = COALESCE($6, specialties),
		    avatar_cid      = COALESCE($7, avatar_cid),
		    updated_at      = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, upd.DisplayName, upd.Bio, upd.Location, upd.MilitaryBranch, upd.Specialties, upd.AvatarCID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("user: update profile %d: %w", id, err)
	}
	return u, nil
}

// UpdateRole changes a member's role.
func (s *Store) UpdateRole(ctx context.Context, id int64, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	return s.updateColumn(ctx, id, "role", role)
}

// UpdateStatus changes a member's account status.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) (*User, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return s.updateColumn(ctx, id, "status", status)
}

// updateColumn sets one of the enumerated columns. column is never
// user-provided.
func (s *Store) updateColumn(ctx context.Context, id int64, column, value string) (*User, error) {
	u, err := scanUser(s.db.Pool.QueryRow(ctx,
		`UPDATE users SET `+column+` = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+userColumns,
		value, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("user: update %s %d: %w", column, id, err)
	}
	return u, nil
}

// Delete permanently removes a member and, by cascade, their content.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("user: delete %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
