package user

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// Profile field limits.
const (
	MaxDisplayName = 100
	MaxBio         = 2000
	MaxLocation    = 100
	MaxSpecialties = 10
)

// Branches accepted for military_branch and verification requests.
var Branches = []string{
	"army", "navy", "air_force", "marine_corps", "coast_guard", "space_force", "national_guard",
}

// ValidBranch reports whether b names a service branch.
func ValidBranch(b string) bool {
	for _, v := range Branches {
		if v == b {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize cleans up registration input in place and validates it.
func (p *CreateParams) Normalize() error {
	p.Email = NormalizeEmail(p.Email)
	p.Username = strings.ToLower(strings.TrimSpace(p.Username))
	p.DisplayName = strings.TrimSpace(p.DisplayName)

	if p.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalid)
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalid)
	}
	if !usernamePattern.MatchString(p.Username) {
		return fmt.Errorf("%w: username must be 3-32 characters of a-z, 0-9 or _", ErrInvalid)
	}
	if utf8.RuneCountInString(p.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	if utf8.RuneCountInString(p.DisplayName) > MaxDisplayName {
		return fmt.Errorf("%w: displayName is too long", ErrInvalid)
	}
	return nil
}

// Normalize cleans up a profile update in place and validates it.
func (u *ProfileUpdate) Normalize() error {
	if u.DisplayName != nil {
		v := strings.TrimSpace(*u.DisplayName)
		if v == "" || utf8.RuneCountInString(v) > MaxDisplayName {
			return fmt.Errorf("%w: displayName must be 1-%d characters", ErrInvalid, MaxDisplayName)
		}
		u.DisplayName = &v
	}
	if u.Bio != nil && utf8.RuneCountInString(*u.Bio) > MaxBio {
		return fmt.Errorf("%w: bio is too long", ErrInvalid)
	}
	if u.Location != nil {
		v := strings.TrimSpace(*u.Location)
		if utf8.RuneCountInString(v) > MaxLocation {
			return fmt.Errorf("%w: location is too long", ErrInvalid)
		}
		u.Location = &v
	}
	if u.MilitaryBranch != nil && *u.MilitaryBranch != "" && !ValidBranch(*u.MilitaryBranch) {
		return fmt.Errorf("%w: unknown military branch %q", ErrInvalid, *u.MilitaryBranch)
	}
	if u.Specialties != nil {
		if len(u.Specialties) > MaxSpecialties {
			return fmt.Errorf("%w: at most %d specialties", ErrInvalid, MaxSpecialties)
		}
		cleaned := make([]string, 0, len(u.Specialties))
		for _, s := range u.Specialties {
			if s = strings.TrimSpace(s); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		u.Specialties = cleaned
	}
	return nil
}

// ValidRole reports whether r is an assignable role.
func ValidRole(r string) bool {
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ValidStatus reports whether s is an account status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBanned:
		return true
	}
	return false
}
