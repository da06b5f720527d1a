package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/user"
)

// authContext holds the authenticated caller's identity.
type authContext struct {
	UserID int64
	Role   string

	// AdminKey is set when the caller presented the configured admin key
	// instead of a session token. Such callers have no user id.
	AdminKey bool
}

// IsAdmin reports whether the caller may use admin endpoints.
func (a *authContext) IsAdmin() bool {
	return a.AdminKey || a.Role == user.RoleAdmin
}

// IsModerator reports whether the caller may moderate forum content.
func (a *authContext) IsModerator() bool {
	return a.IsAdmin() || a.Role == user.RoleModerator
}

const authContextKey = "auth"

// getAuth retrieves the auth context set by middleware.
func getAuth(c echo.Context) *authContext {
	if ac, ok := c.Get(authContextKey).(*authContext); ok {
		return ac
	}
	return nil
}

// callerID returns the signed-in member's id, or 0 for anonymous and
// admin-key callers.
func callerID(c echo.Context) int64 {
	if ac := getAuth(c); ac != nil {
		return ac.UserID
	}
	return 0
}

// authenticate resolves a Bearer token as either the admin key or a JWT
// access token.
func (s *Server) authenticate(token string) (*authContext, bool) {
	if s.cfg.AdminKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminKey)) == 1 {
		return &authContext{AdminKey: true, Role: user.RoleAdmin}, true
	}
	id, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, false
	}
	return &authContext{UserID: id.UserID, Role: id.Role}, true
}

// requireAuth is middleware that validates a Bearer token as either an
// admin key or a JWT access token. Sets authContext on the request.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c)
		if token == "" {
			return jsonError(c, http.StatusUnauthorized, "AuthRequired",
				"Authorization header with Bearer token is required")
		}
		ac, ok := s.authenticate(token)
		if !ok {
			return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired access token")
		}
		c.Set(authContextKey, ac)
		return next(c)
	}
}

// optionalAuth sets authContext when a valid token is present and lets
// anonymous requests through. An invalid token is still rejected so the
// client learns to sign in again.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c)
		if token == "" {
			return next(c)
		}
		ac, ok := s.authenticate(token)
		if !ok {
			return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired access token")
		}
		c.Set(authContextKey, ac)
		return next(c)
	}
}

// requireMember rejects admin-key callers on routes that act as a member.
// It must run after requireAuth.
func (s *Server) requireMember(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if callerID(c) == 0 {
			return jsonError(c, http.StatusForbidden, "MemberRequired",
				"This endpoint requires a member session, not the admin key")
		}
		return next(c)
	}
}

// requireAdmin must run after requireAuth.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ac := getAuth(c); ac == nil || !ac.IsAdmin() {
			return jsonError(c, http.StatusForbidden, "Forbidden", "Admin access required")
		}
		return next(c)
	}
}

// requireVerified loads the caller and checks military verification.
// Admins pass. It must run after requireAuth and requireMember.
func (s *Server) requireVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if getAuth(c).IsAdmin() {
			return next(c)
		}
		u, err := s.users.GetByID(c.Request().Context(), callerID(c))
		if err != nil {
			return s.fail(c, err)
		}
		if !u.IsVerified() {
			return jsonError(c, http.StatusForbidden, "VerificationRequired",
				"Military verification is required for this action")
		}
		return next(c)
	}
}

// requireRefresh is middleware that validates a Bearer token as a JWT
// refresh token. Sets authContext on the request.
func (s *Server) requireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c)
		if token == "" {
			return jsonError(c, http.StatusUnauthorized, "AuthRequired",
				"Authorization header with Bearer token is required")
		}
		id, err := s.jwt.ValidateRefreshToken(token)
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired refresh token")
		}
		c.Set(authContextKey, &authContext{UserID: id.UserID, Role: id.Role})
		return next(c)
	}
}

// extractBearer extracts the Bearer token from the Authorization header.
func extractBearer(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
