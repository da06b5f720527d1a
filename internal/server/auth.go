package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/user"
)

// sessionResponse is returned by register, login and refresh.
type sessionResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
}

// session issues a token pair for u.
func (s *Server) session(c echo.Context, status int, u *user.User) error {
	pair, err := s.jwt.CreateTokenPair(u.ID, u.Role)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(status, sessionResponse{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// handleRegister creates a member account, grants the signup credits
// and signs the member in.
// POST /api/auth/register
func (s *Server) handleRegister(c echo.Context) error {
	var req user.CreateParams
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if err := req.Normalize(); err != nil {
		return s.fail(c, err)
	}
	req.Role = user.RoleMember
	req.SignupCredits = s.cfg.SignupCredits

	u, err := s.users.Create(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("member registered", "user_id", u.ID, "username", u.Username)
	return s.session(c, http.StatusCreated, u)
}

// handleLogin authenticates a member by email and password.
// POST /api/auth/login
func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	u, err := s.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return s.session(c, http.StatusOK, u)
}

// handleRefresh exchanges a refresh token for a new pair. The account is
// reloaded so role changes and suspensions take effect here.
// POST /api/auth/refresh
func (s *Server) handleRefresh(c echo.Context) error {
	u, err := s.users.GetByID(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	if u.Status != user.StatusActive {
		return jsonError(c, http.StatusForbidden, "AccountInactive", "Account is "+u.Status)
	}
	return s.session(c, http.StatusOK, u)
}

// handleMe returns the caller's own account, including email and credit
// balance.
// GET /api/me
func (s *Server) handleMe(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := s.users.GetByID(ctx, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	balance, err := s.billing.Balance(ctx, u.ID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":     u,
		"credits":  balance,
		"progress": achievement.ProgressFor(u.Points),
	})
}

// handleUpdateMe edits the caller's profile. Omitted fields are kept.
// PATCH /api/me
func (s *Server) handleUpdateMe(c echo.Context) error {
	var req user.ProfileUpdate
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if err := req.Normalize(); err != nil {
		return s.fail(c, err)
	}
	u, err := s.users.UpdateProfile(c.Request().Context(), callerID(c), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// handleChangePassword replaces the caller's password after checking the
// current one.
// POST /api/me/password
func (s *Server) handleChangePassword(c echo.Context) error {
	var req struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.Current == "" || len([]rune(req.New)) < user.MinPasswordLength {
		return badRequest(c, "currentPassword is required and newPassword must be at least 8 characters")
	}
	if err := s.users.ChangePassword(c.Request().Context(), callerID(c), req.Current, req.New); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
