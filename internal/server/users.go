package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/script"
	"github.com/bravozulu-films/bzf/internal/user"
)

// handleListUsers searches the member directory.
// GET /api/users?q=&limit=&offset=
func (s *Server) handleListUsers(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	users, err := s.users.List(c.Request().Context(), c.QueryParam("q"), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

// handleGetUser returns a member's public profile. Members and admins
// viewing their own record also see the email.
// GET /api/users/:id
func (s *Server) handleGetUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	u, err := s.users.GetByID(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if id != callerID(c) && !getAuth(c).IsAdmin() {
		u = u.Public()
	}
	return c.JSON(http.StatusOK, u)
}

// handleUserAchievements lists a member's achievements and tier progress.
// GET /api/users/:id/achievements
func (s *Server) handleUserAchievements(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	ctx := c.Request().Context()
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	held, err := s.achievements.List(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"achievements": held,
		"catalog":      achievement.Catalog,
		"progress":     achievement.ProgressFor(u.Points),
	})
}

// handleUserScripts lists a member's scripts visible to the caller.
// GET /api/users/:id/scripts
func (s *Server) handleUserScripts(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	scripts, err := s.scripts.ListByOwner(c.Request().Context(), id, viewer(c), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"scripts": scripts})
}

// --- Admin ---

// handleAdminUpdateUser changes a member's role or account status.
// PATCH /api/admin/users/:id
func (s *Server) handleAdminUpdateUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	var req struct {
		Role   string `json:"role"`
		Status string `json:"status"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.Role == "" && req.Status == "" {
		return badRequest(c, "role or status is required")
	}
	if req.Role != "" && !user.ValidRole(req.Role) {
		return badRequest(c, "role must be member, moderator or admin")
	}
	if req.Status != "" && !user.ValidStatus(req.Status) {
		return badRequest(c, "status must be active, suspended or banned")
	}
	if id == callerID(c) {
		return jsonError(c, http.StatusForbidden, "Forbidden", "Admins cannot change their own role or status")
	}

	ctx := c.Request().Context()
	var u *user.User
	var err error
	if req.Role != "" {
		if u, err = s.users.UpdateRole(ctx, id, req.Role); err != nil {
			return s.fail(c, err)
		}
	}
	if req.Status != "" {
		if u, err = s.users.UpdateStatus(ctx, id, req.Status); err != nil {
			return s.fail(c, err)
		}
	}
	s.log.Infow("member updated by admin", "user_id", id, "role", u.Role, "status", u.Status)
	return c.JSON(http.StatusOK, u)
}

// handleAdminDeleteUser permanently removes a member and their content.
// DELETE /api/admin/users/:id
func (s *Server) handleAdminDeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	if id == callerID(c) {
		return jsonError(c, http.StatusForbidden, "Forbidden", "Admins cannot delete their own account")
	}
	if err := s.users.Delete(c.Request().Context(), id); err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("member deleted by admin", "user_id", id)
	return c.NoContent(http.StatusNoContent)
}

// viewer describes the caller for visibility checks. Anonymous callers
// have a zero id.
func viewer(c echo.Context) script.Viewer {
	ac := getAuth(c)
	if ac == nil {
		return script.Viewer{}
	}
	return script.Viewer{UserID: ac.UserID, IsAdmin: ac.IsAdmin()}
}
