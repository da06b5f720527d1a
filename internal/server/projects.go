package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/project"
)

// handleListProjects lists projects, newest first. With mine=true only
// projects the caller owns or crews on are returned.
// GET /api/projects?owner=&mine=&status=&limit=&offset=
func (s *Server) handleListProjects(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	owner, ok := queryID(c, "owner")
	if !ok {
		return invalidID(c, "owner id")
	}
	status := c.QueryParam("status")
	if status != "" && !project.ValidStatus(status) {
		return badRequest(c, "Unknown project status: "+status)
	}
	var member int64
	if c.QueryParam("mine") == "true" {
		member = callerID(c)
	}

	projects, err := s.projects.List(c.Request().Context(), owner, member, status, p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject returns a project with its crew.
// GET /api/projects/:id
func (s *Server) handleGetProject(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "project id")
	}
	pr, err := s.projects.Get(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, pr)
}

// handleCreateProject starts a project owned by the caller.
// POST /api/projects
func (s *Server) handleCreateProject(c echo.Context) error {
	var in project.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	pr, err := s.projects.Create(ctx, id, in)
	if err != nil {
		return s.fail(c, err)
	}
	s.award(ctx, id, achievement.FirstProject)
	return c.JSON(http.StatusCreated, pr)
}

// handleUpdateProject replaces the writable fields of the caller's
// project.
// PUT /api/projects/:id
func (s *Server) handleUpdateProject(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "project id")
	}
	var in project.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}
	pr, err := s.projects.Update(c.Request().Context(), id, callerID(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, pr)
}

// handleDeleteProject removes a project. Owners and admins may delete.
// DELETE /api/projects/:id
func (s *Server) handleDeleteProject(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "project id")
	}
	if err := s.projects.Delete(c.Request().Context(), id, callerID(c), getAuth(c).IsAdmin()); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleAddProjectMember attaches a member to the caller's project and
// notifies them.
// POST /api/projects/:id/members
func (s *Server) handleAddProjectMember(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "project id")
	}
	var req struct {
		UserID int64  `json:"userId"`
		Role   string `json:"role"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.UserID <= 0 {
		return badRequest(c, "userId is required")
	}

	ctx := c.Request().Context()
	m, err := s.projects.AddMember(ctx, id, callerID(c), req.UserID, req.Role)
	if err != nil {
		return s.fail(c, err)
	}
	if pr, err := s.projects.Get(ctx, id); err == nil {
		s.notify(ctx, m.UserID, notify.KindProject,
			"You joined a project",
			fmt.Sprintf("You were added to %q as %s.", pr.Title, m.Role),
			fmt.Sprintf("/projects/%d", id))
	}
	return c.JSON(http.StatusCreated, m)
}

// handleRemoveProjectMember detaches a member. The owner may remove
// anyone; members may leave.
// DELETE /api/projects/:id/members/:userId
func (s *Server) handleRemoveProjectMember(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "project id")
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return invalidID(c, "user id")
	}
	if err := s.projects.RemoveMember(c.Request().Context(), id, callerID(c), userID); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
