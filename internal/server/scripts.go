package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/script"
)

// handleListScripts returns the script feed. Anonymous visitors see
// public scripts; members also see members-only ones.
// GET /api/scripts?genre=&limit=&offset=
func (s *Server) handleListScripts(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	scripts, err := s.scripts.ListFeed(c.Request().Context(), viewer(c), c.QueryParam("genre"), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"scripts": scripts})
}

// handleGetScript returns one script with its content. Scripts the
// caller may not read are reported as missing.
// GET /api/scripts/:id
func (s *Server) handleGetScript(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "script id")
	}
	sc, err := s.scripts.Get(c.Request().Context(), id, viewer(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, sc)
}

// handleCreateScript saves a new script for the caller.
// POST /api/scripts
func (s *Server) handleCreateScript(c echo.Context) error {
	var in script.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	sc, err := s.scripts.Create(ctx, id, in)
	if err != nil {
		return s.fail(c, err)
	}
	s.award(ctx, id, achievement.FirstScript)
	s.awardOnCount(ctx, id, achievement.ProlificWriter, achievement.ProlificThreshold, s.scripts.CountByOwner)
	return c.JSON(http.StatusCreated, sc)
}

// handleUpdateScript replaces the writable fields of the caller's script.
// PUT /api/scripts/:id
func (s *Server) handleUpdateScript(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "script id")
	}
	var in script.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}
	sc, err := s.scripts.Update(c.Request().Context(), id, callerID(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, sc)
}

// handleDeleteScript removes a script. Owners and admins may delete.
// DELETE /api/scripts/:id
func (s *Server) handleDeleteScript(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "script id")
	}
	if err := s.scripts.Delete(c.Request().Context(), id, viewer(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
