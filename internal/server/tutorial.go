package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /api/tutorial
func (s *Server) handleTutorial(c echo.Context) error {
	st, err := s.tutorial.State(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// handleTutorialAdvance moves past the step the client is showing. A
// client showing a stale step gets 409 and should reload the state.
// POST /api/tutorial/advance
func (s *Server) handleTutorialAdvance(c echo.Context) error {
	var req struct {
		From string `json:"from"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.From == "" {
		return badRequest(c, "from is required")
	}
	st, err := s.tutorial.Advance(c.Request().Context(), callerID(c), req.From)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// POST /api/tutorial/skip
func (s *Server) handleTutorialSkip(c echo.Context) error {
	st, err := s.tutorial.Skip(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// POST /api/tutorial/reset
func (s *Server) handleTutorialReset(c echo.Context) error {
	st, err := s.tutorial.Reset(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
