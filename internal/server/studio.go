package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/studio"
)

// handleStudioTools lists the generation tools and their credit costs.
// GET /api/studio/tools
func (s *Server) handleStudioTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"tools":   studio.Tools,
		"enabled": s.studio.Enabled(),
	})
}

// handleGenerate runs a studio tool for the caller. When the generator
// fails the credits are refunded and the failed generation is returned
// with a 502.
// POST /api/studio/generate
func (s *Server) handleGenerate(c echo.Context) error {
	if !s.studio.Enabled() {
		return s.fail(c, studio.ErrUnavailable)
	}
	var req studio.Request
	if !bind(c, &req) {
		return invalidBody(c)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	g, err := s.studio.Generate(ctx, id, req)
	if errors.Is(err, studio.ErrGenerationFailed) && g != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{
			"error":      "GenerationFailed",
			"message":    "The generator did not return a result; your credits were refunded",
			"generation": g,
		})
	}
	if err != nil {
		return s.fail(c, err)
	}

	s.award(ctx, id, achievement.FirstGeneration)
	balance, err := s.billing.Balance(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"generation": g,
		"balance":    balance,
	})
}

// handleGenerations lists the caller's generation history.
// GET /api/studio/generations?limit=&offset=
func (s *Server) handleGenerations(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	gens, err := s.studio.Generations(c.Request().Context(), callerID(c), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"generations": gens})
}

// handleListAssets lists the caller's design assets.
// GET /api/studio/assets?limit=&offset=
func (s *Server) handleListAssets(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	assets, err := s.studio.Assets(c.Request().Context(), callerID(c), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"assets": assets})
}

// handleUploadAsset adds an image to the caller's library. The body is
// the raw image; the title comes from the query string.
// POST /api/studio/assets?title=
func (s *Server) handleUploadAsset(c echo.Context) error {
	title, err := studio.NormalizeTitle(c.QueryParam("title"))
	if err != nil {
		return s.fail(c, err)
	}
	a, err := s.studio.UploadAsset(c.Request().Context(), callerID(c), title,
		c.Request().Header.Get(echo.HeaderContentType), c.Request().Body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// GET /api/studio/assets/:id
func (s *Server) handleGetAsset(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "asset id")
	}
	a, err := s.studio.Asset(c.Request().Context(), callerID(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// DELETE /api/studio/assets/:id
func (s *Server) handleDeleteAsset(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "asset id")
	}
	if err := s.studio.DeleteAsset(c.Request().Context(), callerID(c), id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
