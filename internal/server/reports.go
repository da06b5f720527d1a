package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/report"
)

// handleCreateReport files a complaint about a piece of content.
// POST /api/reports
func (s *Server) handleCreateReport(c echo.Context) error {
	var in report.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}
	r, err := s.reports.Create(c.Request().Context(), callerID(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("report filed", "report_id", r.ID, "target_type", r.TargetType, "target_id", r.TargetID)
	return c.JSON(http.StatusCreated, r)
}

// handleListReports lists reports for moderation, oldest first.
// GET /api/admin/reports?status=open&limit=&offset=
func (s *Server) handleListReports(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	status := c.QueryParam("status")
	switch status {
	case "", report.StatusOpen, report.StatusResolved, report.StatusDismissed:
	default:
		return badRequest(c, "Unknown report status: "+status)
	}
	reports, err := s.reports.List(c.Request().Context(), status, p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"reports": reports})
}

// handleResolveReport closes an open report.
// POST /api/admin/reports/:id
func (s *Server) handleResolveReport(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "report id")
	}
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if !report.ValidOutcome(req.Status) {
		return badRequest(c, "status must be resolved or dismissed")
	}
	r, err := s.reports.Resolve(c.Request().Context(), id, callerID(c), req.Status, req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("report closed", "report_id", id, "status", r.Status, "admin_id", callerID(c))
	return c.JSON(http.StatusOK, r)
}
