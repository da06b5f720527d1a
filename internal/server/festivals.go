package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/festival"
	"github.com/bravozulu-films/bzf/internal/notify"
)

func validFestivalStatus(status string) bool {
	switch status {
	case "", festival.StatusDraft, festival.StatusSubmitted, festival.StatusAccepted,
		festival.StatusRejected, festival.StatusWithdrawn:
		return true
	}
	return false
}

// handleListFestivals lists the caller's submissions.
// GET /api/festivals?status=&limit=&offset=
func (s *Server) handleListFestivals(c echo.Context) error {
	return s.listFestivals(c, callerID(c))
}

// handleAdminListFestivals lists every member's submissions.
// GET /api/admin/festivals?status=&limit=&offset=
func (s *Server) handleAdminListFestivals(c echo.Context) error {
	return s.listFestivals(c, 0)
}

func (s *Server) listFestivals(c echo.Context, ownerID int64) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	status := c.QueryParam("status")
	if !validFestivalStatus(status) {
		return badRequest(c, "Unknown submission status: "+status)
	}
	subs, err := s.festivals.List(c.Request().Context(), ownerID, status, p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"submissions": subs})
}

// handleGetFestival returns one of the caller's submissions.
// GET /api/festivals/:id
func (s *Server) handleGetFestival(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "submission id")
	}
	sub, err := s.festivals.Get(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if sub.OwnerID != callerID(c) && !getAuth(c).IsAdmin() {
		return s.fail(c, fmt.Errorf("%w: %d", festival.ErrNotFound, id))
	}
	return c.JSON(http.StatusOK, sub)
}

// handleSubmitFestival enters one of the caller's projects in a
// festival, as a draft or straight to submitted.
// POST /api/festivals
func (s *Server) handleSubmitFestival(c echo.Context) error {
	var in festival.Input
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(time.Now()); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	sub, err := s.festivals.Submit(ctx, callerID(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	s.submitted(ctx, sub)
	return c.JSON(http.StatusCreated, sub)
}

// handleAdvanceFestival submits a draft or withdraws an entry.
// POST /api/festivals/:id/submit
// POST /api/festivals/:id/withdraw
func (s *Server) handleAdvanceFestival(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "submission id")
	}
	action := festival.ActionSubmit
	if strings.HasSuffix(c.Path(), "/withdraw") {
		action = festival.ActionWithdraw
	}

	ctx := c.Request().Context()
	sub, err := s.festivals.Advance(ctx, id, callerID(c), action)
	if err != nil {
		return s.fail(c, err)
	}
	s.submitted(ctx, sub)
	return c.JSON(http.StatusOK, sub)
}

// handleDecideFestival accepts or rejects a submitted entry and notifies
// the owner.
// POST /api/admin/festivals/:id
func (s *Server) handleDecideFestival(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "submission id")
	}
	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.Decision != festival.ActionAccept && req.Decision != festival.ActionReject {
		return badRequest(c, "decision must be accept or reject")
	}

	ctx := c.Request().Context()
	sub, err := s.festivals.Decide(ctx, id, req.Decision, req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("festival decided", "submission_id", id, "status", sub.Status, "admin_id", callerID(c))

	title := fmt.Sprintf("%s accepted %q", sub.FestivalName, sub.ProjectTitle)
	if sub.Status == festival.StatusRejected {
		title = fmt.Sprintf("%s passed on %q", sub.FestivalName, sub.ProjectTitle)
	}
	s.notify(ctx, sub.OwnerID, notify.KindFestival, title, sub.DecisionNote,
		fmt.Sprintf("/festivals/%d", sub.ID))
	return c.JSON(http.StatusOK, sub)
}

// submitted awards the festival achievement once an entry is submitted.
func (s *Server) submitted(ctx context.Context, sub *festival.Submission) {
	if sub.Status == festival.StatusSubmitted {
		s.award(ctx, sub.OwnerID, achievement.FestivalEntry)
	}
}
