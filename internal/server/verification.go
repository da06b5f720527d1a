package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/blob"
	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/user"
	"github.com/bravozulu-films/bzf/internal/verification"
)

// handleGetVerification returns the caller's verification status and
// latest request, if any.
// GET /api/verification
func (s *Server) handleGetVerification(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := s.users.GetByID(ctx, callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	resp := map[string]any{"status": u.VerificationStatus, "request": nil}
	req, err := s.verifications.Latest(ctx, u.ID)
	switch {
	case errors.Is(err, verification.ErrNotFound):
	case err != nil:
		return s.fail(c, err)
	default:
		resp["request"] = req
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSubmitVerification files the caller's service details. The
// supporting document must be a blob the caller uploaded.
// POST /api/verification
func (s *Server) handleSubmitVerification(c echo.Context) error {
	var req verification.SubmitParams
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if err := req.Validate(time.Now()); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	if _, err := s.blobs.Owned(ctx, id, req.DocumentCID); err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidCID) {
			return badRequest(c, "documentCid must reference a file you uploaded")
		}
		return s.fail(c, err)
	}

	r, err := s.verifications.Submit(ctx, id, req)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("verification submitted", "user_id", id, "branch", r.Branch)
	return c.JSON(http.StatusCreated, r)
}

// --- Admin ---

// handlePendingVerifications lists requests awaiting a decision, oldest
// first.
// GET /api/admin/verification
func (s *Server) handlePendingVerifications(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	reqs, err := s.verifications.ListPending(c.Request().Context(), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"requests": reqs})
}

// handleDecideVerification approves or rejects a member's pending
// request, notifies them and, on approval, awards the verified
// achievement.
// POST /api/admin/verification/:userId
func (s *Server) handleDecideVerification(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return invalidID(c, "user id")
	}
	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if _, err := verification.Outcome(req.Decision); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	r, err := s.verifications.Decide(ctx, userID, callerID(c), req.Decision, req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("verification decided", "user_id", userID, "status", r.Status, "admin_id", callerID(c))

	if r.Status == user.VerificationApproved {
		s.notify(ctx, userID, notify.KindVerification, "You're verified",
			"Your military service has been verified. Welcome to the unit.", "/verification")
		s.award(ctx, userID, achievement.Verified)
	} else {
		body := "Your verification request was not approved."
		if r.Note != "" {
			body += " Note: " + r.Note
		}
		s.notify(ctx, userID, notify.KindVerification, "Verification not approved", body, "/verification")
	}
	return c.JSON(http.StatusOK, r)
}
