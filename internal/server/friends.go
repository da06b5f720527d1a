package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/friend"
	"github.com/bravozulu-films/bzf/internal/notify"
)

// handleListFriends returns the caller's friends.
// GET /api/friends
func (s *Server) handleListFriends(c echo.Context) error {
	friends, err := s.friends.ListFriends(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"friends": friends})
}

// handlePendingRequests returns open requests in both directions.
// GET /api/friends/requests
func (s *Server) handlePendingRequests(c echo.Context) error {
	pending, err := s.friends.ListPending(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, pending)
}

// handleSendFriendRequest asks another member to be friends. If they
// already asked the caller, the two become friends immediately.
// POST /api/friends/requests
func (s *Server) handleSendFriendRequest(c echo.Context) error {
	var req struct {
		To int64 `json:"to"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.To <= 0 {
		return badRequest(c, "to is required")
	}

	ctx := c.Request().Context()
	r, err := s.friends.SendRequest(ctx, callerID(c), req.To)
	if err != nil {
		return s.fail(c, err)
	}

	if r.Status == friend.StatusAccepted {
		s.befriended(ctx, r)
		return c.JSON(http.StatusOK, r)
	}
	s.notify(ctx, r.ToID, notify.KindFriendRequest,
		"New friend request",
		r.FromUsername+" wants to connect.",
		"/friends/requests")
	return c.JSON(http.StatusCreated, r)
}

// handleRespondFriendRequest accepts, declines or cancels a pending
// request.
// POST /api/friends/requests/:id/:action
func (s *Server) handleRespondFriendRequest(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "request id")
	}
	action := c.Param("action")
	switch action {
	case friend.ActionAccept, friend.ActionDecline, friend.ActionCancel:
	default:
		return jsonError(c, http.StatusNotFound, "NotFound", "Unknown action: "+action)
	}

	ctx := c.Request().Context()
	r, err := s.friends.Respond(ctx, id, callerID(c), action)
	if err != nil {
		return s.fail(c, err)
	}
	if r.Status == friend.StatusAccepted {
		s.befriended(ctx, r)
	}
	return c.JSON(http.StatusOK, r)
}

// handleRemoveFriend ends a friendship.
// DELETE /api/friends/:id
func (s *Server) handleRemoveFriend(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "user id")
	}
	if err := s.friends.Remove(c.Request().Context(), callerID(c), id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// befriended tells the original sender their request was accepted and
// awards both sides.
func (s *Server) befriended(ctx context.Context, r *friend.Request) {
	s.notify(ctx, r.FromID, notify.KindFriendAccept,
		"Friend request accepted",
		r.ToUsername+" accepted your friend request.",
		fmt.Sprintf("/users/%d", r.ToID))
	s.award(ctx, r.FromID, achievement.FirstFriend)
	s.award(ctx, r.ToID, achievement.FirstFriend)
}
