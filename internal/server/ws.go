package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/notify"
)

// handleWebSocket upgrades to the notification stream. Browsers cannot
// set headers on a WebSocket handshake, so the access token travels in
// the query string.
// GET /ws?token=<access jwt>
func (s *Server) handleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = extractBearer(c)
	}
	if token == "" {
		return jsonError(c, http.StatusUnauthorized, "AuthRequired", "token query parameter is required")
	}
	id, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "InvalidToken", "Invalid or expired access token")
	}

	unread, err := s.notifications.UnreadCount(c.Request().Context(), id.UserID)
	if err != nil {
		return s.fail(c, err)
	}

	err = s.hub.Serve(s.upgrader, c.Response(), c.Request(), id.UserID, unread)
	if err != nil && !errors.Is(err, notify.ErrHubClosed) {
		// The upgrader has already answered the handshake.
		s.log.Debugw("websocket upgrade failed", "user_id", id.UserID, "error", err)
	}
	return nil
}

// pushUnread sends the caller's current unread count to their open
// sockets on this instance.
func (s *Server) pushUnread(c echo.Context) {
	id := callerID(c)
	n, err := s.notifications.UnreadCount(c.Request().Context(), id)
	if err != nil {
		s.log.Warnw("unread count", "user_id", id, "error", err)
		return
	}
	if frame, err := notify.UnreadFrame(n); err == nil {
		s.hub.Deliver(id, frame)
	}
}
