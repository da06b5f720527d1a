package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleListNotifications lists the caller's notifications, newest
// first.
// GET /api/notifications?unread=true&limit=&offset=
func (s *Server) handleListNotifications(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	list, err := s.notifications.List(c.Request().Context(), callerID(c), c.QueryParam("unread") == "true", p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": list})
}

// GET /api/notifications/unread-count
func (s *Server) handleUnreadCount(c echo.Context) error {
	n, err := s.notifications.UnreadCount(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}

// handleMarkRead marks one notification read. Marking it again returns
// the same notification.
// POST /api/notifications/:id/read
func (s *Server) handleMarkRead(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "notification id")
	}
	n, err := s.notifications.MarkRead(c.Request().Context(), callerID(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	s.pushUnread(c)
	return c.JSON(http.StatusOK, n)
}

// POST /api/notifications/read-all
func (s *Server) handleMarkAllRead(c echo.Context) error {
	n, err := s.notifications.MarkAllRead(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	s.pushUnread(c)
	return c.JSON(http.StatusOK, map[string]int64{"marked": n})
}

// DELETE /api/notifications/:id
func (s *Server) handleDeleteNotification(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "notification id")
	}
	if err := s.notifications.Delete(c.Request().Context(), callerID(c), id); err != nil {
		return s.fail(c, err)
	}
	s.pushUnread(c)
	return c.NoContent(http.StatusNoContent)
}
