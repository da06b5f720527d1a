package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/message"
	"github.com/bravozulu-films/bzf/internal/notify"
)

// previewLen bounds the message excerpt in a notification.
const previewLen = 140

// handleConversations lists the caller's conversations, latest first,
// with unread counts.
// GET /api/messages
func (s *Server) handleConversations(c echo.Context) error {
	ctx := c.Request().Context()
	id := callerID(c)
	convs, err := s.messages.Conversations(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	unread, err := s.messages.UnreadCount(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversations": convs,
		"unread":        unread,
	})
}

// handleSendMessage sends a direct message and notifies the recipient.
// POST /api/messages
func (s *Server) handleSendMessage(c echo.Context) error {
	var req struct {
		To   int64  `json:"to"`
		Body string `json:"body"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	from := callerID(c)
	if _, err := message.ValidateSend(from, req.To, req.Body); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	m, err := s.messages.Send(ctx, from, req.To, req.Body)
	if err != nil {
		return s.fail(c, err)
	}

	title := "New message"
	if sender, err := s.users.GetByID(ctx, from); err == nil {
		title = "New message from " + sender.DisplayName
	}
	s.notify(ctx, m.RecipientID, notify.KindMessage, title, preview(m.Body),
		fmt.Sprintf("/messages/%d", from))
	return c.JSON(http.StatusCreated, m)
}

// handleConversation returns the messages exchanged with one member,
// newest first.
// GET /api/messages/:userId
func (s *Server) handleConversation(c echo.Context) error {
	peer, ok := pathID(c, "userId")
	if !ok {
		return invalidID(c, "user id")
	}
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	msgs, err := s.messages.Conversation(c.Request().Context(), callerID(c), peer, p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

// handleMarkConversationRead marks everything received from a member as
// read. Repeating it is harmless.
// POST /api/messages/:userId/read
func (s *Server) handleMarkConversationRead(c echo.Context) error {
	peer, ok := pathID(c, "userId")
	if !ok {
		return invalidID(c, "user id")
	}
	n, err := s.messages.MarkRead(c.Request().Context(), callerID(c), peer)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"marked": n})
}

func preview(body string) string {
	r := []rune(body)
	if len(r) <= previewLen {
		return body
	}
	return string(r[:previewLen-1]) + "…"
}
