package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/forum"
	"github.com/bravozulu-films/bzf/internal/notify"
)

func moderation(c echo.Context) forum.Moderation {
	ac := getAuth(c)
	return forum.Moderation{UserID: ac.UserID, IsModerator: ac.IsModerator()}
}

// handleForumCategories lists the boards with their thread counts.
// GET /api/forum/categories
func (s *Server) handleForumCategories(c echo.Context) error {
	cats, err := s.forum.Categories(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": cats})
}

// handleListPosts lists threads, pinned first then by latest activity.
// GET /api/forum/posts?category=&limit=&offset=
func (s *Server) handleListPosts(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	posts, err := s.forum.ListPosts(c.Request().Context(), c.QueryParam("category"), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"posts": posts})
}

// handleGetPost returns a thread with its replies.
// GET /api/forum/posts/:id
func (s *Server) handleGetPost(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "post id")
	}
	post, err := s.forum.GetPost(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// handleCreatePost opens a thread.
// POST /api/forum/posts
func (s *Server) handleCreatePost(c echo.Context) error {
	var in forum.PostInput
	if !bind(c, &in) {
		return invalidBody(c)
	}
	if err := in.Normalize(); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	post, err := s.forum.CreatePost(ctx, id, in)
	if err != nil {
		return s.fail(c, err)
	}
	s.award(ctx, id, achievement.FirstPost)
	return c.JSON(http.StatusCreated, post)
}

// handleCreateReply answers a thread and notifies its author.
// POST /api/forum/posts/:id/replies
func (s *Server) handleCreateReply(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "post id")
	}
	var req struct {
		Body string `json:"body"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if err := forum.ValidateBody(req.Body); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	reply, post, err := s.forum.Reply(ctx, id, callerID(c), req.Body)
	if err != nil {
		return s.fail(c, err)
	}
	if post.AuthorID != reply.AuthorID {
		s.notify(ctx, post.AuthorID, notify.KindForumReply,
			"New reply to "+post.Title,
			reply.AuthorUsername+" replied to your thread.",
			fmt.Sprintf("/forum/posts/%d", post.ID))
	}
	return c.JSON(http.StatusCreated, reply)
}

// handleModeratePost locks or pins a thread.
// PATCH /api/forum/posts/:id
func (s *Server) handleModeratePost(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "post id")
	}
	var req struct {
		Locked *bool `json:"locked"`
		Pinned *bool `json:"pinned"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.Locked == nil && req.Pinned == nil {
		return badRequest(c, "locked or pinned is required")
	}
	post, err := s.forum.SetFlags(c.Request().Context(), id, moderation(c), req.Locked, req.Pinned)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// handleDeletePost removes a thread and its replies.
// DELETE /api/forum/posts/:id
func (s *Server) handleDeletePost(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "post id")
	}
	if err := s.forum.DeletePost(c.Request().Context(), id, moderation(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleDeleteReply removes a reply.
// DELETE /api/forum/replies/:id
func (s *Server) handleDeleteReply(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return invalidID(c, "reply id")
	}
	if err := s.forum.DeleteReply(c.Request().Context(), id, moderation(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
