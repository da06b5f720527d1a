package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/blob"
)

// handleUploadBlob stores the raw request body and returns its
// reference. The Content-Type header gives the media type.
// POST /api/blobs
func (s *Server) handleUploadBlob(c echo.Context) error {
	mimeType := c.Request().Header.Get(echo.HeaderContentType)
	if _, err := blob.NormalizeMimeType(mimeType); err != nil {
		return s.fail(c, err)
	}
	ref, err := s.blobs.Upload(c.Request().Context(), callerID(c), mimeType, c.Request().Body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"blob": ref})
}

// handleGetBlob serves a blob by CID. Images are public; other files
// such as verification documents are served only to an uploader or an
// admin.
// GET /api/blobs/:cid
func (s *Server) handleGetBlob(c echo.Context) error {
	ctx := c.Request().Context()
	b, err := s.blobs.Get(ctx, c.Param("cid"))
	if err != nil {
		return s.fail(c, err)
	}

	if !strings.HasPrefix(b.MimeType, "image/") {
		ac := getAuth(c)
		switch {
		case ac == nil:
			return s.fail(c, blob.ErrNotFound)
		case ac.IsAdmin():
		default:
			if _, err := s.blobs.Owned(ctx, ac.UserID, b.CID); err != nil {
				return s.fail(c, err)
			}
		}
		c.Response().Header().Set("Cache-Control", "private, no-store")
	} else {
		c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Blob(http.StatusOK, b.MimeType, b.Data)
}
