package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/achievement"
	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/blob"
	"github.com/bravozulu-films/bzf/internal/database"
	"github.com/bravozulu-films/bzf/internal/festival"
	"github.com/bravozulu-films/bzf/internal/forum"
	"github.com/bravozulu-films/bzf/internal/friend"
	"github.com/bravozulu-films/bzf/internal/message"
	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/project"
	"github.com/bravozulu-films/bzf/internal/report"
	"github.com/bravozulu-films/bzf/internal/script"
	"github.com/bravozulu-films/bzf/internal/studio"
	"github.com/bravozulu-films/bzf/internal/tutorial"
	"github.com/bravozulu-films/bzf/internal/user"
	"github.com/bravozulu-films/bzf/internal/verification"
)

// apiError maps a domain error to an HTTP status and error code.
type apiError struct {
	err    error
	status int
	code   string
}

// errorTable is consulted in order; the first match wins.
var errorTable = []apiError{
	{user.ErrNotFound, http.StatusNotFound, "UserNotFound"},
	{user.ErrEmailTaken, http.StatusConflict, "EmailTaken"},
	{user.ErrUsernameTaken, http.StatusConflict, "UsernameTaken"},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
	{user.ErrInactive, http.StatusForbidden, "AccountInactive"},
	{user.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},

	{verification.ErrNotFound, http.StatusNotFound, "VerificationNotFound"},
	{verification.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{verification.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},

	{script.ErrNotFound, http.StatusNotFound, "ScriptNotFound"},
	{script.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{script.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},

	{project.ErrNotFound, http.StatusNotFound, "ProjectNotFound"},
	{project.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{project.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{project.ErrIsMember, http.StatusConflict, "AlreadyMember"},

	{forum.ErrNotFound, http.StatusNotFound, "PostNotFound"},
	{forum.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{forum.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{forum.ErrLocked, http.StatusConflict, "ThreadLocked"},

	{message.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{message.ErrNotFound, http.StatusNotFound, "UserNotFound"},

	{friend.ErrNotFound, http.StatusNotFound, "FriendRequestNotFound"},
	{friend.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{friend.ErrDuplicate, http.StatusConflict, "RequestPending"},
	{friend.ErrAlreadyFriends, http.StatusConflict, "AlreadyFriends"},
	{friend.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},

	{notify.ErrNotFound, http.StatusNotFound, "NotificationNotFound"},
	{notify.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},

	{achievement.ErrUnknown, http.StatusBadRequest, "UnknownAchievement"},

	{billing.ErrInsufficientCredits, http.StatusPaymentRequired, "InsufficientCredits"},
	{billing.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{billing.ErrUnknownPackage, http.StatusBadRequest, "UnknownPackage"},
	{billing.ErrNotFound, http.StatusNotFound, "NotFound"},
	{billing.ErrAlreadyRefunded, http.StatusConflict, "AlreadyRefunded"},
	{billing.ErrPaymentDeclined, http.StatusPaymentRequired, "PaymentDeclined"},

	{studio.ErrUnavailable, http.StatusServiceUnavailable, "StudioUnavailable"},
	{studio.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{studio.ErrNotFound, http.StatusNotFound, "NotFound"},
	{studio.ErrGenerationFailed, http.StatusBadGateway, "GenerationFailed"},

	{festival.ErrNotFound, http.StatusNotFound, "SubmissionNotFound"},
	{festival.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{festival.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{festival.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},

	{report.ErrNotFound, http.StatusNotFound, "ReportNotFound"},
	{report.ErrInvalid, http.StatusBadRequest, "InvalidRequest"},
	{report.ErrAlreadyClosed, http.StatusConflict, "ReportClosed"},
	{report.ErrTargetNotFound, http.StatusNotFound, "TargetNotFound"},

	{tutorial.ErrNotFound, http.StatusNotFound, "UserNotFound"},
	{tutorial.ErrInvalidTransition, http.StatusConflict, "StaleTutorialStep"},

	{blob.ErrNotFound, http.StatusNotFound, "BlobNotFound"},
	{blob.ErrTooLarge, http.StatusRequestEntityTooLarge, "BlobTooLarge"},
	{blob.ErrUnsupportedType, http.StatusUnsupportedMediaType, "UnsupportedMediaType"},
	{blob.ErrInvalidCID, http.StatusBadRequest, "InvalidRequest"},
	{blob.ErrEmpty, http.StatusBadRequest, "InvalidRequest"},
}

// lookupError returns the mapping for err.
func lookupError(err error) (apiError, bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	switch {
	case database.IsDuplicateKey(err):
		return apiError{err: err, status: http.StatusConflict, code: "Conflict"}, true
	case database.IsCheckViolation(err):
		return apiError{err: err, status: http.StatusBadRequest, code: "InvalidRequest"}, true
	}
	return apiError{}, false
}

// fail writes the JSON error response for err. Unmapped errors are
// logged and reported as 500 without detail.
func (s *Server) fail(c echo.Context, err error) error {
	if m, ok := lookupError(err); ok {
		return jsonError(c, m.status, m.code, err.Error())
	}
	s.log.Errorw("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"error", err)
	return jsonError(c, http.StatusInternalServerError, "InternalError", "Internal server error")
}

func jsonError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, map[string]string{
		"error":   code,
		"message": msg,
	})
}

func badRequest(c echo.Context, msg string) error {
	return jsonError(c, http.StatusBadRequest, "InvalidRequest", msg)
}

// bind decodes the JSON body into v, reporting whether it succeeded.
func bind(c echo.Context, v any) bool {
	return c.Bind(v) == nil
}

func invalidBody(c echo.Context) error {
	return badRequest(c, "Invalid JSON body")
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invalidID(c echo.Context, name string) error {
	return badRequest(c, "Invalid "+name)
}

// page reads limit and offset query parameters.
func page(c echo.Context) (database.Page, bool) {
	var p database.Page
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, false
		}
		*dst = n
	}
	return p.Normalize(), true
}

// queryID parses an optional positive integer query parameter; 0 when absent.
func queryID(c echo.Context, name string) (int64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
