package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/bravozulu-films/bzf/internal/auth"
	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/config"
	"github.com/bravozulu-films/bzf/internal/forum"
	"github.com/bravozulu-films/bzf/internal/studio"
	"github.com/bravozulu-films/bzf/internal/user"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testAdminKey = "test-admin-key"
	testService  = "https://bzf.example"
)

// stubGenerator satisfies studio.Generator without a network.
type stubGenerator struct{}

func (stubGenerator) GenerateText(context.Context, string, string) (string, error) {
	return "text", nil
}

func (stubGenerator) GenerateImage(context.Context, string) ([]byte, string, error) {
	return []byte{0x89, 'P', 'N', 'G'}, "image/png", nil
}

// newTestServer builds a server without a database. Only requests that
// are answered before any store call can be exercised.
func newTestServer(t *testing.T, opts Options, origins ...string) *Server {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      testSecret,
		AdminKey:       testAdminKey,
		ServiceURL:     testService,
		ListenAddr:     ":0",
		AllowedOrigins: origins,
	}
	return New(cfg, nil, opts, zap.NewNop().Sugar())
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	pair, err := auth.NewJWTManager(testSecret, testService).CreateTokenPair(userID, role)
	require.NoError(t, err)
	return pair.AccessToken
}

func refreshToken(t *testing.T, userID int64) string {
	t.Helper()
	pair, err := auth.NewJWTManager(testSecret, testService).CreateTokenPair(userID, user.RoleMember)
	require.NoError(t, err)
	return pair.RefreshToken
}

func do(t *testing.T, s *Server, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.NotEmpty(t, body.Message)
	return body.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, false, body["studio"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestPublicCatalogs(t *testing.T) {
	s := newTestServer(t, Options{Generator: stubGenerator{}})

	rec := do(t, s, http.MethodGet, "/api/studio/tools", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tools struct {
		Tools   []studio.Tool `json:"tools"`
		Enabled bool          `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	assert.True(t, tools.Enabled)
	assert.Len(t, tools.Tools, len(studio.Tools))

	rec = do(t, s, http.MethodGet, "/api/billing/packages", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pkgs struct {
		Packages []billing.Package `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkgs))
	assert.Equal(t, billing.Packages, pkgs.Packages)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, path := range []string{"/api/me", "/api/notifications", "/api/billing/balance", "/api/admin/reports"} {
		rec := do(t, s, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "AuthRequired", errorCode(t, rec), path)
	}

	rec := do(t, s, http.MethodGet, "/api/me", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidToken", errorCode(t, rec))

	foreign, err := auth.NewJWTManager("another-secret-another-secret-00", testService).CreateTokenPair(1, user.RoleMember)
	require.NoError(t, err)
	rec = do(t, s, http.MethodGet, "/api/me", foreign.AccessToken, "")
	assert.Equal(t, "InvalidToken", errorCode(t, rec))
}

func TestOptionalAuthRejectsBadToken(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/api/scripts/1", "expired", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/scripts/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", errorCode(t, rec))
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/api/auth/refresh", token(t, 1, user.RoleMember), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/me", refreshToken(t, 1), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh tokens cannot call the API")
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/api/auth/register", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", errorCode(t, rec))

	for name, body := range map[string]string{
		"bad email":      `{"email":"nope","username":"ranger","password":"longenough"}`,
		"short password": `{"email":"a@b.example","username":"ranger","password":"short"}`,
		"bad username":   `{"email":"a@b.example","username":"R!","password":"longenough"}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "InvalidRequest", errorCode(t, rec), name)
	}

	rec = do(t, s, http.MethodPost, "/api/auth/login", "", `{"email":"a@b.example"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminKeyIsNotAMember(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/api/me", testAdminKey, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MemberRequired", errorCode(t, rec))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/api/admin/reports", token(t, 7, user.RoleModerator), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", errorCode(t, rec))

	rec = do(t, s, http.MethodGet, "/api/admin/reports?status=bogus", testAdminKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPatch, "/api/admin/users/3", token(t, 1, user.RoleAdmin), `{"role":"general"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPatch, "/api/admin/users/1", token(t, 1, user.RoleAdmin), `{"status":"banned"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "admins cannot ban themselves")

	rec = do(t, s, http.MethodPost, "/api/admin/credits", testAdminKey, `{"userId":3,"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/admin/verification/3", testAdminKey, `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/admin/festivals/3", testAdminKey, `{"decision":"withdraw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberValidation(t *testing.T) {
	s := newTestServer(t, Options{})
	member := token(t, 7, user.RoleMember)

	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/api/scripts", `{"title":"   "}`, http.StatusBadRequest},
		{http.MethodPost, "/api/scripts", `{"title":"Ok","genre":"opera"}`, http.StatusBadRequest},
		{http.MethodPut, "/api/scripts/0", `{"title":"Ok"}`, http.StatusBadRequest},
		{http.MethodGet, "/api/users?limit=ten", "", http.StatusBadRequest},
		{http.MethodGet, "/api/projects?status=shooting", "", http.StatusBadRequest},
		{http.MethodPost, "/api/projects/4/members", `{"role":"grip"}`, http.StatusBadRequest},
		{http.MethodPatch, "/api/forum/posts/4", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/friends/requests", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/friends/requests/4/befriend", "", http.StatusNotFound},
		{http.MethodPost, "/api/billing/purchase", `{"package":"mega"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/reports", `{"targetType":"planet","targetId":1,"reason":"x"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/tutorial/advance", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/studio/assets?title=", "", http.StatusBadRequest},
		{http.MethodGet, "/api/festivals?status=pending", "", http.StatusBadRequest},
		{http.MethodPost, "/api/me/password", `{"currentPassword":"x","newPassword":"short"}`, http.StatusBadRequest},
		{http.MethodPatch, "/api/me", `{"displayName":"  "}`, http.StatusBadRequest},
		{http.MethodPost, "/api/verification", `{"branch":"navy"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		name := tc.method + " " + tc.path
		rec := do(t, s, tc.method, tc.path, member, tc.body)
		assert.Equal(t, tc.status, rec.Code, "%s: %s", name, rec.Body.String())
	}
}

func TestBlobUploadRejectsType(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/blobs", strings.NewReader("#!/bin/sh"))
	req.Header.Set(echo.HeaderContentType, "text/x-shellscript")
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, 7, user.RoleMember))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UnsupportedMediaType", errorCode(t, rec))
}

func TestAdminRoleBypassesVerification(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/api/messages", token(t, 5, user.RoleAdmin), `{"to":5,"body":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reaches validation without a verification lookup")
}

func TestStudioUnavailable(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/api/studio/generate", token(t, 7, user.RoleMember),
		`{"tool":"logline","prompt":"A medic returns home"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "StudioUnavailable", errorCode(t, rec))
}

func TestStudioValidatesBeforeSpending(t *testing.T) {
	s := newTestServer(t, Options{Generator: stubGenerator{}})
	member := token(t, 7, user.RoleMember)

	rec := do(t, s, http.MethodPost, "/api/studio/generate", member, `{"tool":"trailer","prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/studio/generate", member, `{"tool":"logline","prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", errorCode(t, rec))
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/ws", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AuthRequired", errorCode(t, rec))

	rec = do(t, s, http.MethodGet, "/ws?token=garbage", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidToken", errorCode(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Options{}, "https://app.bzf.example")
	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.bzf.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.bzf.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestLookupError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrapped: %w", billing.ErrInsufficientCredits), http.StatusPaymentRequired, "InsufficientCredits"},
		{fmt.Errorf("%w: thread 3", forum.ErrLocked), http.StatusConflict, "ThreadLocked"},
		{user.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
		{fmt.Errorf("x: %w", studio.ErrGenerationFailed), http.StatusBadGateway, "GenerationFailed"},
	}
	for _, tc := range cases {
		m, ok := lookupError(tc.err)
		require.True(t, ok, tc.err)
		assert.Equal(t, tc.status, m.status, tc.err)
		assert.Equal(t, tc.code, m.code, tc.err)
	}

	_, ok := lookupError(errors.New("connection reset"))
	assert.False(t, ok)
}

func TestPathAndPageHelpers(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, ok := pathID(c, "id")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	p, ok := page(c)
	require.True(t, ok)
	assert.Equal(t, 100, p.Limit, "capped")
	assert.Equal(t, 20, p.Offset)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?offset=-1&owner=x", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("-3")
	_, ok = pathID(c, "id")
	assert.False(t, ok)
	_, ok = page(c)
	assert.False(t, ok)
	_, ok = queryID(c, "owner")
	assert.False(t, ok)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	p, ok = page(c)
	require.True(t, ok)
	assert.Equal(t, 25, p.Limit)
	owner, ok := queryID(c, "owner")
	assert.True(t, ok)
	assert.Zero(t, owner)
}

func TestExtractBearer(t *testing.T) {
	e := echo.New()
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer ":      "",
		"":             "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, header)
		assert.Equal(t, want, extractBearer(e.NewContext(req, httptest.NewRecorder())), header)
	}
}
