// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/inw/serpback/internal/config"
	"codeberg.org/inw/serpback/internal/handlers"
	"codeberg.org/inw/serpback/internal/i18n"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = i18n.Init()
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "localhost", Port: 8080, BaseURL: "http://localhost:8080"},
		Session: config.SessionConfig{CookieName: "_serpback_test", MaxAge: 3600},
		Notify:  config.NotifyConfig{Sinks: []string{config.SinkLog}, QueueSize: 16},
		Tokens: config.TokensConfig{
			RegistrationTTL:  24 * time.Hour,
			PasswordResetTTL: time.Hour,
			SweepInterval:    time.Hour,
		},
		CORS:  config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
		Admin: config.AdminConfig{Login: "admin", Email: "admin@example.com", Password: "admin-secret"},
	}
}

type client struct {
	t      *testing.T
	app    *App
	cookie *http.Cookie
}

func newApp(t *testing.T) *App {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	cfg := testConfig()

	app, err := New(context.Background(), cfg, repo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	require.NoError(t, app.EnsureAdmin(context.Background(), cfg.Admin))
	return app
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := testutil.NewRequest(method, path, r)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	return rec
}

func (c *client) login(username, password string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/user/login", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(c.t, cookies, 1)
	c.cookie = cookies[0]
}

func TestHealthRoute(t *testing.T) {
	app := newApp(t)
	c := &client{t: t, app: app}

	rec := c.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnonymousAccess(t *testing.T) {
	app := newApp(t)
	c := &client{t: t, app: app}

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/user/admin"},
		{http.MethodPut, "/api/user/admin"},
		{http.MethodPost, "/api/user/create"},
		{http.MethodPut, "/api/user/admin/authorities"},
		{http.MethodDelete, "/api/user/delete/admin"},
	} {
		rec := c.do(route.method, route.path, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, route.path)
		assert.Equal(t, handlers.CodeAccessDenied, rec.Header().Get(handlers.HeaderErrorCode), route.path)
	}
}

func TestAdminFlow(t *testing.T) {
	app := newApp(t)
	admin := &client{t: t, app: app}
	admin.login("admin", "admin-secret")

	rec := admin.do(http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authorities":["ROLE_ADMIN","ROLE_USER"]`)

	rec = admin.do(http.MethodPost, "/api/user/create", `{"login":"erin","email":"erin@example.com","authorities":["ROLE_USER"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/user/erin", rec.Header().Get("Location"))

	rec = admin.do(http.MethodPut, "/api/user/erin/authorities", `{"authorities":["ROLE_ADMIN"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = admin.do(http.MethodDelete, "/api/user/delete/erin", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = admin.do(http.MethodGet, "/api/user/erin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, handlers.CodeNotFound, rec.Header().Get(handlers.HeaderErrorCode))
}

func TestUserFlow(t *testing.T) {
	app := newApp(t)
	anon := &client{t: t, app: app}

	rec := anon.do(http.MethodPost, "/api/user/register", `{"login":"frank","email":"frank@example.com","password":"frank-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = anon.do(http.MethodPost, "/api/user/login", `{"username":"frank","password":"frank-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, handlers.CodeNotActivated, rec.Header().Get(handlers.HeaderErrorCode))

	user := &client{t: t, app: app}
	frank, err := app.Accounts.GetDetails(context.Background(), "frank")
	require.NoError(t, err)
	require.NoError(t, app.repo.EnableUser(context.Background(), frank.ID))
	user.login("frank", "frank-pass")

	rec = user.do(http.MethodGet, "/api/user/frank", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = user.do(http.MethodGet, "/api/user/admin", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handlers.CodeUnauthorized, rec.Header().Get(handlers.HeaderErrorCode))

	rec = user.do(http.MethodGet, "/api/user", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, handlers.CodeAccessDenied, rec.Header().Get(handlers.HeaderErrorCode))

	// A deleted account's session stops working on the next request.
	_, err = app.Accounts.DeleteUser(context.Background(), "frank")
	require.NoError(t, err)
	rec = user.do(http.MethodGet, "/api/user/frank", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	app := newApp(t)
	admin := &client{t: t, app: app}
	admin.login("admin", "admin-secret")

	rec := admin.do(http.MethodPost, "/api/user/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	app := newApp(t)
	c := &client{t: t, app: app}

	rec := c.do(http.MethodGet, "/api/nothing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, handlers.CodeNoRoute, rec.Header().Get(handlers.HeaderErrorCode))
}

func TestEnsureAdminIdempotent(t *testing.T) {
	app := newApp(t)

	require.NoError(t, app.EnsureAdmin(context.Background(), testConfig().Admin))

	list, err := app.Accounts.ListDetails(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureAdminSkippedWithoutLogin(t *testing.T) {
	app := newApp(t)

	assert.NoError(t, app.EnsureAdmin(context.Background(), config.AdminConfig{}))
}

func TestNewRejectsBrokenSinks(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"unknown", func(c *config.Config) { c.Notify.Sinks = []string{"pigeon"} }, "unknown notification sink"},
		{"mail without host", func(c *config.Config) { c.Notify.Sinks = []string{config.SinkMail} }, "mail sink"},
		{"redis unreachable", func(c *config.Config) {
			c.Notify.Sinks = []string{config.SinkRedis}
			c.Notify.RedisAddr = "127.0.0.1:1"
		}, "redis sink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			_, err := New(context.Background(), cfg, repo)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewWarnsAboutLogSinkBehindTLS(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	for _, tt := range []struct {
		baseURL string
		warned  bool
	}{
		{"https://accounts.example.com", true},
		{"http://localhost:8080", false},
	} {
		t.Run(tt.baseURL, func(t *testing.T) {
			buf := captureLog(t)
			cfg := testConfig()
			cfg.Server.BaseURL = tt.baseURL

			app, err := New(context.Background(), cfg, repo)
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.Close(context.Background()) })

			assert.Equal(t, tt.warned, strings.Contains(buf.String(), "log_sink_enabled"))
		})
	}
}

func TestNewIssuerUsesConfiguredTTLs(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.RegistrationTTL = 2 * time.Hour
	cfg.Tokens.PasswordResetTTL = 5 * time.Minute

	issuer := NewIssuer(cfg)

	assert.Equal(t, 2*time.Hour, issuer.TTL(models.TokenRegistration))
	assert.Equal(t, 5*time.Minute, issuer.TTL(models.TokenPasswordReset))
}

func TestTrailingSlashIsIgnored(t *testing.T) {
	app := newApp(t)
	admin := &client{t: t, app: app}
	admin.login("admin", "admin-secret")

	rec := admin.do(http.MethodGet, "/api/user/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}
