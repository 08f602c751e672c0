// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/inw/serpback/internal/appcontext"
	"codeberg.org/inw/serpback/internal/auth"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/services/account"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestContext_GetPrincipal(t *testing.T) {
	p := &account.Principal{UserID: 123, Login: "alice"}
	ctx := &appcontext.Context{Principal: p}

	assert.Same(t, p, ctx.GetPrincipal())
	assert.True(t, ctx.IsAuthenticated())
	assert.False(t, ctx.IsAdmin())
}

func TestContext_Anonymous(t *testing.T) {
	ctx := &appcontext.Context{}

	assert.Nil(t, ctx.GetPrincipal())
	assert.False(t, ctx.IsAuthenticated())
	assert.False(t, ctx.IsAdmin())
}

func TestContext_IsAdmin(t *testing.T) {
	ctx := &appcontext.Context{Principal: &account.Principal{Authorities: []string{models.RoleAdmin}}}

	assert.True(t, ctx.IsAdmin())
}

func TestFrom(t *testing.T) {
	e := echo.New()
	p := &account.Principal{UserID: 7, Login: "bobby"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	c := e.NewContext(req, httptest.NewRecorder())

	wrapped := appcontext.From(c)
	assert.Same(t, p, wrapped.Principal)
	assert.Same(t, wrapped, appcontext.From(wrapped))
}

func TestFrom_Anonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.False(t, appcontext.From(c).IsAuthenticated())
}
