// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"codeberg.org/inw/serpback/internal/auth"
	"codeberg.org/inw/serpback/internal/services/account"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context carrying the principal of the request.
type Context struct {
	echo.Context
	Principal *account.Principal // nil if not authenticated
}

// From returns c as *Context. Plain echo contexts are wrapped, taking the
// principal from the request context.
func From(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{
		Context:   c,
		Principal: auth.GetPrincipal(c.Request().Context()),
	}
}

// GetPrincipal returns the authenticated principal, or nil.
func (c *Context) GetPrincipal() *account.Principal {
	return c.Principal
}

// IsAuthenticated returns true if the request is authenticated.
func (c *Context) IsAuthenticated() bool {
	return c.Principal != nil
}

// IsAdmin returns true if the principal holds ROLE_ADMIN.
func (c *Context) IsAdmin() bool {
	return c.Principal.IsAdmin()
}
