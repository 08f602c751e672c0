// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/inw/serpback/internal/appcontext"
	"codeberg.org/inw/serpback/internal/auth"
	"codeberg.org/inw/serpback/internal/services/account"
	"codeberg.org/inw/serpback/internal/services/session"
	"github.com/labstack/echo/v4"
)

// PrincipalLoader reloads the principal named by a session.
type PrincipalLoader interface {
	Principal(ctx context.Context, userID int64) (*account.Principal, error)
}

// loadPrincipal resolves the session cookie to a principal on every request
// and wraps the echo context in an appcontext.Context. Sessions of deleted
// or disabled accounts are treated as anonymous.
func loadPrincipal(sessions *session.Manager, loader PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var principal *account.Principal

			data, err := sessions.Parse(c.Request())
			if err != nil {
				slog.WarnContext(c.Request().Context(), "session_parse_failed", "error", err)
			}
			if data != nil {
				principal, err = loader.Principal(c.Request().Context(), data.UserID)
				if err != nil && !errors.Is(err, account.ErrUserNotFound) && !errors.Is(err, account.ErrUserNotEnabled) {
					return err
				}
			}

			if principal != nil {
				ctx := auth.WithPrincipal(c.Request().Context(), principal)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			return next(&appcontext.Context{Context: c, Principal: principal})
		}
	}
}

// requireAuth rejects anonymous requests with 403.
func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !appcontext.From(c).IsAuthenticated() {
			return echo.NewHTTPError(http.StatusForbidden, "authentication required")
		}
		return next(c)
	}
}

// requireAdmin rejects requests without ROLE_ADMIN with 403.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !appcontext.From(c).IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
		}
		return next(c)
	}
}
