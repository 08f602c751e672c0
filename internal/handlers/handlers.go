// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON endpoints of the account API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/inw/serpback/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the operational handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health reports whether the service and its database are reachable.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.repo.DB().PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
