// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/inw/serpback/internal/database"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of users created by NewTestUser.
const TestPassword = "correct horse battery staple"

// NewTestDB creates a migrated in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a user named login with email login@example.com,
// password TestPassword and the given authorities.
func NewTestUser(t *testing.T, repo *repository.Repository, login string, enabled bool, authorities ...string) *models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Login:        login,
		Email:        login + "@example.com",
		PasswordHash: string(hash),
		Enabled:      enabled,
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	if len(authorities) > 0 {
		found, err := repo.GetAuthoritiesByName(ctx, authorities)
		require.NoError(t, err)
		require.NoError(t, repo.SetUserAuthorities(ctx, user.ID, found))
	}

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	return stored
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request with a JSON content type.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
