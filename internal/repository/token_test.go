// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createToken(t *testing.T, repo *repository.Repository, kind models.TokenKind, userID int64, hash string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateToken(context.Background(), kind, &models.Token{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}))
}

func TestCreateToken_AndGet(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", false)
	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	createToken(t, repo, models.TokenRegistration, alice.ID, "hash-1", expiresAt)

	token, err := repo.GetToken(ctx, models.TokenRegistration, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, token.UserID)
	assert.True(t, token.ExpiresAt.Equal(expiresAt))

	// kinds live in separate tables
	_, err = repo.GetToken(ctx, models.TokenPasswordReset, "hash-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateToken_OnePerUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)
	createToken(t, repo, models.TokenPasswordReset, alice.ID, "hash-1", time.Now().Add(time.Hour))

	err := repo.CreateToken(ctx, models.TokenPasswordReset, &models.Token{
		UserID: alice.ID, TokenHash: "hash-2", ExpiresAt: time.Now().Add(time.Hour),
	})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateToken_UnknownKind(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateToken(context.Background(), "magic_link", &models.Token{UserID: 1, TokenHash: "x"})

	assert.ErrorIs(t, err, repository.ErrUnknownTokenKind)
}

func TestDeleteToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", false)
	createToken(t, repo, models.TokenRegistration, alice.ID, "hash-1", time.Now().Add(time.Hour))

	deleted, err := repo.DeleteToken(ctx, models.TokenRegistration, "hash-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteToken(ctx, models.TokenRegistration, "hash-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestConsumeLiveToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)
	bobby := testutil.NewTestUser(t, repo, "bobby", true)
	now := time.Now()
	createToken(t, repo, models.TokenPasswordReset, alice.ID, "live", now.Add(time.Hour))
	createToken(t, repo, models.TokenPasswordReset, bobby.ID, "stale", now.Add(-time.Minute))

	owner, err := repo.ConsumeLiveToken(ctx, models.TokenPasswordReset, "live", now)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner)

	_, err = repo.ConsumeLiveToken(ctx, models.TokenPasswordReset, "live", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.ConsumeLiveToken(ctx, models.TokenPasswordReset, "stale", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// expired rows are left for the sweep
	_, err = repo.GetToken(ctx, models.TokenPasswordReset, "stale")
	assert.NoError(t, err)
}

func TestDeleteUserTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)
	createToken(t, repo, models.TokenPasswordReset, alice.ID, "hash-1", time.Now().Add(time.Hour))

	n, err := repo.DeleteUserTokens(ctx, models.TokenPasswordReset, alice.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetToken(ctx, models.TokenPasswordReset, "hash-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteExpiredTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	alice := testutil.NewTestUser(t, repo, "alice", false)
	bobby := testutil.NewTestUser(t, repo, "bobby", false)
	createToken(t, repo, models.TokenRegistration, alice.ID, "expired", now.Add(-time.Hour))
	createToken(t, repo, models.TokenRegistration, bobby.ID, "live", now.Add(time.Hour))

	n, err := repo.DeleteExpiredTokens(ctx, models.TokenRegistration, now)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetToken(ctx, models.TokenRegistration, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetToken(ctx, models.TokenRegistration, "live")
	assert.NoError(t, err)
}
