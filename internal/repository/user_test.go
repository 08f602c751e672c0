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

func newUser(login string) *models.User {
	return &models.User{Login: login, Email: login + "@example.com", PasswordHash: "hash"}
}

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := newUser("alice")
	err := repo.CreateUser(ctx, user)

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Login)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.False(t, stored.Enabled)
	assert.Empty(t, stored.Authorities)
}

func TestCreateUser_DuplicateLogin(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, newUser("alice")))

	dup := newUser("alice")
	dup.Email = "other@example.com"
	err := repo.CreateUser(ctx, dup)

	assert.ErrorIs(t, err, repository.ErrLoginTaken)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, newUser("alice")))

	dup := newUser("bobby")
	dup.Email = "alice@example.com"
	err := repo.CreateUser(ctx, dup)

	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestCreateUser_LoginIsCaseSensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, newUser("alice")))

	upper := newUser("Alice")
	upper.Email = "upper@example.com"
	assert.NoError(t, repo.CreateUser(ctx, upper))
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), 999)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByLoginAndEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice", true, models.RoleUser)

	byLogin, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLogin.ID)
	assert.Equal(t, []string{models.RoleUser}, byLogin.Authorities)
	assert.True(t, byLogin.Enabled)

	byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByLoginOrEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)

	byLogin, err := repo.GetUserByLoginOrEmail(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byLogin.ID)

	byEmail, err := repo.GetUserByLoginOrEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = repo.GetUserByLoginOrEmail(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "carol", true)
	testutil.NewTestUser(t, repo, "alice", true, models.RoleAdmin, models.RoleUser)

	users, err := repo.ListUsers(ctx)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Login)
	assert.Equal(t, []string{models.RoleAdmin, models.RoleUser}, users[0].Authorities)
	assert.Equal(t, "carol", users[1].Login)
	assert.Equal(t, []string{}, users[1].Authorities)
}

func TestUpdateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)

	alice.Login = "alicia"
	alice.Email = "alicia@example.com"
	require.NoError(t, repo.UpdateUser(ctx, alice))

	stored, err := repo.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", stored.Login)
	assert.Equal(t, "alicia@example.com", stored.Email)
}

func TestUpdateUser_Conflicts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", true)
	testutil.NewTestUser(t, repo, "bobby", true)

	alice.Login = "bobby"
	assert.ErrorIs(t, repo.UpdateUser(ctx, alice), repository.ErrLoginTaken)

	alice.Login = "alice"
	alice.Email = "bobby@example.com"
	assert.ErrorIs(t, repo.UpdateUser(ctx, alice), repository.ErrEmailTaken)
}

func TestUpdateUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateUser(context.Background(), &models.User{ID: 42, Login: "ghost", Email: "ghost@example.com"})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateUserPasswordAndEnable(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", false)

	require.NoError(t, repo.UpdateUserPassword(ctx, alice.ID, "new-hash"))
	require.NoError(t, repo.EnableUser(ctx, alice.ID))

	stored, err := repo.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.True(t, stored.Enabled)

	assert.ErrorIs(t, repo.UpdateUserPassword(ctx, 999, "x"), repository.ErrNotFound)
	assert.ErrorIs(t, repo.EnableUser(ctx, 999), repository.ErrNotFound)
}

func TestDeleteUserByLogin_Cascades(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice", false, models.RoleAdmin)
	require.NoError(t, repo.CreateToken(ctx, models.TokenRegistration, &models.Token{
		UserID: alice.ID, TokenHash: "reg", ExpiresAt: time.Now().Add(time.Hour),
	}))

	deleted, err := repo.DeleteUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	var links, tokens int
	require.NoError(t, db.Get(&links, "SELECT count(*) FROM user_authorities"))
	require.NoError(t, db.Get(&tokens, "SELECT count(*) FROM registration_tokens"))
	assert.Zero(t, links)
	assert.Zero(t, tokens)

	// the authority itself survives
	found, err := repo.GetAuthoritiesByName(ctx, []string{models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	deleted, err = repo.DeleteUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		require.NoError(t, tx.CreateUser(ctx, newUser("alice")))
		return tx.CreateUser(ctx, newUser("alice"))
	})
	require.ErrorIs(t, err, repository.ErrLoginTaken)

	_, err = repo.GetUserByLogin(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTx_Nested(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		return tx.WithTx(ctx, func(inner *repository.Repository) error {
			return inner.CreateUser(ctx, newUser("alice"))
		})
	})
	require.NoError(t, err)

	_, err = repo.GetUserByLogin(ctx, "alice")
	assert.NoError(t, err)
}
