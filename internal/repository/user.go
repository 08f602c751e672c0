// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/inw/serpback/internal/models"
)

const userColumns = `id, login, email, password_hash, enabled, created_at, updated_at`

// CreateUser inserts a user and assigns its ID and timestamps.
// Violations of the login/email uniqueness yield ErrLoginTaken or ErrEmailTaken.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(
		`INSERT INTO users (login, email, password_hash, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		user.Login, user.Email, user.PasswordHash, user.Enabled, now, now,
	).Scan(&user.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user with its authorities.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByLogin retrieves a user by login, case-sensitive.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
}

// GetUserByEmail retrieves a user by email address, case-sensitive.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByLoginOrEmail resolves identifier as a login first and falls back
// to an email lookup only when no such login exists.
func (r *Repository) GetUserByLoginOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	user, err := r.GetUserByLogin(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		return r.GetUserByEmail(ctx, identifier)
	}
	return user, err
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.get(ctx, &user, query, arg); err != nil {
		return nil, err
	}
	authorities, err := r.GetUserAuthorities(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Authorities = authorities
	return &user, nil
}

// ListUsers returns all users with their authorities, ordered by login.
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.selectAll(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY login`); err != nil {
		return nil, err
	}

	var grants []struct {
		UserID int64  `db:"user_id"`
		Name   string `db:"name"`
	}
	err := r.selectAll(ctx, &grants,
		`SELECT ua.user_id, a.name FROM user_authorities ua
		 JOIN authorities a ON a.id = ua.authority_id
		 ORDER BY a.name`)
	if err != nil {
		return nil, err
	}

	byUser := make(map[int64][]string, len(users))
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g.Name)
	}
	for i := range users {
		users[i].Authorities = byUser[users[i].ID]
		if users[i].Authorities == nil {
			users[i].Authorities = []string{}
		}
	}

	return users, nil
}

// UpdateUser writes login and email of an existing user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	n, err := r.exec(ctx, `UPDATE users SET login = ?, email = ?, updated_at = ? WHERE id = ?`,
		user.Login, user.Email, now, user.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

// UpdateUserPassword replaces a user's password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	n, err := r.exec(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// EnableUser marks a user as confirmed.
func (r *Repository) EnableUser(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, `UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?`,
		true, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUserByLogin removes a user; authority links and tokens cascade.
// It reports whether a row was deleted.
func (r *Repository) DeleteUserByLogin(ctx context.Context, login string) (bool, error) {
	n, err := r.exec(ctx, `DELETE FROM users WHERE login = ?`, login)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
