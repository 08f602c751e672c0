// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeberg.org/inw/serpback/internal/models"
)

// ErrUnknownTokenKind is returned for a token kind without a table.
var ErrUnknownTokenKind = errors.New("unknown token kind")

var tokenTables = map[models.TokenKind]string{
	models.TokenRegistration:  "registration_tokens",
	models.TokenPasswordReset: "password_reset_tokens",
}

func tokenTable(kind models.TokenKind) (string, error) {
	table, ok := tokenTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTokenKind, kind)
	}
	return table, nil
}

// CreateToken stores a token hash for a user. A second token for the same
// user or a reused hash yields ErrDuplicate.
func (r *Repository) CreateToken(ctx context.Context, kind models.TokenKind, token *models.Token) error {
	table, err := tokenTable(kind)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	token.ExpiresAt = token.ExpiresAt.UTC()
	err = r.q.QueryRowxContext(ctx, r.q.Rebind(
		`INSERT INTO `+table+` (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		token.UserID, token.TokenHash, token.ExpiresAt, now,
	).Scan(&token.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	token.CreatedAt = now
	return nil
}

// GetToken retrieves a token by its hash, expired or not.
func (r *Repository) GetToken(ctx context.Context, kind models.TokenKind, tokenHash string) (*models.Token, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return nil, err
	}

	var token models.Token
	if err := r.get(ctx, &token,
		`SELECT id, user_id, token_hash, expires_at, created_at FROM `+table+` WHERE token_hash = ?`, tokenHash); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteToken removes a token by hash and reports whether this call removed it.
func (r *Repository) DeleteToken(ctx context.Context, kind models.TokenKind, tokenHash string) (bool, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return false, err
	}

	n, err := r.exec(ctx, `DELETE FROM `+table+` WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConsumeLiveToken deletes a token that has not expired at now and returns
// its owner. Missing, expired or concurrently consumed tokens yield ErrNotFound.
func (r *Repository) ConsumeLiveToken(ctx context.Context, kind models.TokenKind, tokenHash string, now time.Time) (int64, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return 0, err
	}

	var userID int64
	err = r.q.QueryRowxContext(ctx, r.q.Rebind(
		`DELETE FROM `+table+` WHERE token_hash = ? AND expires_at > ? RETURNING user_id`),
		tokenHash, now.UTC(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// DeleteUserTokens removes every token of kind owned by a user.
func (r *Repository) DeleteUserTokens(ctx context.Context, kind models.TokenKind, userID int64) (int64, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID)
}

// DeleteExpiredTokens removes tokens of kind whose expiry is at or before now.
func (r *Repository) DeleteExpiredTokens(ctx context.Context, kind models.TokenKind, now time.Time) (int64, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, now.UTC())
}
