// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TokenKind distinguishes the single-use token families.
type TokenKind string

const (
	TokenRegistration  TokenKind = "registration"
	TokenPasswordReset TokenKind = "password_reset"
)

// Kinds lists every token kind.
func Kinds() []TokenKind {
	return []TokenKind{TokenRegistration, TokenPasswordReset}
}

// Token stores the hash of a single-use token owned by a user.
type Token struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	TokenHash string    `db:"token_hash" json:"-"` // SHA256 hash
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token has lapsed at now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
