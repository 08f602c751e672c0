// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Well-known authority names.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	// Authorities holds the names of the granted roles, sorted.
	Authorities []string `db:"-" json:"authorities"`
}

// Authority is a named role shared between users.
type Authority struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
