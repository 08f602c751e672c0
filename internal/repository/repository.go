// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"codeberg.org/inw/serpback/internal/database"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vinovest/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrLoginTaken is returned when another user already holds the login.
	ErrLoginTaken = errors.New("login already taken")
	// ErrEmailTaken is returned when another user already holds the email.
	ErrEmailTaken = errors.New("email already taken")
	// ErrDuplicate is returned for any other unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Repository is the account store. It runs its queries either on the
// connection pool or, inside WithTx, on a single transaction.
type Repository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, q: db}
}

// DB returns the underlying connection pool.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// WithTx runs fn with a repository bound to one transaction. Nested calls
// reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if _, ok := r.q.(*sqlx.Tx); ok {
		return fn(r)
	}
	return database.WithTx(ctx, r.db, nil, func(_ context.Context, tx *sqlx.Tx) error {
		return fn(&Repository{db: r.db, q: tx})
	})
}

func (r *Repository) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// mapConstraintError translates unique violations of SQLite and PostgreSQL
// into repository errors.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE") {
		return uniqueError(sqliteErr.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return uniqueError(pgErr.ConstraintName)
	}

	return err
}

// uniqueError picks the error for a violated constraint. SQLite reports
// "users.login", PostgreSQL the constraint name "users_login_key".
func uniqueError(detail string) error {
	switch {
	case strings.Contains(detail, "users.login"), strings.Contains(detail, "users_login_key"):
		return ErrLoginTaken
	case strings.Contains(detail, "users.email"), strings.Contains(detail, "users_email_key"):
		return ErrEmailTaken
	default:
		return ErrDuplicate
	}
}
