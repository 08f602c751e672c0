// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func withGoose(db *sqlx.DB, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	dialect, dir := "sqlite3", "migrations/sqlite"
	if db.DriverName() == DriverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	return fn(dir)
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Up(db.DB, dir)
	})
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Down(db.DB, dir)
	})
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Reset(db.DB, dir)
	})
}

// Version returns the current schema version.
func Version(db *sqlx.DB) (int64, error) {
	var version int64
	err := withGoose(db, func(string) error {
		v, err := goose.GetDBVersion(db.DB)
		version = v
		return err
	})
	return version, err
}
