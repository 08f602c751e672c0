// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"

	"codeberg.org/inw/serpback/internal/config"
	"codeberg.org/inw/serpback/internal/database"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/server"
	"codeberg.org/inw/serpback/internal/services/account"
	"codeberg.org/inw/serpback/internal/services/password"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables win either way.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cmd := &cli.Command{
		Name:    "serpback",
		Usage:   "User account backend",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the API server",
				Action: server.Run,
			},
			migrateCommand(),
			{
				Name:   "admin",
				Usage:  "Create the administrator given by --admin-login, --admin-email and --admin-password",
				Action: createAdmin,
			},
			{
				Name:   "sweep",
				Usage:  "Delete expired registration and password reset tokens",
				Action: sweep,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateCommand() *cli.Command {
	run := func(fn func(*sqlx.DB) error, done string) cli.ActionFunc {
		return func(_ context.Context, cmd *cli.Command) error {
			return withDB(cmd, func(db *sqlx.DB) error {
				if err := fn(db); err != nil {
					return err
				}
				return printVersion(db, done)
			})
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{Name: "up", Usage: "Apply all pending migrations", Action: run(database.RunMigrations, "migrated")},
			{Name: "down", Usage: "Roll back the last migration", Action: run(database.MigrateDown, "rolled back")},
			{Name: "reset", Usage: "Roll back all migrations", Action: run(database.MigrateReset, "reset")},
			{
				Name:  "status",
				Usage: "Print the current schema version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(db *sqlx.DB) error {
						return printVersion(db, "schema")
					})
				},
			},
		},
	}
}

func printVersion(db *sqlx.DB, label string) error {
	version, err := database.Version(db)
	if err != nil {
		return err
	}
	fmt.Printf("%s: version %d\n", label, version)
	return nil
}

// withDB connects without migrating, so the migrate commands control the schema.
func withDB(cmd *cli.Command, fn func(*sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func createAdmin(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if cfg.Admin.Login == "" || cfg.Admin.Password == "" {
		return errors.New("--admin-login and --admin-password are required")
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	accounts, err := account.NewService(repository.New(db), server.NewIssuer(cfg), password.NewBcrypt(0), nil, slog.Default())
	if err != nil {
		return err
	}

	created, err := accounts.EnsureAdmin(ctx, cfg.Admin.Login, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("created admin %q\n", cfg.Admin.Login)
	} else {
		fmt.Printf("account %q already exists\n", cfg.Admin.Login)
	}
	return nil
}

func sweep(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.New(db)
	issuer := server.NewIssuer(cfg)
	for _, kind := range models.Kinds() {
		n, err := issuer.Sweep(ctx, repo, kind)
		if err != nil {
			return fmt.Errorf("failed to sweep %s tokens: %w", kind, err)
		}
		fmt.Printf("%s: removed %d expired tokens\n", kind, n)
	}
	return nil
}
