// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/inw/serpback/internal/config"
	"codeberg.org/inw/serpback/internal/handlers"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/services/account"
	"codeberg.org/inw/serpback/internal/services/email"
	"codeberg.org/inw/serpback/internal/services/notify"
	"codeberg.org/inw/serpback/internal/services/password"
	"codeberg.org/inw/serpback/internal/services/session"
	"codeberg.org/inw/serpback/internal/services/tokens"
	"github.com/labstack/echo/v4"
)

// App is the wired application: services, background workers and the
// HTTP router.
type App struct {
	Echo       *echo.Echo
	Accounts   *account.Service
	Sessions   *session.Manager
	Issuer     *tokens.Issuer
	Dispatcher *notify.Dispatcher
	Sweeper    *tokens.Sweeper

	repo    *repository.Repository
	closers []func() error
}

// NewIssuer creates the token issuer with the configured lifetimes.
func NewIssuer(cfg *config.Config) *tokens.Issuer {
	return tokens.NewIssuer(
		tokens.WithTTL(models.TokenRegistration, cfg.Tokens.RegistrationTTL),
		tokens.WithTTL(models.TokenPasswordReset, cfg.Tokens.PasswordResetTTL),
	)
}

// New wires the application on top of repo.
func New(ctx context.Context, cfg *config.Config, repo *repository.Repository) (*App, error) {
	app := &App{repo: repo, Issuer: NewIssuer(cfg)}

	sink, err := app.buildSink(ctx, cfg)
	if err != nil {
		_ = app.closeAll()
		return nil, err
	}
	app.Dispatcher = notify.NewDispatcher(sink, cfg.Notify.QueueSize, slog.Default())

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	if secure && cfg.HasSink(config.SinkLog) {
		slog.Warn("log_sink_enabled", "detail", "tokens are written to the log in plain text")
	}

	app.Accounts, err = account.NewService(repo, app.Issuer, password.NewBcrypt(0), app.Dispatcher, slog.Default())
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to create account service: %w", err)
	}

	app.Sessions, err = session.NewManager(&cfg.Session, secure)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	app.Sweeper = tokens.NewSweeper(app.Issuer, repo, cfg.Tokens.SweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	setupMiddleware(e, cfg, app.Sessions, app.Accounts)
	setupRoutes(e, app)
	app.Echo = e

	return app, nil
}

// buildSink creates the notification sinks named in the configuration.
func (a *App) buildSink(ctx context.Context, cfg *config.Config) (notify.Sink, error) {
	var sinks notify.Multi
	for _, name := range cfg.Notify.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, notify.NewLogSink(slog.Default()))

		case config.SinkMail:
			sender, err := email.NewService(&cfg.SMTP)
			if err != nil {
				return nil, fmt.Errorf("mail sink: %w", err)
			}
			sinks = append(sinks, notify.NewMailSink(sender, a.repo, cfg.Notify.FrontendURL))

		case config.SinkRedis:
			client, err := notify.NewRedisClient(ctx, cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB)
			if err != nil {
				return nil, fmt.Errorf("redis sink: %w", err)
			}
			a.closers = append(a.closers, client.Close)
			sinks = append(sinks, notify.NewRedisSink(client, cfg.Notify.RedisChannel))

		default:
			return nil, fmt.Errorf("unknown notification sink %q", name)
		}
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// EnsureAdmin creates the configured administrator if it does not exist.
func (a *App) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Login == "" {
		return nil
	}
	created, err := a.Accounts.EnsureAdmin(ctx, admin.Login, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("failed to create admin %q: %w", admin.Login, err)
	}
	if !created {
		slog.Debug("admin_exists", "login", admin.Login)
	}
	return nil
}

// Close drains pending notifications and releases external connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		errs = append(errs, a.Dispatcher.Close(ctx))
	}
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	a.closers = nil
	return errors.Join(errs...)
}
