// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/inw/serpback/internal/config"
	"codeberg.org/inw/serpback/internal/database"
	"codeberg.org/inw/serpback/internal/i18n"
	"codeberg.org/inw/serpback/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"sinks", cfg.Notify.Sinks,
	)

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	app, err := New(ctx, cfg, repository.New(db))
	if err != nil {
		return err
	}

	if err := app.EnsureAdmin(ctx, cfg.Admin); err != nil {
		_ = app.Close(ctx)
		return err
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		app.Sweeper.Run(sweepCtx)
	}()

	serveErr := startWithGracefulShutdown(ctx, app.Echo, cfg)

	stopSweeper()
	<-sweeperDone

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		slog.Error("failed to drain notifications", "error", err)
	}

	return serveErr
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Redirect and ACME challenge listener, only in ACME mode
	var challengeServer *http.Server

	serve := func(start func() error) {
		go func() {
			if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	slog.Info("server running", "url", cfg.Server.BaseURL, "tls", tlsResult.Mode)

	switch tlsResult.Mode {
	case TLSModeOff:
		serve(func() error { return e.Start(addr) })

	case TLSModeACME:
		serve(func() error { return startTLSServer(ctx, e, ":443", tlsResult.TLSConfig) })

		challengeServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		serve(challengeServer.ListenAndServe)

	default:
		serve(func() error { return startTLSServer(ctx, e, addr, tlsResult.TLSConfig) })
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if challengeServer != nil {
		if err := challengeServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown challenge server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

func startTLSServer(ctx context.Context, e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
