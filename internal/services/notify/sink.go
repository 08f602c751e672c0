// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Sink delivers events to users or downstream systems.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Multi fans an event out to every sink. All sinks are tried; the errors
// are joined.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to the structured log. The token is included so
// development setups work without a mail server.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.logger.InfoContext(ctx, "account_notification",
		"event_id", ev.ID.String(),
		"kind", string(ev.Kind),
		"user_id", ev.UserID,
		"login", ev.Login,
		"token", ev.Token,
		"locale", ev.Locale,
		"expires_at", ev.ExpiresAt,
	)
	return nil
}
