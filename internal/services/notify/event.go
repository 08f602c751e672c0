// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify delivers account notifications (registration and
// password reset tokens) to the configured sinks.
package notify

import (
	"context"
	"time"

	"codeberg.org/inw/serpback/internal/i18n"
	"github.com/google/uuid"
)

// EventKind identifies what happened to an account.
type EventKind string

const (
	EventRegistrationCreated    EventKind = "registration_created"
	EventPasswordResetInitiated EventKind = "password_reset_initiated"
)

// Event carries a freshly issued token to whoever delivers it to the user.
// Token is the plaintext value; it is never stored.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Kind       EventKind `json:"kind"`
	UserID     int64     `json:"user_id"`
	Login      string    `json:"login"`
	Token      string    `json:"token"`
	Locale     string    `json:"locale"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates an event stamped with the request locale from ctx.
func NewEvent(ctx context.Context, kind EventKind, userID int64, login, token string, expiresAt time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		UserID:     userID,
		Login:      login,
		Token:      token,
		Locale:     i18n.GetLocale(ctx),
		ExpiresAt:  expiresAt.UTC(),
		OccurredAt: time.Now().UTC(),
	}
}

// ValidFor is how long the token stays usable after the event.
func (e Event) ValidFor() time.Duration {
	return e.ExpiresAt.Sub(e.OccurredAt)
}
