// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package account implements the user lifecycle: registration and
// confirmation, authentication, password reset and administrative
// management of users and their authorities.
package account

import (
	"context"
	"errors"
	"log/slog"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/services/notify"
	"codeberg.org/inw/serpback/internal/services/password"
	"codeberg.org/inw/serpback/internal/services/tokens"
)

// Publisher receives account events after the writes that produced them
// are committed. It must not block.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

// Service bundles the registration, authentication and management
// operations over one account store.
type Service struct {
	repo      *repository.Repository
	issuer    *tokens.Issuer
	encoder   password.Encoder
	events    Publisher
	logger    *slog.Logger
	dummyHash string
}

// NewService creates the account service.
func NewService(
	repo *repository.Repository,
	issuer *tokens.Issuer,
	encoder password.Encoder,
	events Publisher,
	logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Compared against for unknown identifiers so that lookups of missing
	// accounts cost as much as real ones.
	dummy, err := encoder.Encode("serpback-dummy-password")
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:      repo,
		issuer:    issuer,
		encoder:   encoder,
		events:    events,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Details is the externally visible view of a user.
type Details struct {
	ID          int64    `json:"id"`
	Login       string   `json:"login"`
	Email       string   `json:"email"`
	Enabled     bool     `json:"enabled"`
	Authorities []string `json:"authorities"`
}

// CreatedSummary describes a newly created account.
type CreatedSummary struct {
	Email       string   `json:"email"`
	Login       string   `json:"login"`
	Authorities []string `json:"authorities"`
}

func toDetails(u *models.User) *Details {
	return &Details{
		ID:          u.ID,
		Login:       u.Login,
		Email:       u.Email,
		Enabled:     u.Enabled,
		Authorities: nonNil(u.Authorities),
	}
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event_publish_failed",
			"kind", string(ev.Kind),
			"user_id", ev.UserID,
			"error", err,
		)
	}
}

func (s *Service) newEvent(ctx context.Context, kind notify.EventKind, tokenKind models.TokenKind, u *models.User, token string) notify.Event {
	return notify.NewEvent(ctx, kind, u.ID, u.Login, token, s.issuer.Now().Add(s.issuer.TTL(tokenKind)))
}

// ensureAvailable fails with ErrLoginTaken or ErrEmailTaken when another
// user already holds login or email. The unique constraints of the store
// remain the final authority.
func ensureAvailable(ctx context.Context, tx *repository.Repository, login, email string) error {
	if _, err := tx.GetUserByLogin(ctx, login); err == nil {
		return ErrLoginTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if _, err := tx.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	return nil
}

func (s *Service) grant(ctx context.Context, tx *repository.Repository, userID int64, names []string) error {
	authorities, err := tx.GetAuthoritiesByName(ctx, names)
	if err != nil {
		return err
	}
	return tx.SetUserAuthorities(ctx, userID, authorities)
}
