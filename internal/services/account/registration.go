// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"context"
	"errors"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/services/notify"
	"codeberg.org/inw/serpback/internal/services/tokens"
)

// Register creates a disabled account and issues its confirmation token.
// The registration event is published once the account is committed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*CreatedSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.encoder.Encode(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Login:        req.Login,
		Email:        req.Email,
		PasswordHash: hash,
	}

	var ev notify.Event
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := ensureAvailable(ctx, tx, user.Login, user.Email); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return storeError(err)
		}

		token, err := s.issuer.Issue(ctx, tx, models.TokenRegistration, user.ID)
		if err != nil {
			return err
		}
		ev = s.newEvent(ctx, notify.EventRegistrationCreated, models.TokenRegistration, user, token)
		return nil
	})
	if err != nil {
		s.logger.InfoContext(ctx, "register_failed", "login", req.Login, "error", err)
		return nil, err
	}

	s.publish(ctx, ev)
	s.logger.InfoContext(ctx, "register_success", "login", user.Login, "user_id", user.ID)

	return &CreatedSummary{
		Email:       user.Email,
		Login:       user.Login,
		Authorities: []string{},
	}, nil
}

// ConfirmRegistration enables the account owning token. An unknown or
// already used token yields ErrRegistrationAlreadyConfirmed, a lapsed one
// ErrRegistrationTimeout. Of several concurrent confirmations with the same
// token exactly one succeeds.
func (s *Service) ConfirmRegistration(ctx context.Context, token string) (bool, error) {
	var userID int64
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		id, err := s.claimRegistration(ctx, tx, token)
		if err != nil {
			return err
		}
		userID = id
		return tx.EnableUser(ctx, id)
	})
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "registration_confirmed", "user_id", userID)
	return true, nil
}

// claimRegistration validates token and deletes it, returning the owner.
// A token removed by someone else between both steps counts as confirmed.
func (s *Service) claimRegistration(ctx context.Context, store tokens.Store, token string) (int64, error) {
	user, err := s.issuer.Validate(ctx, store, models.TokenRegistration, token)
	switch {
	case errors.Is(err, tokens.ErrTokenNotFound):
		return 0, ErrRegistrationAlreadyConfirmed
	case errors.Is(err, tokens.ErrTokenExpired):
		return 0, ErrRegistrationTimeout
	case err != nil:
		return 0, err
	}

	removed, err := s.issuer.Consume(ctx, store, models.TokenRegistration, token)
	if err != nil {
		return 0, err
	}
	if !removed {
		return 0, ErrRegistrationAlreadyConfirmed
	}
	return user.ID, nil
}

// SweepExpiredRegistrations deletes lapsed registration tokens. The still
// disabled accounts stay in place.
func (s *Service) SweepExpiredRegistrations(ctx context.Context) (int64, error) {
	return s.issuer.Sweep(ctx, s.repo, models.TokenRegistration)
}
