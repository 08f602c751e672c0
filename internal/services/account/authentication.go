// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"context"
	"errors"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
)

// Login authenticates identifier, which may be a login or an email
// address. Only a missing login falls back to the email lookup; a wrong
// password or a disabled account is reported as is.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Principal, error) {
	user, err := s.authenticate(ctx, identifier, password)
	if errors.Is(err, repository.ErrNotFound) {
		var byEmail *models.User
		byEmail, err = s.repo.GetUserByEmail(ctx, identifier)
		if err == nil {
			user, err = s.authenticate(ctx, byEmail.Login, password)
		}
	}

	if errors.Is(err, repository.ErrNotFound) {
		s.encoder.Matches(password, s.dummyHash)
		err = ErrBadCredentials
	}
	if err != nil {
		s.logger.InfoContext(ctx, "login_failed", "identifier", identifier, "error", err)
		if errors.Is(err, ErrBadCredentials) || errors.Is(err, ErrUserNotEnabled) {
			return nil, &CredentialError{Identifier: identifier, Err: err}
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "login_success", "login", user.Login, "user_id", user.ID)
	return newPrincipal(user), nil
}

// authenticate checks password against the account with the given login.
// A disabled account fails before the password is compared.
func (s *Service) authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrUserNotEnabled
	}
	if !s.encoder.Matches(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// Principal reloads the principal of userID. Deleted accounts yield
// ErrUserNotFound, disabled ones ErrUserNotEnabled.
func (s *Service) Principal(ctx context.Context, userID int64) (*Principal, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if !user.Enabled {
		return nil, ErrUserNotEnabled
	}
	return newPrincipal(user), nil
}
