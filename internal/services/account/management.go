// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/services/notify"
	"codeberg.org/inw/serpback/internal/services/password"
	"codeberg.org/inw/serpback/internal/services/tokens"
)

// PasswordResetInit issues a reset token for the account matching
// loginOrEmail, replacing an outstanding one. Unknown accounts are ignored
// so callers cannot tell which accounts exist.
func (s *Service) PasswordResetInit(ctx context.Context, loginOrEmail string) error {
	loginOrEmail = strings.TrimSpace(loginOrEmail)
	if loginOrEmail == "" {
		return nil
	}

	var ev notify.Event
	found := false
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.GetUserByLoginOrEmail(ctx, loginOrEmail)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		token, err := s.issuer.Issue(ctx, tx, models.TokenPasswordReset, user.ID)
		if err != nil {
			return err
		}
		ev = s.newEvent(ctx, notify.EventPasswordResetInitiated, models.TokenPasswordReset, user, token)
		found = true
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		s.logger.DebugContext(ctx, "password_reset_unknown_account")
		return nil
	}

	s.publish(ctx, ev)
	s.logger.InfoContext(ctx, "password_reset_initiated", "user_id", ev.UserID)
	return nil
}

// PasswordResetFinish sets a new password for the owner of a live reset
// token and consumes the token. Unknown, used and expired tokens are
// ignored without error.
func (s *Service) PasswordResetFinish(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.encoder.Encode(newPassword)
	if err != nil {
		return err
	}

	var userID int64
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		id, err := s.issuer.ConsumeLive(ctx, tx, models.TokenPasswordReset, token)
		if errors.Is(err, tokens.ErrTokenNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		userID = id
		return tx.UpdateUserPassword(ctx, id, hash)
	})
	if err != nil {
		return err
	}

	if userID != 0 {
		s.logger.InfoContext(ctx, "password_reset_finished", "user_id", userID)
	}
	return nil
}

// UpdateAuthorities replaces the roles of login with the known authorities
// among names. Unknown names are dropped.
func (s *Service) UpdateAuthorities(ctx context.Context, login string, names []string) (*Details, error) {
	var details *Details
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.GetUserByLogin(ctx, login)
		if err != nil {
			return storeError(err)
		}
		if err := s.grant(ctx, tx, user.ID, names); err != nil {
			return err
		}
		updated, err := tx.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		details = toDetails(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "authorities_updated", "login", login, "authorities", details.Authorities)
	return details, nil
}

// UpdateUser changes login and email of the account login. Authorities are
// applied only for admins, where a nil list removes all roles. A self-update
// never changes roles.
func (s *Service) UpdateUser(ctx context.Context, login string, req UpdateRequest, asAdmin bool) (*Details, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var details *Details
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.GetUserByLogin(ctx, login)
		if err != nil {
			return storeError(err)
		}

		if req.Login != user.Login {
			if _, err := tx.GetUserByLogin(ctx, req.Login); err == nil {
				return ErrLoginTaken
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		holder, err := tx.GetUserByEmail(ctx, req.Email)
		switch {
		case err == nil && holder.ID != user.ID:
			return ErrEmailTaken
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}

		user.Login = req.Login
		user.Email = req.Email
		if err := tx.UpdateUser(ctx, user); err != nil {
			return storeError(err)
		}

		if asAdmin {
			if err := s.grant(ctx, tx, user.ID, req.Authorities); err != nil {
				return err
			}
		}

		updated, err := tx.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		details = toDetails(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user_updated", "login", login, "new_login", details.Login)
	return details, nil
}

// DeleteUser removes the account login together with its role links and
// tokens. Deleting an unknown login succeeds without effect.
func (s *Service) DeleteUser(ctx context.Context, login string) (bool, error) {
	deleted, err := s.repo.DeleteUserByLogin(ctx, login)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.InfoContext(ctx, "user_deleted", "login", login)
	}
	return true, nil
}

// GetDetails returns the account login.
func (s *Service) GetDetails(ctx context.Context, login string) (*Details, error) {
	user, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, storeError(err)
	}
	return toDetails(user), nil
}

// ListDetails returns all accounts ordered by login.
func (s *Service) ListDetails(ctx context.Context) ([]Details, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	details := make([]Details, 0, len(users))
	for i := range users {
		details = append(details, *toDetails(&users[i]))
	}
	return details, nil
}

// CreateUser creates an enabled account on behalf of an admin. The account
// gets an unusable random password and a reset token, published as a
// password reset event, so the new user chooses a password.
func (s *Service) CreateUser(ctx context.Context, req CreateRequest) (*CreatedSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	random, err := password.Random()
	if err != nil {
		return nil, err
	}
	hash, err := s.encoder.Encode(random)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Login:        req.Login,
		Email:        req.Email,
		PasswordHash: hash,
		Enabled:      true,
	}

	var ev notify.Event
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := ensureAvailable(ctx, tx, user.Login, user.Email); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return storeError(err)
		}
		if err := s.grant(ctx, tx, user.ID, req.Authorities); err != nil {
			return err
		}
		granted, err := tx.GetUserAuthorities(ctx, user.ID)
		if err != nil {
			return err
		}
		user.Authorities = granted

		token, err := s.issuer.Issue(ctx, tx, models.TokenPasswordReset, user.ID)
		if err != nil {
			return err
		}
		ev = s.newEvent(ctx, notify.EventPasswordResetInitiated, models.TokenPasswordReset, user, token)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ev)
	s.logger.InfoContext(ctx, "user_created", "login", user.Login, "user_id", user.ID)

	return &CreatedSummary{
		Email:       user.Email,
		Login:       user.Login,
		Authorities: nonNil(user.Authorities),
	}, nil
}

// EnsureAdmin creates an enabled administrator unless an account with that
// login already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, login, email, plain string) (bool, error) {
	req := RegisterRequest{Login: login, Email: email, Password: plain}
	if err := req.Validate(); err != nil {
		return false, err
	}

	hash, err := s.encoder.Encode(plain)
	if err != nil {
		return false, err
	}

	created := false
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if _, err := tx.GetUserByLogin(ctx, login); err == nil {
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		user := &models.User{Login: login, Email: email, PasswordHash: hash, Enabled: true}
		if err := tx.CreateUser(ctx, user); err != nil {
			return storeError(err)
		}
		created = true

		roles := []string{models.RoleAdmin, models.RoleUser}
		if err := ensureAuthorities(ctx, tx, roles); err != nil {
			return err
		}
		return s.grant(ctx, tx, user.ID, roles)
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.InfoContext(ctx, "admin_created", "login", login)
	}
	return created, nil
}

// ensureAuthorities creates the named roles that are missing from the store.
func ensureAuthorities(ctx context.Context, tx *repository.Repository, names []string) error {
	existing, err := tx.ListAuthorities(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if slices.ContainsFunc(existing, func(a models.Authority) bool { return a.Name == name }) {
			continue
		}
		if _, err := tx.CreateAuthority(ctx, name); err != nil {
			return fmt.Errorf("failed to create authority %s: %w", name, err)
		}
	}
	return nil
}
