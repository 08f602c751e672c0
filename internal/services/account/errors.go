// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"errors"
	"fmt"
	"strings"

	"codeberg.org/inw/serpback/internal/repository"
)

var (
	ErrLoginTaken                   = errors.New("login already registered")
	ErrEmailTaken                   = errors.New("email already registered")
	ErrInvalidInput                 = errors.New("invalid input")
	ErrUserNotFound                 = errors.New("user not found")
	ErrRegistrationAlreadyConfirmed = errors.New("registration already confirmed")
	ErrRegistrationTimeout          = errors.New("registration confirmation timed out")
	ErrBadCredentials               = errors.New("bad credentials")
	ErrUserNotEnabled               = errors.New("user not enabled")
)

// InvalidInputError lists the request fields that failed validation.
type InvalidInputError struct {
	Fields []string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %v", e.Err)
	}
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// CredentialError is a failed login attempt for Identifier. Err is
// ErrBadCredentials or ErrUserNotEnabled.
type CredentialError struct {
	Identifier string
	Err        error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("authentication of %q failed: %v", e.Identifier, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// storeError translates repository errors into account errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrLoginTaken):
		return ErrLoginTaken
	case errors.Is(err, repository.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound
	default:
		return err
	}
}
