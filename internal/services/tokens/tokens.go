// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package tokens issues and validates single-use, time-bounded tokens for
// registration confirmation and password reset.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/repository"
)

const (
	// TokenLength is the number of random bytes in a token.
	TokenLength = 32
	// RegistrationTTL is the default lifetime of a registration token.
	RegistrationTTL = 24 * time.Hour
	// PasswordResetTTL is the default lifetime of a password reset token.
	PasswordResetTTL = 120 * time.Minute
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

// Store is the persistence the issuer needs. *repository.Repository
// implements it, both on the pool and inside a transaction.
type Store interface {
	CreateToken(ctx context.Context, kind models.TokenKind, token *models.Token) error
	GetToken(ctx context.Context, kind models.TokenKind, tokenHash string) (*models.Token, error)
	DeleteToken(ctx context.Context, kind models.TokenKind, tokenHash string) (bool, error)
	ConsumeLiveToken(ctx context.Context, kind models.TokenKind, tokenHash string, now time.Time) (int64, error)
	DeleteUserTokens(ctx context.Context, kind models.TokenKind, userID int64) (int64, error)
	DeleteExpiredTokens(ctx context.Context, kind models.TokenKind, now time.Time) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Issuer creates and checks tokens. Only SHA256 hashes reach the store.
type Issuer struct {
	ttls map[models.TokenKind]time.Duration
	now  func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the lifetime of one token kind.
func WithTTL(kind models.TokenKind, ttl time.Duration) Option {
	return func(i *Issuer) {
		i.ttls[kind] = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer with the default lifetimes.
func NewIssuer(opts ...Option) *Issuer {
	i := &Issuer{
		ttls: map[models.TokenKind]time.Duration{
			models.TokenRegistration:  RegistrationTTL,
			models.TokenPasswordReset: PasswordResetTTL,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Now returns the issuer's current time.
func (i *Issuer) Now() time.Time {
	return i.now()
}

// TTL returns the lifetime of tokens of kind.
func (i *Issuer) TTL(kind models.TokenKind) time.Duration {
	return i.ttls[kind]
}

// Issue replaces any token of kind owned by userID with a fresh one and
// returns its plaintext. Run it inside a transaction so the replacement
// is atomic.
func (i *Issuer) Issue(ctx context.Context, store Store, kind models.TokenKind, userID int64) (string, error) {
	ttl, ok := i.ttls[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", repository.ErrUnknownTokenKind, kind)
	}

	plaintext, err := Generate()
	if err != nil {
		return "", err
	}

	if _, err := store.DeleteUserTokens(ctx, kind, userID); err != nil {
		return "", fmt.Errorf("failed to delete previous token: %w", err)
	}

	token := &models.Token{
		UserID:    userID,
		TokenHash: HashToken(plaintext),
		ExpiresAt: i.now().Add(ttl),
	}
	if err := store.CreateToken(ctx, kind, token); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return plaintext, nil
}

// Validate looks a token up and returns its owner. Lapsed tokens yield
// ErrTokenExpired and are left in place for the sweep.
func (i *Issuer) Validate(ctx context.Context, store Store, kind models.TokenKind, plaintext string) (*models.User, error) {
	token, err := store.GetToken(ctx, kind, HashToken(plaintext))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if token.Expired(i.now()) {
		return nil, ErrTokenExpired
	}

	user, err := store.GetUserByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token owner: %w", err)
	}
	return user, nil
}

// Consume deletes a token. It reports whether this call removed it, so a
// second call is a no-op returning false.
func (i *Issuer) Consume(ctx context.Context, store Store, kind models.TokenKind, plaintext string) (bool, error) {
	return store.DeleteToken(ctx, kind, HashToken(plaintext))
}

// ConsumeLive deletes a token only if it is still live and returns its
// owner ID. Missing, expired and already consumed tokens yield ErrTokenNotFound.
func (i *Issuer) ConsumeLive(ctx context.Context, store Store, kind models.TokenKind, plaintext string) (int64, error) {
	userID, err := store.ConsumeLiveToken(ctx, kind, HashToken(plaintext), i.now())
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrTokenNotFound
	}
	return userID, err
}

// Sweep deletes all tokens of kind that have expired.
func (i *Issuer) Sweep(ctx context.Context, store Store, kind models.TokenKind) (int64, error) {
	return store.DeleteExpiredTokens(ctx, kind, i.now())
}

// Generate returns a new random token as hex.
func Generate() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
