// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package password hashes and verifies user passwords.
package password

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Encoder is a one-way password hashing capability.
type Encoder interface {
	Encode(plain string) (string, error)
	Matches(plain, hash string) bool
}

// Bcrypt implements Encoder with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt encoder. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Encode hashes plain. Inputs longer than 72 bytes are rejected by bcrypt.
func (b *Bcrypt) Encode(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Matches reports whether plain hashes to hash.
func (b *Bcrypt) Matches(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Random returns a password nobody knows, for accounts that must go through
// a reset before their first login.
func Random() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	return hex.EncodeToString(b), nil
}
