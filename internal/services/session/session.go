// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues and reads the signed cookie that identifies a
// logged-in user between requests.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/inw/serpback/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64     `json:"uid"`
	Username  string    `json:"usr"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager creates and verifies session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager creates a Manager. An empty hash key generates a random one,
// which invalidates all sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(keyLength)
		if hashKey == nil {
			return nil, errors.New("generating session hash key failed")
		}
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}

	return key, nil
}

// Create returns a session cookie for the user.
func (m *Manager) Create(userID int64, username string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second).UTC(),
	}

	value, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return m.cookie(value, m.maxAge), nil
}

// Parse reads the session from r. A missing, tampered or expired cookie
// yields nil without an error.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // invalid cookies are treated as anonymous
	}

	if !data.ExpiresAt.After(time.Now()) || data.UserID == 0 {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that removes the session from the browser.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
