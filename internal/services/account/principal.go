// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import (
	"slices"

	"codeberg.org/inw/serpback/internal/models"
)

// Principal is the authenticated identity of a request. It is resolved
// explicitly per request and passed along, never kept in global state.
type Principal struct {
	UserID       int64    `json:"-"`
	Login        string   `json:"login"`
	PasswordHash string   `json:"-"`
	Authorities  []string `json:"authorities"`
}

func newPrincipal(u *models.User) *Principal {
	return &Principal{
		UserID:       u.ID,
		Login:        u.Login,
		PasswordHash: u.PasswordHash,
		Authorities:  nonNil(u.Authorities),
	}
}

// HasAuthority reports whether the principal holds the named role.
func (p *Principal) HasAuthority(name string) bool {
	return p != nil && slices.Contains(p.Authorities, name)
}

// IsAdmin reports whether the principal holds ROLE_ADMIN.
func (p *Principal) IsAdmin() bool {
	return p.HasAuthority(models.RoleAdmin)
}

// CanAccess reports whether the principal may read or change the account
// with the given login: admins may access any account, users their own.
func (p *Principal) CanAccess(login string) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || p.Login == login
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
