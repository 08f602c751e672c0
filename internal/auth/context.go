// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the authenticated principal through a request context.
package auth

import (
	"context"

	"codeberg.org/inw/serpback/internal/ctxkeys"
	"codeberg.org/inw/serpback/internal/services/account"
)

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *account.Principal) context.Context {
	return context.WithValue(ctx, ctxkeys.Principal{}, p)
}

// GetPrincipal returns the authenticated principal from the context, or nil.
func GetPrincipal(ctx context.Context) *account.Principal {
	if p, ok := ctx.Value(ctxkeys.Principal{}).(*account.Principal); ok {
		return p
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated principal.
func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipal(ctx) != nil
}
