// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"codeberg.org/inw/serpback/internal/repository"
	"codeberg.org/inw/serpback/internal/services/account"
	"codeberg.org/inw/serpback/internal/services/notify"
	"codeberg.org/inw/serpback/internal/services/password"
	"codeberg.org/inw/serpback/internal/services/tokens"
	"codeberg.org/inw/serpback/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func (r *recorder) last(t *testing.T) notify.Event {
	t.Helper()
	events := r.all()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

type fixture struct {
	svc    *account.Service
	repo   *repository.Repository
	issuer *tokens.Issuer
	events *recorder
	clock  *clock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	clk := &clock{now: time.Now().UTC()}
	issuer := tokens.NewIssuer(tokens.WithClock(clk.Now))
	events := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := account.NewService(repo, issuer, password.NewBcrypt(bcrypt.MinCost), events, logger)
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, issuer: issuer, events: events, clock: clk}
}

func (f *fixture) register(t *testing.T, login string) notify.Event {
	t.Helper()
	_, err := f.svc.Register(context.Background(), account.RegisterRequest{
		Login:    login,
		Email:    login + "@example.com",
		Password: testutil.TestPassword,
	})
	require.NoError(t, err)
	return f.events.last(t)
}
