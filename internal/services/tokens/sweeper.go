// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokens

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/inw/serpback/internal/models"
)

// Sweeper purges expired tokens of every kind on a fixed interval.
type Sweeper struct {
	issuer   *Issuer
	store    Store
	interval time.Duration
}

// NewSweeper creates a sweeper. A non-positive interval means hourly.
func NewSweeper(issuer *Issuer, store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{issuer: issuer, store: store, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce purges every kind and returns the number of removed tokens.
// Failures are logged and do not stop the other kinds.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	var total int64
	for _, kind := range models.Kinds() {
		n, err := s.issuer.Sweep(ctx, s.store, kind)
		if err != nil {
			slog.Error("token_sweep_failed", "kind", kind, "error", err)
			continue
		}
		if n > 0 {
			slog.Info("tokens_swept", "kind", kind, "count", n)
		}
		total += n
	}
	return total
}
