// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/inw/serpback/internal/models"
	"github.com/vinovest/sqlx"
)

// ListAuthorities returns all known authorities ordered by name.
func (r *Repository) ListAuthorities(ctx context.Context) ([]models.Authority, error) {
	var authorities []models.Authority
	err := r.selectAll(ctx, &authorities, `SELECT id, name FROM authorities ORDER BY name`)
	return authorities, err
}

// GetAuthoritiesByName returns the authorities matching names.
// Names without a matching row are left out.
func (r *Repository) GetAuthoritiesByName(ctx context.Context, names []string) ([]models.Authority, error) {
	if len(names) == 0 {
		return []models.Authority{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, name FROM authorities WHERE name IN (?) ORDER BY name`, names)
	if err != nil {
		return nil, err
	}

	authorities := []models.Authority{}
	if err := r.selectAll(ctx, &authorities, query, args...); err != nil {
		return nil, err
	}
	return authorities, nil
}

// CreateAuthority adds a named role. An existing name yields ErrDuplicate.
func (r *Repository) CreateAuthority(ctx context.Context, name string) (*models.Authority, error) {
	authority := &models.Authority{Name: name}
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`INSERT INTO authorities (name) VALUES (?) RETURNING id`), name).
		Scan(&authority.ID)
	if err != nil {
		return nil, mapConstraintError(err)
	}
	return authority, nil
}

// GetUserAuthorities returns the sorted role names granted to a user.
func (r *Repository) GetUserAuthorities(ctx context.Context, userID int64) ([]string, error) {
	names := []string{}
	err := r.selectAll(ctx, &names,
		`SELECT a.name FROM authorities a
		 JOIN user_authorities ua ON ua.authority_id = a.id
		 WHERE ua.user_id = ?
		 ORDER BY a.name`, userID)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// SetUserAuthorities replaces the user's role set. Call it inside WithTx
// so the delete and the inserts land together.
func (r *Repository) SetUserAuthorities(ctx context.Context, userID int64, authorities []models.Authority) error {
	if _, err := r.exec(ctx, `DELETE FROM user_authorities WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, a := range authorities {
		if _, err := r.exec(ctx, `INSERT INTO user_authorities (user_id, authority_id) VALUES (?, ?)`, userID, a.ID); err != nil {
			return err
		}
	}
	return nil
}
