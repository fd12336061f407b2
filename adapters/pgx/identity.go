package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lborres/tanod/core"
)

const identityColumns = `id, created_at, updated_at, last_login_at`

func (a *Adapter) GetIdentityByID(ctx context.Context, id string) (*core.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	identity := &core.Identity{}
	err := a.pool.QueryRow(ctx, q, id).Scan(
		&identity.ID, &identity.CreatedAt, &identity.UpdatedAt, &identity.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, mapError(err)
	}

	if err := a.loadMethods(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (a *Adapter) GetIdentityByMethodKey(ctx context.Context, strategy, key string) (*core.Identity, error) {
	q := `SELECT i.id, i.created_at, i.updated_at, i.last_login_at
	      FROM identities i
	      JOIN methods m ON m.identity_id = i.id
	      WHERE m.strategy = $1 AND m.key = $2`

	identity := &core.Identity{}
	err := a.pool.QueryRow(ctx, q, strategy, key).Scan(
		&identity.ID, &identity.CreatedAt, &identity.UpdatedAt, &identity.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, mapError(err)
	}

	if err := a.loadMethods(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (a *Adapter) CreateIdentityWithMethod(ctx context.Context, m *core.Method) (*core.Identity, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	defer tx.Rollback(ctx)

	identity := &core.Identity{}
	err = tx.QueryRow(ctx,
		`INSERT INTO identities DEFAULT VALUES RETURNING `+identityColumns,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt, &identity.LastLoginAt)
	if err != nil {
		return nil, mapError(err)
	}

	method := *m
	method.IdentityID = identity.ID
	err = tx.QueryRow(ctx,
		`INSERT INTO methods (identity_id, strategy, key, password_hash, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		method.IdentityID, method.Strategy, method.Key, method.PasswordHash, method.Verified,
	).Scan(&method.CreatedAt, &method.UpdatedAt)
	if err != nil {
		// Unique violation on (strategy, key) aborts the transaction,
		// so the identity row never becomes visible.
		return nil, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}

	identity.Methods = []*core.Method{&method}
	return identity, nil
}

func (a *Adapter) AttachMethod(ctx context.Context, identityID string, m *core.Method) error {
	var exists bool
	err := a.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM identities WHERE id = $1)`, identityID,
	).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return core.ErrIdentityNotFound
	}

	method := *m
	method.IdentityID = identityID
	err = a.pool.QueryRow(ctx,
		`INSERT INTO methods (identity_id, strategy, key, password_hash, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		method.IdentityID, method.Strategy, method.Key, method.PasswordHash, method.Verified,
	).Scan(&method.CreatedAt, &method.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	*m = method
	return nil
}

func (a *Adapter) UpdateMethod(ctx context.Context, identityID, strategy string, patch core.MethodPatch) error {
	q := `UPDATE methods
	      SET password_hash = COALESCE($1, password_hash),
	          verified      = COALESCE($2, verified),
	          updated_at    = now()
	      WHERE identity_id = $3 AND strategy = $4
	      RETURNING updated_at`

	var updatedAt time.Time
	err := a.pool.QueryRow(ctx, q, patch.PasswordHash, patch.Verified, identityID, strategy).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrMethodNotFound
		}
		return mapError(err)
	}
	return nil
}

func (a *Adapter) TouchLastLogin(ctx context.Context, identityID string, at time.Time) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE identities SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, identityID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrIdentityNotFound
	}
	return nil
}

func (a *Adapter) loadMethods(ctx context.Context, identity *core.Identity) error {
	q := `SELECT identity_id, strategy, key, password_hash, verified, created_at, updated_at
	      FROM methods WHERE identity_id = $1`

	rows, err := a.pool.Query(ctx, q, identity.ID)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &core.Method{}
		if err := rows.Scan(
			&m.IdentityID, &m.Strategy, &m.Key, &m.PasswordHash, &m.Verified, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return mapError(err)
		}
		identity.Methods = append(identity.Methods, m)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load methods: %w", mapError(err))
	}
	return nil
}
