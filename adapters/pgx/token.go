package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lborres/tanod/core"
)

func (a *Adapter) ReplaceToken(ctx context.Context, t *core.Token) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx)

	// Supersede-then-insert in one transaction: either the old token is
	// dead and the new one live, or neither happened.
	_, err = tx.Exec(ctx,
		`UPDATE tokens SET consumed = true
		 WHERE subject_id = $1 AND kind = $2 AND NOT consumed`,
		t.SubjectID, t.Kind,
	)
	if err != nil {
		return mapError(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO tokens (id, subject_id, kind, value_hash, issued_at, expires_at, consumed)
		 VALUES ($1, $2, $3, $4, $5, $6, false)`,
		t.ID, t.SubjectID, t.Kind, t.ValueHash, t.IssuedAt, t.ExpiresAt,
	)
	if err != nil {
		return mapError(err)
	}

	return mapError(tx.Commit(ctx))
}

func (a *Adapter) ConsumeToken(ctx context.Context, valueHash string, kind core.TokenKind, now time.Time) (string, error) {
	// Conditional update: under concurrent attempts exactly one caller
	// flips the row, the rest fall through to the classification query.
	var subjectID string
	err := a.pool.QueryRow(ctx,
		`UPDATE tokens SET consumed = true
		 WHERE value_hash = $1 AND kind = $2 AND NOT consumed AND expires_at > $3
		 RETURNING subject_id`,
		valueHash, kind, now,
	).Scan(&subjectID)
	if err == nil {
		return subjectID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", mapError(err)
	}

	// Distinguish "already used" from "unknown or expired".
	var consumed bool
	err = a.pool.QueryRow(ctx,
		`SELECT consumed FROM tokens WHERE value_hash = $1 AND kind = $2`,
		valueHash, kind,
	).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", core.ErrTokenInvalid
		}
		return "", mapError(err)
	}

	if consumed {
		return "", core.ErrTokenConsumed
	}
	return "", core.ErrTokenInvalid
}
