package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists codes. Issue invalidates every unused code for the same
// (scope, identifier) before inserting, and Consume flips used=false to
// true as one compare-and-set.
type Store interface {
	Issue(ctx context.Context, code Code) error
	Consume(ctx context.Context, scope, identifier, digest string, now time.Time) (bool, error)
}

// PostgresStore stores codes in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed code store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	// Concurrent issues for one identifier queue here, so the second one's
	// invalidate sees the first one's insert.
	lockIdentifierSQL = `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`
	invalidateSQL     = `UPDATE otp_codes SET used = true
        WHERE scope = $1 AND identifier = $2 AND used = false`
	insertCodeSQL = `INSERT INTO otp_codes (id, scope, identifier, digest, expires_at, used, created_at)
        VALUES ($1, $2, $3, $4, $5, false, $6)`
)

// Issue invalidates prior codes and inserts code in one transaction, holding
// a per-identifier lock so at most one code stays live.
func (s *PostgresStore) Issue(ctx context.Context, code Code) error {
	id, err := uuid.Parse(code.ID)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockIdentifierSQL, code.Scope, code.Identifier); err != nil {
			return fmt.Errorf("lock identifier: %w", err)
		}
		if _, err := tx.Exec(ctx, invalidateSQL, code.Scope, code.Identifier); err != nil {
			return fmt.Errorf("invalidate codes: %w", err)
		}
		if _, err := tx.Exec(ctx, insertCodeSQL, id, code.Scope, code.Identifier, code.Digest,
			code.ExpiresAt.UTC(), code.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert code: %w", err)
		}
		return nil
	})
}

// Consume marks the matching live code used. It reports false when no live
// code matched.
func (s *PostgresStore) Consume(ctx context.Context, scope, identifier, digest string, now time.Time) (bool, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `UPDATE otp_codes SET used = true
        WHERE scope = $1 AND identifier = $2 AND digest = $3 AND used = false AND expires_at > $4
        RETURNING id`, scope, identifier, digest, now.UTC()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
