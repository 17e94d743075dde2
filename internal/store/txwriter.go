/**
 * @description
 * This file implements the transactional write path shared by all mutating repository
 * methods. Every unit of work runs inside a transaction opened at SERIALIZABLE
 * isolation; failures are classified into the closed outcome set declared in
 * repository.go before they leave this package.
 *
 * @notes
 * - Serializable isolation is the coordination mechanism for concurrent writers:
 *   conflicting transactions fail with ErrSerializationConflict instead of
 *   interleaving. The server surfaces the conflict rather than retrying, so the
 *   caller keeps control of retry/backoff policy.
 * - The connection is acquired and released by pgxpool exactly once per unit of
 *   work; the deferred rollback is a no-op after a successful commit.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes this service classifies.
const (
	pgCodeForeignKeyViolation  = "23503"
	pgCodeNotNullViolation     = "23502"
	pgCodeCheckViolation       = "23514"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeUndefinedTable       = "42P01"
)

// withSerializableTx runs fn inside a serializable transaction. Rollback always runs
// on failure paths before the connection returns to the pool; commit errors are
// classified the same way statement errors are (a serialization failure can surface
// at commit time).
func (r *PostgresRepository) withSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classifyWriteError(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return classifyWriteError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// classifyWriteError maps a database error onto the closed outcome set. Errors that
// are already classified (repository sentinels) pass through unchanged; anything
// unrecognized is returned as-is and treated as a generic write failure upstream.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrProjectNotFound, ErrApplicationNotFound,
		ErrProjectIntakeClosed, ErrSchemaIncompatible,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgCodeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.ConstraintName)
	case pgCodeSerializationFailure, pgCodeDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrSerializationConflict, pgErr.Message)
	case pgCodeNotNullViolation, pgCodeCheckViolation:
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.ColumnName)
	case pgCodeUndefinedTable:
		return fmt.Errorf("%w: %s", ErrRelationMissing, pgErr.Message)
	}
	return err
}
