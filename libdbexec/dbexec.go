// Package libdbexec hides the database/sql driver behind a small executor
// interface so stores run unchanged inside or outside a transaction.
package libdbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("libdb: not found")
	ErrTxFailed             = errors.New("libdb: transaction failed")
	ErrQueryCanceled        = errors.New("libdb: query canceled")
	ErrUniqueViolation      = errors.New("libdb: unique constraint violation")
	ErrForeignKeyViolation  = errors.New("libdb: foreign key violation")
	ErrNotNullViolation     = errors.New("libdb: not null violation")
	ErrCheckViolation       = errors.New("libdb: check constraint violation")
	ErrConstraintViolation  = errors.New("libdb: constraint violation")
	ErrDeadlockDetected     = errors.New("libdb: deadlock detected")
	ErrSerializationFailure = errors.New("libdb: serialization failure")
	ErrLockNotAvailable     = errors.New("libdb: lock not available")
	ErrDataTruncation       = errors.New("libdb: data truncation")
	ErrNumericOutOfRange    = errors.New("libdb: numeric value out of range")
	ErrInvalidInputSyntax   = errors.New("libdb: invalid input syntax")
	ErrUndefinedColumn      = errors.New("libdb: undefined column")
	ErrUndefinedTable       = errors.New("libdb: undefined table")
)

// QueryRower is the single-row result of QueryRowContext.
type QueryRower interface {
	Scan(dest ...any) error
}

// Exec is implemented by both pooled connections and transactions.
type Exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) QueryRower
}

// CommitTx commits the transaction it was returned with.
type CommitTx func(ctx context.Context) error

// ReleaseTx rolls back unless committed; safe to defer unconditionally.
type ReleaseTx func() error

// DBManager opens executors on a database.
type DBManager interface {
	WithoutTransaction() Exec
	WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error)
	Close() error
}

func beginTx(ctx context.Context, db *sql.DB, translate func(error) error, onRollback []func()) (Exec, CommitTx, ReleaseTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, func() error { return nil }, fmt.Errorf("%w: begin transaction failed: %w", ErrTxFailed, translate(err))
	}

	committed := false
	commit := func(commitCtx context.Context) error {
		if ctxErr := commitCtx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: context error before commit: %w", ErrTxFailed, ctxErr)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit failed: %w", ErrTxFailed, translate(err))
		}
		committed = true
		return nil
	}
	release := func() error {
		rollbackErr := tx.Rollback()
		if !committed {
			for _, f := range onRollback {
				if f != nil {
					f()
				}
			}
		}
		// Rollback after Commit reports ErrTxDone; that is the normal deferred path.
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: rollback failed: %w", ErrTxFailed, translate(rollbackErr))
		}
		return nil
	}
	return &txAwareDB{tx: tx, errTranslate: translate}, commit, release, nil
}

// txAwareDB delegates to a *sql.DB or *sql.Tx and maps driver errors
// to the package sentinels with a driver-specific translator.
type txAwareDB struct {
	db           *sql.DB
	tx           *sql.Tx
	errTranslate func(error) error
}

func (s *txAwareDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	switch {
	case s.tx != nil:
		res, err = s.tx.ExecContext(ctx, query, args...)
	case s.db != nil:
		res, err = s.db.ExecContext(ctx, query, args...)
	default:
		return nil, errors.New("libdb: Exec called on uninitialized executor")
	}
	return res, s.errTranslate(err)
}

func (s *txAwareDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error
	switch {
	case s.tx != nil:
		rows, err = s.tx.QueryContext(ctx, query, args...)
	case s.db != nil:
		rows, err = s.db.QueryContext(ctx, query, args...)
	default:
		return nil, errors.New("libdb: Query called on uninitialized executor")
	}
	if err != nil {
		return nil, s.errTranslate(err)
	}
	return rows, nil
}

func (s *txAwareDB) QueryRowContext(ctx context.Context, query string, args ...any) QueryRower {
	switch {
	case s.tx != nil:
		return &row{inner: s.tx.QueryRowContext(ctx, query, args...), errTranslate: s.errTranslate}
	case s.db != nil:
		return &row{inner: s.db.QueryRowContext(ctx, query, args...), errTranslate: s.errTranslate}
	}
	return &row{err: errors.New("libdb: QueryRow called on uninitialized executor")}
}

type row struct {
	inner        *sql.Row
	err          error
	errTranslate func(error) error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.errTranslate(r.inner.Scan(dest...))
}

// translateCommon maps errors that look the same for every driver.
// ok is false when the caller should continue with driver-specific checks.
func translateCommon(err error) (error, bool) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", ErrNotFound, err), true
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrQueryCanceled, context.Canceled), true
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrQueryCanceled, context.DeadlineExceeded), true
	}
	return nil, false
}
