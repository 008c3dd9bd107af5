package libdbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

type postgresDBManager struct {
	dbInstance *sql.DB
}

// NewPostgresDBManager opens dsn, pings it and applies schema when non-empty.
func NewPostgresDBManager(ctx context.Context, dsn string, schema string) (DBManager, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", translateError(err))
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection failed: %w", translateError(err))
	}
	if schema != "" {
		if _, err = db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", translateError(err))
		}
	}
	return &postgresDBManager{dbInstance: db}, nil
}

func (sm *postgresDBManager) WithoutTransaction() Exec {
	return &txAwareDB{db: sm.dbInstance, errTranslate: translateError}
}

func (sm *postgresDBManager) WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error) {
	return beginTx(ctx, sm.dbInstance, translateError, onRollback)
}

func (sm *postgresDBManager) Close() error {
	if sm.dbInstance == nil {
		return nil
	}
	slog.Debug("closing postgres connection pool")
	return sm.dbInstance.Close()
}

// translateError maps lib/pq SQLSTATE codes to package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if mapped, ok := translateCommon(err); ok {
		return mapped
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("libdb: unexpected database error: %w", err)
	}
	switch pqErr.Code {
	case "23505":
		return ErrUniqueViolation
	case "23503":
		return ErrForeignKeyViolation
	case "23502":
		return ErrNotNullViolation
	case "23514":
		return ErrCheckViolation
	case "40P01":
		return ErrDeadlockDetected
	case "40001":
		return ErrSerializationFailure
	case "55P03":
		return ErrLockNotAvailable
	case "57014":
		return fmt.Errorf("%w: %s", ErrQueryCanceled, pqErr.Message)
	case "22001":
		return ErrDataTruncation
	case "22003":
		return ErrNumericOutOfRange
	case "22P02":
		return fmt.Errorf("%w: %s", ErrInvalidInputSyntax, pqErr.Message)
	case "42703":
		return ErrUndefinedColumn
	case "42P01":
		return ErrUndefinedTable
	}
	if pqErr.Code.Class() == "23" {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
	}
	return fmt.Errorf("libdb: postgres error: code=%s detail=%q message=%q: %w",
		pqErr.Code, pqErr.Detail, pqErr.Message, err)
}
