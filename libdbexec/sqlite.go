package libdbexec

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteDBManager backs the local CLI state file.
type sqliteDBManager struct {
	dbInstance *sql.DB
}

// NewSQLiteDBManager opens the database at path, creating its parent
// directory, enabling foreign keys and applying schema.
func NewSQLiteDBManager(ctx context.Context, path string, schema string) (DBManager, error) {
	if err := ensureSQLiteParentDir(path); err != nil {
		return nil, fmt.Errorf("sqlite parent dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", translateSQLiteError(err))
	}
	// A single connection keeps PRAGMA state and serializes writers.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite connection failed: %w", translateSQLiteError(err))
	}
	if _, err = db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite foreign_keys pragma failed: %w", translateSQLiteError(err))
	}
	if schema != "" {
		if _, err = db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize sqlite schema: %w", translateSQLiteError(err))
		}
	}
	return &sqliteDBManager{dbInstance: db}, nil
}

func (sm *sqliteDBManager) WithoutTransaction() Exec {
	return &txAwareDB{db: sm.dbInstance, errTranslate: translateSQLiteError}
}

func (sm *sqliteDBManager) WithTransaction(ctx context.Context, onRollback ...func()) (Exec, CommitTx, ReleaseTx, error) {
	return beginTx(ctx, sm.dbInstance, translateSQLiteError, onRollback)
}

func (sm *sqliteDBManager) Close() error {
	if sm.dbInstance != nil {
		return sm.dbInstance.Close()
	}
	return nil
}

// translateSQLiteError matches constraint failures by message; the
// driver does not export typed constraint errors.
func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if mapped, ok := translateCommon(err); ok {
		return mapped
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint"):
		return ErrUniqueViolation
	case strings.Contains(s, "FOREIGN KEY constraint"):
		return ErrForeignKeyViolation
	case strings.Contains(s, "NOT NULL constraint"):
		return ErrNotNullViolation
	case strings.Contains(s, "CHECK constraint"):
		return ErrCheckViolation
	case strings.Contains(s, "no such table"):
		return ErrUndefinedTable
	case strings.Contains(s, "no such column"):
		return ErrUndefinedColumn
	}
	return fmt.Errorf("libdb: sqlite error: %w", err)
}

// ensureSQLiteParentDir skips in-memory databases and strips the query
// part of file: URIs.
func ensureSQLiteParentDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file::memory") {
		return nil
	}
	fsPath := path
	if strings.HasPrefix(fsPath, "file:") {
		fsPath = strings.TrimPrefix(fsPath, "file:")
		if before, _, ok := strings.Cut(fsPath, "?"); ok {
			fsPath = before
		}
	}
	dir := filepath.Dir(fsPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
