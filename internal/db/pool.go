// Package db holds the Postgres pool abstraction shared by stores and the
// helpers for classifying driver errors.
package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool used by stores. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SQLSTATE code for a missing column.
const codeUndefinedColumn = "42703"

// IsUndefinedColumn reports whether err was caused by a query referencing a
// column the schema does not have. Both Postgres and SQLite errors are
// recognized.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUndefinedColumn
	}
	return strings.Contains(err.Error(), "no such column")
}
