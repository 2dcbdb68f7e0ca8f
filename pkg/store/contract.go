// Package store defines the narrow persistence capabilities the service
// layers depend on, so tests can substitute fakes without a database.
package store

import (
	"context"
	"database/sql"
)

// SQLExecutor defines the interface for executing SQL queries.
// This can be a *sql.DB, *sql.Tx, or any adapter that provides these methods.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// UnitOfWork provides the ability to begin transactions.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx represents an active database transaction. Statements issued through an
// SQLExecutor with the transaction's Context() run inside the transaction.
type Tx interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the context associated with this transaction
	Context() context.Context
}
