// Package postgres provides PostgreSQL connectivity for jobmill with pooling,
// context-scoped transactions, and health checks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jobmill/jobmill/pkg/observability/logger"
	"github.com/jobmill/jobmill/pkg/store"
)

// Adapter provides PostgreSQL database connectivity with connection pooling.
type Adapter struct {
	db     *sql.DB
	logger logger.Logger
	config Config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// NewAdapter creates a new PostgreSQL adapter with connection pooling
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("PostgreSQL connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)

	return &Adapter{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// NewAdapterWithDB wraps an existing database handle. Tests use this with
// sqlmock connections.
func NewAdapterWithDB(db *sql.DB, cfg Config, log logger.Logger) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Adapter{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// DB returns the underlying *sql.DB for direct access when needed
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Ping verifies the database connection is alive
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck verifies the database connection is healthy with a timeout
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Error("PostgreSQL health check failed", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close gracefully closes the database connection
func (a *Adapter) Close() error {
	a.logger.Info("closing PostgreSQL connection")

	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close PostgreSQL connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// Begin starts a transaction and returns it as a store.Tx. The transaction's
// context carries the *sql.Tx so that statements issued through the adapter's
// executor methods with that context run inside the transaction.
func (a *Adapter) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &adapterTx{
		tx:  tx,
		ctx: context.WithValue(ctx, txContextKey, tx),
	}, nil
}

type adapterTx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *adapterTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *adapterTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		// database/sql marks the transaction done before the driver commit
		// runs, so a rollback after a failed commit reports ErrTxDone even
		// though nothing was committed. There is nothing left to roll back.
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (t *adapterTx) Context() context.Context {
	return t.ctx
}

// txContextKey is the key used to store transactions in context
type contextKey string

const txContextKey contextKey = "tx"

// GetTx extracts a transaction from the context, if present.
// This allows nested operations to use the same transaction.
func GetTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey).(*sql.Tx)
	return tx, ok
}

// ExecContext executes a statement with the transaction from context if
// available, otherwise the pooled connection.
func (a *Adapter) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()
	if tx, ok := GetTx(ctx); ok {
		return tx.ExecContext(queryCtx, query, args...)
	}
	return a.db.ExecContext(queryCtx, query, args...)
}

// QueryContext executes a query with the transaction from context if
// available, otherwise the pooled connection.
func (a *Adapter) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	queryCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()
	if tx, ok := GetTx(ctx); ok {
		return tx.QueryContext(queryCtx, query, args...)
	}
	return a.db.QueryContext(queryCtx, query, args...)
}

// QueryRowContext executes a single-row query with the transaction from
// context if available, otherwise the pooled connection. The query timeout is
// not applied here: the returned Row is scanned after this function returns,
// and canceling a derived context on return races row delivery with streaming
// drivers.
func (a *Adapter) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if tx, ok := GetTx(ctx); ok {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return a.db.QueryRowContext(ctx, query, args...)
}

func (a *Adapter) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.QueryTimeout)
}
