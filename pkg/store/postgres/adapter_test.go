package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jobmill/jobmill/pkg/observability/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.ErrorLevel,
		Format: logger.JSONFormat,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestNewAdapter_EmptyURL(t *testing.T) {
	_, err := NewAdapter(Config{URL: ""}, testLogger(t))
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestNewAdapterWithDB_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	if _, err := NewAdapterWithDB(nil, Config{}, testLogger(t)); err == nil {
		t.Fatal("expected error for nil db")
	}
	if _, err := NewAdapterWithDB(db, Config{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
	if _, err := NewAdapterWithDB(db, Config{}, testLogger(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetTx_MissingFromContext(t *testing.T) {
	if _, ok := GetTx(context.Background()); ok {
		t.Fatal("expected no transaction in bare context")
	}
}

func TestBegin_StoresTxInContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	adapter, err := NewAdapterWithDB(db, Config{}, testLogger(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	tx, err := adapter.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() returned error: %v", err)
	}
	if _, ok := GetTx(tx.Context()); !ok {
		t.Fatal("expected transaction in tx context")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBegin_RollbackPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	adapter, err := NewAdapterWithDB(db, Config{}, testLogger(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	tx, err := adapter.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() returned error: %v", err)
	}
	if _, err := adapter.ExecContext(tx.Context(), "INSERT INTO jobs (jobname) VALUES ($1)", "j"); err != nil {
		t.Fatalf("ExecContext() returned error: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBegin_RollbackAfterFailedCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit timeout"))

	adapter, err := NewAdapterWithDB(db, Config{}, testLogger(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	tx, err := adapter.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() returned error: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatal("expected commit failure")
	}
	// database/sql marks the tx done even when the driver commit fails, so
	// the follow-up rollback has nothing to undo and must not report an error.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() after failed commit returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestQueryRowContext_ScannableAfterReturn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	adapter, err := NewAdapterWithDB(db, Config{QueryTimeout: time.Second}, testLogger(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	// The row is scanned after QueryRowContext returns; the adapter must not
	// cancel the query context underneath the pending scan.
	row := adapter.QueryRowContext(context.Background(), "SELECT id FROM jobs WHERE id = $1", int64(7))
	var id int64
	if err := row.Scan(&id); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_job_status_job_id_start_time").WillReturnResult(sqlmock.NewResult(0, 0))

	adapter, err := NewAdapterWithDB(db, Config{}, testLogger(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	if err := adapter.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWithQueryTimeout_UsesConfigWhenNoDeadline(t *testing.T) {
	a := &Adapter{config: Config{QueryTimeout: 2 * time.Second}}

	ctx, cancel := a.withQueryTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline from query timeout")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
		t.Fatalf("unexpected remaining timeout: %v", remaining)
	}
}

func TestWithQueryTimeout_PreservesCallerDeadline(t *testing.T) {
	a := &Adapter{config: Config{QueryTimeout: 2 * time.Second}}
	parentCtx, parentCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer parentCancel()

	ctx, cancel := a.withQueryTimeout(parentCtx)
	defer cancel()

	parentDeadline, _ := parentCtx.Deadline()
	gotDeadline, _ := ctx.Deadline()
	if !gotDeadline.Equal(parentDeadline) {
		t.Fatalf("expected caller deadline to be preserved, got %v want %v", gotDeadline, parentDeadline)
	}
}

func TestWithQueryTimeout_ZeroTimeout(t *testing.T) {
	a := &Adapter{config: Config{QueryTimeout: 0}}
	ctx, cancel := a.withQueryTimeout(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline when query timeout is zero")
	}
}
