package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore runs allocation units of work against PostgreSQL. Writers lock the rooms they
// touch with SELECT ... FOR UPDATE; the partial unique indexes on room_allocations settle races
// between transactions that lock disjoint rooms.
type PostgresStore struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewPostgresStore constructs the store. observer may be nil.
func NewPostgresStore(db *sqlx.DB, observer QueryObserver) *PostgresStore {
	return &PostgresStore{db: db, observer: observer}
}

// WithinTx executes fn in a read-committed transaction and commits when it returns nil.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx AllocationTx) error) (err error) {
	start := time.Now()
	defer observe(s.observer, "allocation_tx", start)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin allocation tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &pgTx{pgQueries{ext: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return translateError(fmt.Errorf("commit allocation tx: %w", err))
	}
	return nil
}

// View executes fn against a read-only repeatable-read snapshot.
func (s *PostgresStore) View(ctx context.Context, fn func(ctx context.Context, r AllocationReader) error) error {
	start := time.Now()
	defer observe(s.observer, "allocation_view", start)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(ctx, &pgQueries{ext: tx})
}

// Ping checks connectivity for the readiness endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translateError classifies PostgreSQL failures into store-level errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505", "23514", "23503":
		return &ConstraintError{Constraint: pqErr.Constraint, Err: err}
	case "40001", "40P01":
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
