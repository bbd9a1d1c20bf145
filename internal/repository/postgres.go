package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	repos  *Repositories
	logger *logging.Logger
}

// OpenPostgres opens a pooled connection using the lib/pq driver.
func OpenPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		repos:  newPostgresRepositories(db),
		logger: logging.NewLogger("postgres-store"),
	}
}

func newPostgresRepositories(db DBTX) *Repositories {
	return &Repositories{
		Carts:     NewPostgresCartRepository(db),
		Addresses: NewPostgresAddressRepository(db),
		Orders:    NewPostgresOrderRepository(db),
		Payments:  NewPostgresPaymentRepository(db),
		Books:     NewPostgresBookRepository(db),
		Ownership: NewPostgresOwnershipRepository(db),
		Sessions:  NewPostgresSessionRepository(db),
	}
}

func (s *PostgresStore) Repos() *Repositories {
	return s.repos
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", logging.Fields{"error": err.Error()})
		return errors.Internal("failed to begin transaction", err)
	}

	if err := fn(newPostgresRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", logging.Fields{"error": rbErr.Error()})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", logging.Fields{"error": err.Error()})
		return errors.Internal("failed to commit transaction", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// translateError maps driver errors onto the error taxonomy. Constraint
// violations keep their meaning; everything else becomes internal.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return errors.ErrNotFound
	}
	var appErr *errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &errors.Error{Kind: errors.KindConflict, Reason: "conflict", Message: fmt.Sprintf("%s: duplicate value", op), Err: err}
		case "23503":
			return &errors.Error{Kind: errors.KindNotFound, Reason: "not_found", Message: fmt.Sprintf("%s: referenced row does not exist", op), Err: err}
		case "23514", "22P02":
			return &errors.Error{Kind: errors.KindInvalidInput, Reason: "invalid_input", Message: fmt.Sprintf("%s: value rejected by constraint", op), Err: err}
		}
	}
	return errors.Internal(op, err)
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
