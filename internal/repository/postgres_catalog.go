package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// PostgresBookRepository reads the catalog table owned by the catalog service.
type PostgresBookRepository struct {
	db DBTX
}

func NewPostgresBookRepository(db DBTX) *PostgresBookRepository {
	return &PostgresBookRepository{db: db}
}

func (r *PostgresBookRepository) FindBookByID(ctx context.Context, id int64) (*models.Book, error) {
	var b models.Book
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, author, price, COALESCE(cover_url, '') FROM books WHERE id = $1`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.CoverURL)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("book_not_found", "book not found")
	}
	if err != nil {
		return nil, translateError(err, "find book")
	}
	return &b, nil
}

type PostgresOwnershipRepository struct {
	db     DBTX
	logger *logging.Logger
}

func NewPostgresOwnershipRepository(db DBTX) *PostgresOwnershipRepository {
	return &PostgresOwnershipRepository{
		db:     db,
		logger: logging.NewLogger("ownership-repository"),
	}
}

func (r *PostgresOwnershipRepository) Grant(ctx context.Context, userID string, bookIDs []int64) error {
	if len(bookIDs) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_books (user_id, book_id) SELECT $1, unnest($2::bigint[])`,
		userID, pq.Array(bookIDs))
	if err != nil {
		err = translateError(err, "grant ownership")
		if errors.KindOf(err) == errors.KindConflict {
			return errors.NewConflict("already_owned", "one or more books are already owned")
		}
		r.logger.Error("Failed to grant ownership", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
		return err
	}

	r.logger.Info("Ownership granted", logging.Fields{
		"user_id": userID,
		"books":   len(bookIDs),
	})
	return nil
}

func (r *PostgresOwnershipRepository) Owns(ctx context.Context, userID string, bookID int64) (bool, error) {
	var owned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_books WHERE user_id = $1 AND book_id = $2)`, userID, bookID,
	).Scan(&owned)
	if err != nil {
		return false, translateError(err, "check ownership")
	}
	return owned, nil
}

type PostgresSessionRepository struct {
	db DBTX
}

func NewPostgresSessionRepository(db DBTX) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

const selectSession = `SELECT user_id, shipping_address_id, order_id, updated_at FROM checkout_sessions WHERE user_id = $1`

func (r *PostgresSessionRepository) Get(ctx context.Context, userID string) (*models.CheckoutSession, error) {
	s, err := r.scan(r.db.QueryRowContext(ctx, selectSession, userID))
	if err == sql.ErrNoRows {
		return &models.CheckoutSession{UserID: userID}, nil
	}
	if err != nil {
		return nil, translateError(err, "get checkout session")
	}
	return s, nil
}

func (r *PostgresSessionRepository) Lock(ctx context.Context, userID string) (*models.CheckoutSession, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkout_sessions (user_id, updated_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, time.Now().UTC())
	if err != nil {
		return nil, translateError(err, "create checkout session")
	}

	s, err := r.scan(r.db.QueryRowContext(ctx, selectSession+" FOR UPDATE", userID))
	if err != nil {
		return nil, translateError(err, "lock checkout session")
	}
	return s, nil
}

func (r *PostgresSessionRepository) scan(row *sql.Row) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	var addrID sql.NullInt64
	var orderID sql.NullString

	if err := row.Scan(&s.UserID, &addrID, &orderID, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if addrID.Valid {
		id := addrID.Int64
		s.ShippingAddressID = &id
	}
	if orderID.Valid {
		s.OrderID = orderID.String
	}
	return &s, nil
}

func (r *PostgresSessionRepository) SetShippingAddress(ctx context.Context, userID string, addressID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_sessions (user_id, shipping_address_id, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET shipping_address_id = EXCLUDED.shipping_address_id, updated_at = EXCLUDED.updated_at
	`, userID, addressID, time.Now().UTC())
	return translateError(err, "set session address")
}

func (r *PostgresSessionRepository) SetOrder(ctx context.Context, userID, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_sessions (user_id, order_id, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET order_id = EXCLUDED.order_id, updated_at = EXCLUDED.updated_at
	`, userID, orderID, time.Now().UTC())
	return translateError(err, "set session order")
}

func (r *PostgresSessionRepository) ClearOrder(ctx context.Context, userID, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET order_id = NULL, updated_at = $3 WHERE user_id = $1 AND order_id = $2`,
		userID, orderID, time.Now().UTC())
	return translateError(err, "clear session order")
}
