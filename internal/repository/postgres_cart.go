package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// PostgresCartRepository implements CartRepository using PostgreSQL.
type PostgresCartRepository struct {
	db     DBTX
	logger *logging.Logger
}

func NewPostgresCartRepository(db DBTX) *PostgresCartRepository {
	return &PostgresCartRepository{
		db:     db,
		logger: logging.NewLogger("cart-repository"),
	}
}

// GetOrCreateCart relies on the UNIQUE(user_id) constraint so concurrent
// first calls converge on the same row.
func (r *PostgresCartRepository) GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	r.logger.Debug("Resolving cart", logging.Fields{"user_id": userID})

	query := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at
	`

	var cart models.Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to resolve cart", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, translateError(err, "get or create cart")
	}

	return &cart, nil
}

func (r *PostgresCartRepository) GetByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		return nil, translateError(err, "get cart")
	}
	return &cart, nil
}

func (r *PostgresCartRepository) AddOrUpdateItem(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, errors.NewValidationError("quantity", "quantity must be a positive integer")
	}

	r.logger.Debug("Adding cart item", logging.Fields{
		"cart_id":  cartID,
		"book_id":  bookID,
		"quantity": quantity,
	})

	query := `
		INSERT INTO cart_items (cart_id, book_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, book_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, book_id, quantity, added_at
	`

	var item models.CartItem
	err := r.db.QueryRowContext(ctx, query, cartID, bookID, quantity).Scan(
		&item.ID, &item.CartID, &item.BookID, &item.Quantity, &item.AddedAt,
	)
	if err != nil {
		r.logger.Error("Failed to add cart item", logging.Fields{
			"cart_id": cartID,
			"book_id": bookID,
			"error":   err.Error(),
		})
		return nil, translateError(err, "add cart item")
	}

	r.logger.Info("Cart item saved", logging.Fields{
		"cart_id":  cartID,
		"book_id":  bookID,
		"quantity": item.Quantity,
	})
	return &item, nil
}

func (r *PostgresCartRepository) ListItems(ctx context.Context, cartID int64) ([]*models.CartLine, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.book_id, ci.quantity, ci.added_at,
		       COALESCE(b.title, ''), COALESCE(b.author, ''), COALESCE(b.price, 0),
		       COALESCE(b.cover_url, ''), b.id IS NULL
		FROM cart_items ci
		LEFT JOIN books b ON b.id = ci.book_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at DESC, ci.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		r.logger.Error("Failed to list cart items", logging.Fields{
			"cart_id": cartID,
			"error":   err.Error(),
		})
		return nil, translateError(err, "list cart items")
	}
	defer rows.Close()

	lines := make([]*models.CartLine, 0)
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(
			&l.ID, &l.CartID, &l.BookID, &l.Quantity, &l.AddedAt,
			&l.Title, &l.Author, &l.Price, &l.CoverURL, &l.Unavailable,
		); err != nil {
			return nil, translateError(err, "scan cart item")
		}
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list cart items")
	}
	return lines, nil
}

func (r *PostgresCartRepository) SetItemQuantity(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error) {
	if quantity < 0 {
		return nil, errors.NewValidationError("quantity", "quantity must not be negative")
	}
	if quantity == 0 {
		removed, err := r.RemoveItem(ctx, cartID, bookID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, errors.ErrNotFound
		}
		return nil, nil
	}

	query := `
		UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND book_id = $2
		RETURNING id, cart_id, book_id, quantity, added_at
	`

	var item models.CartItem
	err := r.db.QueryRowContext(ctx, query, cartID, bookID, quantity).Scan(
		&item.ID, &item.CartID, &item.BookID, &item.Quantity, &item.AddedAt,
	)
	if err != nil {
		return nil, translateError(err, "set cart item quantity")
	}

	r.logger.Info("Cart item quantity set", logging.Fields{
		"cart_id":  cartID,
		"book_id":  bookID,
		"quantity": quantity,
	})
	return &item, nil
}

func (r *PostgresCartRepository) RemoveItem(ctx context.Context, cartID, bookID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND book_id = $2`, cartID, bookID)
	if err != nil {
		r.logger.Error("Failed to remove cart item", logging.Fields{
			"cart_id": cartID,
			"book_id": bookID,
			"error":   err.Error(),
		})
		return false, translateError(err, "remove cart item")
	}
	return rowsAffected(res) > 0, nil
}

func (r *PostgresCartRepository) Clear(ctx context.Context, cartID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, translateError(err, "clear cart")
	}
	n := rowsAffected(res)
	r.logger.Info("Cart cleared", logging.Fields{"cart_id": cartID, "removed": n})
	return n, nil
}
