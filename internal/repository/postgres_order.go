package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

const orderColumns = `id, user_id, total, shipping_address_id, status, payment_id, created_at, updated_at`

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     DBTX
	logger *logging.Logger
}

func NewPostgresOrderRepository(db DBTX) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logging.NewLogger("order-repository"),
	}
}

// Create inserts a new order. ID, status and timestamps are filled in when empty.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = generateOrderID()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	r.logger.Debug("Creating new order", logging.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	})

	query := `
		INSERT INTO orders (id, user_id, total, shipping_address_id, status, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Total,
		nullInt64(order.ShippingAddressID),
		order.Status,
		order.PaymentID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", logging.Fields{
			"user_id": order.UserID,
			"error":   err.Error(),
		})
		return translateError(err, "create order")
	}

	r.logger.Info("Order created successfully", logging.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.Total.String(),
	})
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.logger.Debug("Fetching order by ID", logging.Fields{"order_id": id})

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("order_not_found", "order not found")
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, translateError(err, "get order")
	}
	return order, nil
}

func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, translateError(err, "list orders")
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, translateError(err, "scan order")
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list orders")
	}

	r.logger.Info("Orders listed", logging.Fields{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

// AddItems must run inside a transaction: the row lock taken on the order
// serializes concurrent confirmations until commit.
func (r *PostgresOrderRepository) AddItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	if len(items) == 0 {
		return errors.NewValidationError("items", "order must contain at least one item")
	}

	var status models.OrderStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("order_not_found", "order not found")
	}
	if err != nil {
		return translateError(err, "lock order")
	}
	if status != models.OrderStatusPaymentSuccess {
		return errors.NewInvalidState("invalid_order_status",
			fmt.Sprintf("items can only be added to a paid order, current status is %s", status))
	}

	bookIDs := make([]int64, len(items))
	quantities := make([]int64, len(items))
	prices := make([]string, len(items))
	for i, item := range items {
		bookIDs[i] = item.BookID
		quantities[i] = int64(item.Quantity)
		prices[i] = item.UnitPrice.String()
	}

	query := `
		INSERT INTO order_items (order_id, book_id, quantity, unit_price)
		SELECT $1, t.book_id, t.quantity, t.unit_price
		FROM unnest($2::bigint[], $3::int[], $4::numeric[]) AS t(book_id, quantity, unit_price)
	`
	res, err := r.db.ExecContext(ctx, query, orderID, pq.Array(bookIDs), pq.Array(quantities), pq.Array(prices))
	if err != nil {
		r.logger.Error("Failed to insert order items", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return translateError(err, "insert order items")
	}
	if n := rowsAffected(res); n != int64(len(items)) {
		return errors.Internal("insert order items", fmt.Errorf("inserted %d of %d items", n, len(items)))
	}

	r.logger.Info("Order items inserted", logging.Fields{
		"order_id": orderID,
		"count":    len(items),
	})
	return nil
}

func (r *PostgresOrderRepository) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, book_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, translateError(err, "list order items")
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, translateError(err, "scan order item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list order items")
	}
	return items, nil
}

func (r *PostgresOrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus, paymentID string) error {
	if !models.CanTransition(from, to) {
		return errors.NewInvalidState("invalid_transition",
			fmt.Sprintf("cannot move order from %s to %s", from, to))
	}

	r.logger.Debug("Transitioning order status", logging.Fields{
		"order_id": id,
		"from":     from,
		"to":       to,
	})

	query := `
		UPDATE orders
		SET status = $3, payment_id = COALESCE(NULLIF($4, ''), payment_id), updated_at = $5
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to, paymentID, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update order status", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return translateError(err, "update order status")
	}
	if rowsAffected(res) == 0 {
		r.logger.Warn("Order status changed concurrently", logging.Fields{
			"order_id": id,
			"expected": from,
		})
		return errors.ErrStaleStatus
	}

	r.logger.Info("Order status updated", logging.Fields{
		"order_id":   id,
		"new_status": to,
	})
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var shippingAddressID sql.NullInt64
	var paymentID sql.NullString

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&shippingAddressID,
		&order.Status,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if shippingAddressID.Valid {
		id := shippingAddressID.Int64
		order.ShippingAddressID = &id
	}
	if paymentID.Valid {
		order.PaymentID = paymentID.String
	}
	return &order, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL.
type PostgresPaymentRepository struct {
	db     DBTX
	logger *logging.Logger
}

func NewPostgresPaymentRepository(db DBTX) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:     db,
		logger: logging.NewLogger("payment-repository"),
	}
}

const paymentColumns = `id, user_id, order_id, method, amount, status, transaction_id, created_at`

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = generatePaymentID()
	}
	p.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO payments (id, user_id, order_id, method, amount, status, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var txnID sql.NullString
	if p.TransactionID != nil {
		txnID = sql.NullString{String: *p.TransactionID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.OrderID, p.Method, p.Amount, p.Status, txnID, p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to record payment", logging.Fields{
			"order_id": p.OrderID,
			"error":    err.Error(),
		})
		return translateError(err, "create payment")
	}

	r.logger.Info("Payment recorded", logging.Fields{
		"payment_id": p.ID,
		"order_id":   p.OrderID,
		"status":     p.Status,
	})
	return nil
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByOrderID returns the most recent payment recorded for the order.
func (r *PostgresPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, query string, arg string) (*models.Payment, error) {
	var p models.Payment
	var txnID sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &txnID, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("payment_not_found", "payment not found")
	}
	if err != nil {
		return nil, translateError(err, "get payment")
	}
	if txnID.Valid {
		p.TransactionID = &txnID.String
	}
	return &p, nil
}
