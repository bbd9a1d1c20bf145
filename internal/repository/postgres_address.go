package repository

import (
	"context"
	"database/sql"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

const addressColumns = `id, user_id, line1, COALESCE(line2, ''), city, province, postal_code, country, is_default, created_at`

type PostgresAddressRepository struct {
	db     DBTX
	logger *logging.Logger
}

func NewPostgresAddressRepository(db DBTX) *PostgresAddressRepository {
	return &PostgresAddressRepository{
		db:     db,
		logger: logging.NewLogger("address-repository"),
	}
}

func (r *PostgresAddressRepository) Insert(ctx context.Context, addr *models.ShippingAddress) error {
	r.logger.Debug("Inserting shipping address", logging.Fields{
		"user_id":    addr.UserID,
		"is_default": addr.IsDefault,
	})

	query := `
		INSERT INTO shipping_addresses (user_id, line1, line2, city, province, postal_code, country, is_default)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		addr.UserID, addr.Line1, addr.Line2, addr.City, addr.Province, addr.PostalCode, addr.Country, addr.IsDefault,
	).Scan(&addr.ID, &addr.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert shipping address", logging.Fields{
			"user_id": addr.UserID,
			"error":   err.Error(),
		})
		return translateError(err, "insert shipping address")
	}

	r.logger.Info("Shipping address saved", logging.Fields{
		"address_id": addr.ID,
		"user_id":    addr.UserID,
	})
	return nil
}

func (r *PostgresAddressRepository) ClearDefault(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE shipping_addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, userID)
	if err != nil {
		return translateError(err, "clear default address")
	}
	return nil
}

func (r *PostgresAddressRepository) SetDefault(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shipping_addresses SET is_default = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return translateError(err, "set default address")
	}
	if rowsAffected(res) == 0 {
		return errors.NewNotFound("address_not_found", "shipping address not found")
	}
	return nil
}

func (r *PostgresAddressRepository) GetForUser(ctx context.Context, id int64, userID string) (*models.ShippingAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM shipping_addresses WHERE id = $1 AND user_id = $2`

	addr, err := scanAddress(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("address_not_found", "shipping address not found")
	}
	if err != nil {
		return nil, translateError(err, "get shipping address")
	}
	return addr, nil
}

func (r *PostgresAddressRepository) ListByUser(ctx context.Context, userID string) ([]*models.ShippingAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM shipping_addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translateError(err, "list shipping addresses")
	}
	defer rows.Close()

	addrs := make([]*models.ShippingAddress, 0)
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, translateError(err, "scan shipping address")
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list shipping addresses")
	}
	return addrs, nil
}

// Update writes the patchable columns only.
func (r *PostgresAddressRepository) Update(ctx context.Context, addr *models.ShippingAddress) error {
	query := `
		UPDATE shipping_addresses
		SET line1 = $3, line2 = NULLIF($4, ''), city = $5, province = $6, postal_code = $7, country = $8
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		addr.ID, addr.UserID, addr.Line1, addr.Line2, addr.City, addr.Province, addr.PostalCode, addr.Country,
	)
	if err != nil {
		return translateError(err, "update shipping address")
	}
	if rowsAffected(res) == 0 {
		return errors.NewNotFound("address_not_found", "shipping address not found")
	}

	r.logger.Info("Shipping address updated", logging.Fields{"address_id": addr.ID})
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAddress(row rowScanner) (*models.ShippingAddress, error) {
	var a models.ShippingAddress
	err := row.Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.Province, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
