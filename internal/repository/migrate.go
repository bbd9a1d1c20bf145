package repository

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger := logging.NewLogger("migrate")
	if _, err := db.ExecContext(ctx, schema); err != nil {
		logger.Error("Schema migration failed", logging.Fields{"error": err.Error()})
		return errors.Internal("apply schema", err)
	}
	logger.Info("Schema applied")
	return nil
}
