package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
)

// CartTotal is the payment-time total: current catalog price × quantity over
// every line.
func CartTotal(lines []*models.CartLine) decimal.Decimal {
	return models.CartTotal(lines)
}

// ItemCount sums quantities over lines.
func ItemCount(lines []*models.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// requireAvailable rejects a cart holding a book that left the catalog.
func requireAvailable(lines []*models.CartLine) error {
	for _, line := range lines {
		if line.Unavailable {
			return bookNotFound()
		}
	}
	return nil
}

func bookNotFound() error {
	return errors.NewNotFound("book_not_found", "a book in the cart no longer exists in the catalog")
}

// freezePrices reads the catalog price of every cart line at this instant and
// copies it into an order item. A book missing from the catalog fails the
// whole conversion.
func freezePrices(ctx context.Context, books repository.BookCatalog, orderID string, lines []*models.CartLine) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		book, err := books.FindBookByID(ctx, line.BookID)
		if line.Unavailable || errors.KindOf(err) == errors.KindNotFound {
			return nil, bookNotFound()
		}
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{
			OrderID:   orderID,
			BookID:    line.BookID,
			Quantity:  line.Quantity,
			UnitPrice: book.Price,
		})
	}
	return items, nil
}

func orderItemsTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
