package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user staging area. There is at most one cart per user and it
// outlives checkout.
type Cart struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type CartItem struct {
	ID       int64     `json:"id"`
	CartID   int64     `json:"cartId"`
	BookID   int64     `json:"bookId"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

// CartLine is a cart item joined with the current catalog data for display.
type CartLine struct {
	CartItem
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	CoverURL string          `json:"coverUrl"`
	// Unavailable marks an item whose book is no longer in the catalog.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Subtotal returns the current price × quantity.
func (l *CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums price × quantity over lines.
func CartTotal(lines []*CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
