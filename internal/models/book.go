package models

import "github.com/shopspring/decimal"

// Book is the slice of the catalog the checkout pipeline reads.
type Book struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	CoverURL string          `json:"coverUrl"`
}
