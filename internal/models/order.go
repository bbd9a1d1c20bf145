package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusPaymentSuccess OrderStatus = "Payment_Success"
	OrderStatusPaymentFailed  OrderStatus = "Payment_Failed"
	OrderStatusCompleted      OrderStatus = "Completed"
	OrderStatusAbandoned      OrderStatus = "Abandoned"
)

var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaymentSuccess, OrderStatusPaymentFailed, OrderStatusAbandoned},
	OrderStatusPaymentSuccess: {OrderStatusCompleted},
	OrderStatusPaymentFailed:  {OrderStatusAbandoned},
	OrderStatusCompleted:      {},
	OrderStatusAbandoned:      {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddressID *int64          `json:"shippingAddressId,omitempty"`
	Status            OrderStatus     `json:"status"`
	PaymentID         string          `json:"paymentId,omitempty"`
	Items             []OrderItem     `json:"items,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// CanConfirm reports whether the order is paid and awaiting confirmation.
func (o *Order) CanConfirm() bool {
	return o.Status == OrderStatusPaymentSuccess
}

// OrderItem is a purchased line. UnitPrice is the catalog price frozen at
// confirmation time.
type OrderItem struct {
	ID        int64           `json:"id,omitempty"`
	OrderID   string          `json:"orderId"`
	BookID    int64           `json:"bookId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns UnitPrice × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
