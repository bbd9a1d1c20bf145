package models

import "time"

// CheckoutSession links the checkout steps of one user: the address chosen in
// the shipping step and the order created by the payment step.
type CheckoutSession struct {
	UserID            string    `json:"userId"`
	ShippingAddressID *int64    `json:"shippingAddressId,omitempty"`
	OrderID           string    `json:"orderId,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
