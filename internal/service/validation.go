package service

import (
	"strings"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ValidatePaymentMethod parses a client-supplied payment method.
func ValidatePaymentMethod(raw string) (models.PaymentMethod, error) {
	method := models.PaymentMethod(strings.TrimSpace(raw))
	if method == "" {
		return "", errors.NewValidationError("paymentMethod", "payment method is required")
	}
	if !method.IsValid() {
		return "", errors.NewValidationError("paymentMethod",
			"unsupported payment method "+string(method)+"; expected CreditCard, PayPal or EWallet")
	}
	return method, nil
}

// ValidateAddress checks that every required field of a new address is set.
func ValidateAddress(addr *models.ShippingAddress) error {
	if addr == nil {
		return errors.NewValidationError("address", "shipping address is required")
	}
	if missing := addr.MissingFields(); len(missing) > 0 {
		return errors.NewValidationError(missing[0], missing[0]+" is required")
	}
	return nil
}

func validateAddQuantity(quantity int) error {
	if quantity <= 0 {
		return errors.NewValidationError("quantity", "quantity must be a positive integer")
	}
	return nil
}

func validateSetQuantity(quantity int) error {
	if quantity < 0 {
		return errors.NewValidationError("quantity", "quantity must not be negative")
	}
	return nil
}

// NormalizePage clamps pagination parameters.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func trimAddress(addr *models.ShippingAddress) {
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.Province = strings.TrimSpace(addr.Province)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)
}
