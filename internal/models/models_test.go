package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusPaymentSuccess, true},
		{OrderStatusPending, OrderStatusPaymentFailed, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusPaymentSuccess, OrderStatusCompleted, true},
		{OrderStatusPaymentFailed, OrderStatusCompleted, false},
		{OrderStatusPaymentFailed, OrderStatusAbandoned, true},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusAbandoned, OrderStatusPaymentSuccess, false},
		{OrderStatus("Shipped"), OrderStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	if !OrderStatusCompleted.IsTerminal() || !OrderStatusAbandoned.IsTerminal() {
		t.Error("Expected Completed and Abandoned to be terminal")
	}
	if OrderStatusPaymentFailed.IsTerminal() {
		t.Error("Expected Payment_Failed to allow abandonment")
	}
	if OrderStatus("bogus").IsTerminal() {
		t.Error("Expected unknown status to be non-terminal")
	}
}

func TestPaymentMethod_IsValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodEWallet} {
		if !m.IsValid() {
			t.Errorf("Expected %s to be valid", m)
		}
	}
	for _, m := range []PaymentMethod{"Bitcoin", "", "creditcard"} {
		if m.IsValid() {
			t.Errorf("Expected %q to be invalid", m)
		}
	}
}

func TestCartTotal(t *testing.T) {
	lines := []*CartLine{
		{CartItem: CartItem{BookID: 1, Quantity: 2}, Price: decimal.RequireFromString("10.00")},
		{CartItem: CartItem{BookID: 2, Quantity: 1}, Price: decimal.RequireFromString("5.00")},
	}
	if got := CartTotal(lines); !got.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("Expected total 25.00, got %s", got)
	}
	if got := CartTotal(nil); !got.IsZero() {
		t.Errorf("Expected zero total for empty cart, got %s", got)
	}
}

func TestShippingAddress_MissingFields(t *testing.T) {
	a := &ShippingAddress{Line1: "1 Main St", City: " ", Country: "CA"}
	missing := a.MissingFields()
	want := []string{"city", "province", "postal_code"}
	if len(missing) != len(want) {
		t.Fatalf("Expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, missing[i])
		}
	}
}

func TestShippingAddress_ApplyPatch(t *testing.T) {
	t.Run("allowed fields", func(t *testing.T) {
		a := &ShippingAddress{UserID: "u1", City: "Old"}
		field, ok := a.ApplyPatch(map[string]string{"city": "Toronto", "address_line2": "Apt 4"})
		if !ok {
			t.Fatalf("Expected patch to apply, rejected field %s", field)
		}
		if a.City != "Toronto" || a.Line2 != "Apt 4" {
			t.Errorf("Unexpected address after patch: %+v", a)
		}
	})

	t.Run("unknown field rejected atomically", func(t *testing.T) {
		a := &ShippingAddress{UserID: "u1", City: "Old"}
		field, ok := a.ApplyPatch(map[string]string{"city": "New", "user_id": "u2"})
		if ok {
			t.Fatal("Expected patch to be rejected")
		}
		if field != "user_id" {
			t.Errorf("Expected rejected field user_id, got %s", field)
		}
		if a.City != "Old" || a.UserID != "u1" {
			t.Errorf("Expected address unchanged, got %+v", a)
		}
	})
}
