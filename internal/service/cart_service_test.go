package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

func TestCartService_AddItemIsAdditive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.carts.AddItem(ctx, alice, 1, 1)
	item, err := f.carts.AddItem(ctx, alice, 1, 2)
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if item.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", item.Quantity)
	}

	cart, _ := f.carts.GetCart(ctx, alice)
	if len(cart.Items) != 1 || cart.ItemCount != 3 {
		t.Errorf("Expected one line with 3 copies, got %d lines / %d copies", len(cart.Items), cart.ItemCount)
	}
	if !cart.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("Expected total 30.00, got %s", cart.Total)
	}
}

func TestCartService_AddItemValidation(t *testing.T) {
	tests := []struct {
		name     string
		bookID   int64
		quantity int
		kind     errors.Kind
		reason   string
	}{
		{"zero quantity", 1, 0, errors.KindInvalidInput, "invalid_quantity"},
		{"negative quantity", 1, -2, errors.KindInvalidInput, "invalid_quantity"},
		{"unknown book", 99, 1, errors.KindNotFound, "book_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.carts.AddItem(context.Background(), alice, tt.bookID, tt.quantity)
			assertReason(t, err, tt.kind, tt.reason)
		})
	}
}

func TestCartService_SetQuantityZeroRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, alice)

	item, err := f.carts.SetItemQuantity(ctx, alice, 1, 0)
	if err != nil {
		t.Fatalf("SetItemQuantity failed: %v", err)
	}
	if item != nil {
		t.Errorf("Expected nil item after removal, got %+v", item)
	}

	cart, _ := f.carts.GetCart(ctx, alice)
	if len(cart.Items) != 1 || cart.Items[0].BookID != 2 {
		t.Errorf("Expected only book 2 left, got %+v", cart.Items)
	}

	_, err = f.carts.SetItemQuantity(ctx, alice, 1, 4)
	assertReason(t, err, errors.KindNotFound, "cart_item_not_found")
}

func TestCartService_RemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.carts.RemoveItem(ctx, alice, 1)
	assertReason(t, err, errors.KindNotFound, "cart_item_not_found")

	f.fillCart(t, alice)
	if err := f.carts.RemoveItem(ctx, alice, 2); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	removed, err := f.carts.Clear(ctx, alice)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed item, got %d", removed)
	}
}

func TestAddressService_SingleDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.addresses.Create(ctx, alice, validAddress())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := f.addresses.Create(ctx, alice, validAddress())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	assertDefault := func(wantID int64) {
		t.Helper()
		addrs, _ := f.addresses.List(ctx, alice)
		defaults := 0
		for _, a := range addrs {
			if a.IsDefault {
				defaults++
				if a.ID != wantID {
					t.Errorf("Expected default %d, got %d", wantID, a.ID)
				}
			}
		}
		if defaults != 1 {
			t.Errorf("Expected exactly one default, got %d", defaults)
		}
	}

	assertDefault(second.ID)

	if _, err := f.addresses.SetDefault(ctx, alice, first.ID); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	assertDefault(first.ID)

	_, err = f.addresses.SetDefault(ctx, bob, first.ID)
	assertReason(t, err, errors.KindNotFound, "address_not_found")
}

func TestAddressService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr, _ := f.addresses.Create(ctx, alice, validAddress())

	tests := []struct {
		name   string
		patch  map[string]string
		reason string
	}{
		{"empty patch", map[string]string{}, "invalid_patch"},
		{"not updatable", map[string]string{"user_id": "user-bob"}, "invalid_user_id"},
		{"required field cleared", map[string]string{"city": ""}, "invalid_city"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.addresses.Update(ctx, alice, addr.ID, tt.patch)
			assertReason(t, err, errors.KindInvalidInput, tt.reason)
		})
	}

	updated, err := f.addresses.Update(ctx, alice, addr.ID, map[string]string{"city": "Ottawa", "address_line2": "Unit 4"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.City != "Ottawa" || updated.Line2 != "Unit 4" {
		t.Errorf("Unexpected address after update: %+v", updated)
	}
}

func TestOrderService_GetOrderOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t, alice)
	outcome := f.pay(t, alice)

	if _, err := f.orders.GetOrder(ctx, bob, outcome.OrderID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected not found for another user, got %v", err)
	}
	if _, err := f.orders.GetOrderPayment(ctx, bob, outcome.OrderID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected not found for another user's payment, got %v", err)
	}

	order, err := f.orders.GetOrder(ctx, alice, outcome.OrderID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != models.OrderStatusPaymentSuccess {
		t.Errorf("Expected Payment_Success, got %s", order.Status)
	}
	if cached, _ := f.cache.Get(ctx, order.ID); cached != nil {
		t.Error("Expected non-terminal order to stay out of the cache")
	}
}

func TestOrderService_ListOrdersPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orders, limit, offset, err := f.orders.ListOrders(ctx, alice, 500, -3)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if limit != maxPageLimit || offset != 0 {
		t.Errorf("Expected limit %d offset 0, got %d %d", maxPageLimit, limit, offset)
	}
	if orders == nil || len(orders) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", orders)
	}
}
