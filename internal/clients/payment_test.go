package clients

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

func TestSimulatedPaymentGateway_ApprovesEveryMethod(t *testing.T) {
	gw := NewSimulatedPaymentGateway(0, 0)
	seen := make(map[string]bool)

	for _, method := range []models.PaymentMethod{models.PaymentMethodCreditCard, models.PaymentMethodPayPal, models.PaymentMethodEWallet} {
		t.Run(string(method), func(t *testing.T) {
			res, err := gw.Authorize(context.Background(), PaymentRequest{
				OrderID: "ord_1",
				Method:  method,
				Amount:  decimal.NewFromInt(25),
			})
			if err != nil {
				t.Fatalf("Authorize failed: %v", err)
			}
			if !res.Approved() {
				t.Errorf("Expected Completed, got %s", res.Status)
			}
			if !strings.HasPrefix(res.TransactionID, "txn_") {
				t.Errorf("Expected txn_ prefix, got %s", res.TransactionID)
			}
			if seen[res.TransactionID] {
				t.Error("Expected a fresh transaction id per call")
			}
			seen[res.TransactionID] = true
		})
	}
}

func TestSimulatedPaymentGateway_RejectsUnknownMethod(t *testing.T) {
	gw := NewSimulatedPaymentGateway(0, 0)
	_, err := gw.Authorize(context.Background(), PaymentRequest{Method: "Bitcoin"})
	if errors.KindOf(err) != errors.KindInvalidInput {
		t.Errorf("Expected invalid_input, got %v", err)
	}
}

func TestSimulatedPaymentGateway_AlwaysDeclines(t *testing.T) {
	gw := NewSimulatedPaymentGateway(1, 0)
	res, err := gw.Authorize(context.Background(), PaymentRequest{Method: models.PaymentMethodPayPal})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if res.Approved() || res.Status != models.PaymentStatusFailed {
		t.Errorf("Expected Failed, got %s", res.Status)
	}
	if res.TransactionID != "" {
		t.Errorf("Expected no transaction id on decline, got %s", res.TransactionID)
	}
}

func TestSimulatedPaymentGateway_HonorsDeadline(t *testing.T) {
	gw := NewSimulatedPaymentGateway(0, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.Authorize(ctx, PaymentRequest{Method: models.PaymentMethodEWallet})
	if err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
