package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// PaymentService calls the payment gateway under a deadline and turns every
// gateway outcome, including transport failures, into a payment status.
type PaymentService struct {
	gateway clients.PaymentGateway
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func NewPaymentService(gateway clients.PaymentGateway, timeout time.Duration, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		gateway: gateway,
		timeout: timeout,
		metrics: m,
		logger:  logging.NewLogger("payment-service"),
	}
}

// Authorization is the outcome of one authorization attempt.
type Authorization struct {
	Status        models.PaymentStatus
	TransactionID string
	// Reason explains a failure: "declined" or the gateway error.
	Reason string
}

func (a *Authorization) Approved() bool {
	return a.Status == models.PaymentStatusCompleted
}

// Authorize never returns an error: a gateway error or timeout yields a
// Failed authorization.
func (s *PaymentService) Authorize(ctx context.Context, order *models.Order, method models.PaymentMethod) *Authorization {
	s.logger.Debug("Authorizing payment", logging.Fields{
		"order_id": order.ID,
		"method":   method,
		"amount":   order.Total.String(),
	})

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.gateway.Authorize(ctx, clients.PaymentRequest{
		OrderID: order.ID,
		UserID:  order.UserID,
		Method:  method,
		Amount:  order.Total,
	})

	auth := &Authorization{Status: models.PaymentStatusFailed}
	switch {
	case err != nil:
		auth.Reason = err.Error()
		s.logger.Error("Payment gateway error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	case res.Approved():
		auth.Status = models.PaymentStatusCompleted
		auth.TransactionID = res.TransactionID
	default:
		auth.Reason = "declined"
	}

	s.metrics.Payment(string(method), string(auth.Status))
	return auth
}

// newPayment builds the payment row for an authorization.
func newPayment(order *models.Order, method models.PaymentMethod, amount decimal.Decimal, auth *Authorization) *models.Payment {
	p := &models.Payment{
		UserID:  order.UserID,
		OrderID: order.ID,
		Method:  method,
		Amount:  amount,
		Status:  auth.Status,
	}
	if auth.TransactionID != "" {
		txn := auth.TransactionID
		p.TransactionID = &txn
	}
	return p
}
