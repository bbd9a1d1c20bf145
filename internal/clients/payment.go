package clients

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// PaymentGateway authorizes a payment in a single synchronous call. A real
// provider adds network and timeout errors to the approve/decline outcomes.
type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}

type PaymentRequest struct {
	OrderID string
	UserID  string
	Method  models.PaymentMethod
	Amount  decimal.Decimal
}

type PaymentResult struct {
	Status        models.PaymentStatus
	TransactionID string
}

// Approved reports whether the gateway accepted the payment.
func (r *PaymentResult) Approved() bool {
	return r.Status == models.PaymentStatusCompleted
}

// SimulatedPaymentGateway stands in for a real provider. With a zero
// DeclineRate every payment is approved.
type SimulatedPaymentGateway struct {
	DeclineRate float64
	Latency     time.Duration

	mu     sync.Mutex
	rng    *rand.Rand
	logger *logging.Logger
}

func NewSimulatedPaymentGateway(declineRate float64, latency time.Duration) *SimulatedPaymentGateway {
	return &SimulatedPaymentGateway{
		DeclineRate: declineRate,
		Latency:     latency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      logging.NewLogger("payment-simulator"),
	}
}

func (g *SimulatedPaymentGateway) Authorize(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if !req.Method.IsValid() {
		return nil, errors.NewValidationError("paymentMethod", "unsupported payment method")
	}

	g.logger.Debug("Authorizing payment", logging.Fields{
		"order_id": req.OrderID,
		"method":   req.Method,
		"amount":   req.Amount.String(),
	})

	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if g.declined() {
		g.logger.Info("Payment declined", logging.Fields{"order_id": req.OrderID})
		return &PaymentResult{Status: models.PaymentStatusFailed}, nil
	}

	result := &PaymentResult{
		Status:        models.PaymentStatusCompleted,
		TransactionID: "txn_" + uuid.NewString(),
	}
	g.logger.Info("Payment approved", logging.Fields{
		"order_id":       req.OrderID,
		"transaction_id": result.TransactionID,
	})
	return result, nil
}

func (g *SimulatedPaymentGateway) declined() bool {
	if g.DeclineRate <= 0 {
		return false
	}
	if g.DeclineRate >= 1 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g.rng.Float64() < g.DeclineRate
}
