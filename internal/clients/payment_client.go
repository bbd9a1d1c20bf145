package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

var _ PaymentGateway = (*HTTPPaymentGateway)(nil)

// HTTPPaymentGateway authorizes payments against an external provider over
// HTTP. The order id is sent as the idempotency key, so retried requests for
// the same order are charged at most once by the provider.
type HTTPPaymentGateway struct {
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

func NewHTTPPaymentGateway(cfg config.PaymentConfig) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{
		baseURL:    cfg.ProviderURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    100 * time.Millisecond,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewLogger("payment-gateway"),
	}
}

type authorizeRequest struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
}

type authorizeResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// Authorize posts the payment to the provider. Transport errors and 5xx
// responses are retried up to maxRetries times; any other non-2xx status is
// returned as an error.
func (g *HTTPPaymentGateway) Authorize(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	body, err := json.Marshal(authorizeRequest{
		OrderID: req.OrderID,
		UserID:  req.UserID,
		Method:  string(req.Method),
		Amount:  req.Amount,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying payment authorization", logging.Fields{
				"order_id": req.OrderID,
				"attempt":  attempt + 1,
				"error":    lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * g.backoff):
			}
		}

		res, retry, err := g.post(ctx, req.OrderID, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}

	g.logger.Error("Payment authorization failed", logging.Fields{
		"order_id": req.OrderID,
		"error":    lastErr.Error(),
	})
	return nil, lastErr
}

func (g *HTTPPaymentGateway) post(ctx context.Context, orderID string, body []byte) (*PaymentResult, bool, error) {
	url := fmt.Sprintf("%s/api/v2/payments", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	g.setHeaders(ctx, httpReq)
	httpReq.Header.Set("Idempotency-Key", orderID)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, false, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var out authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, err
	}

	result := &PaymentResult{Status: models.PaymentStatusFailed}
	if models.PaymentStatus(out.Status) == models.PaymentStatusCompleted {
		result.Status = models.PaymentStatusCompleted
		result.TransactionID = out.TransactionID
	}

	g.logger.Info("Payment authorization answered", logging.Fields{
		"order_id":       orderID,
		"status":         result.Status,
		"transaction_id": result.TransactionID,
	})
	return result, false, nil
}

func (g *HTTPPaymentGateway) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	// Propagate request ID for tracing
	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}
}
