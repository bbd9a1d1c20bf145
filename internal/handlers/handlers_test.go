package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/service"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T, declineRate float64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	store.SeedBook(models.Book{ID: 1, Title: "Book One", Author: "A", Price: decimal.RequireFromString("10.00")})
	store.SeedBook(models.Book{ID: 2, Title: "Book Two", Author: "B", Price: decimal.RequireFromString("5.00")})

	cfg := &config.Config{}
	gateway := clients.NewSimulatedPaymentGateway(declineRate, 0)
	payments := service.NewPaymentService(gateway, time.Second, nil)

	h := NewHandlers(
		service.NewCartService(store, store.Repos().Books),
		service.NewAddressService(store),
		service.NewCheckoutService(store, payments, nil, nil, nil, cfg),
		service.NewOrderService(store, nil, cfg),
		cfg,
	)

	r := gin.New()
	r.GET("/health", h.Health)
	api := r.Group("/", middleware.Auth(testSecret))
	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", h.AddCartItem)
	api.PUT("/cart/items/:bookId", h.SetCartItemQuantity)
	api.DELETE("/cart/items/:bookId", h.RemoveCartItem)
	api.PATCH("/addresses/:id", h.UpdateAddress)
	api.POST("/addresses", h.CreateAddress)
	api.POST("/checkout/shipping", h.SetShipping)
	api.POST("/checkout/payment", h.SetPayment)
	api.POST("/checkout/confirm", h.Confirm)
	api.GET("/checkout/session", h.GetSession)
	api.GET("/orders/:id", h.GetOrder)
	return r
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, r http.Handler, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", bearer(t, userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Health(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["service"] != "checkout-service" {
		t.Errorf("Expected service 'checkout-service', got %v", resp["service"])
	}
}

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		checkErr error
		want     int
	}{
		{"all dependencies up", nil, http.StatusOK},
		{"dependency down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(nil, nil, nil, nil, &config.Config{})
			h.AddReadinessCheck("database", func(ctx context.Context) error { return tt.checkErr })

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

			h.Ready(c)

			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestLive(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Live(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", errors.NewValidationError("quantity", "bad"), http.StatusBadRequest, "invalid_quantity"},
		{"not found", errors.NewNotFound("order_not_found", "order not found"), http.StatusNotFound, "order_not_found"},
		{"invalid state", errors.NewInvalidState("cart_empty", "cart is empty"), http.StatusBadRequest, "cart_empty"},
		{"conflict", errors.NewConflict("already_owned", "owned"), http.StatusConflict, "already_owned"},
		{"declined", errors.NewPaymentDeclined("declined"), http.StatusPaymentRequired, "payment_declined"},
		{"internal", errors.Internal("db down", errors.New("dial tcp")), http.StatusInternalServerError, "internal"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorBody(tt.err)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
			if body["error"] != tt.wantError {
				t.Errorf("Expected error %s, got %v", tt.wantError, body["error"])
			}
			if tt.wantStatus == http.StatusInternalServerError && body["message"] != "internal server error" {
				t.Errorf("Expected generic message, got %v", body["message"])
			}
		})
	}
}

func TestCartHandlers(t *testing.T) {
	r := newTestRouter(t, 0)

	w, _ := doJSON(t, r, http.MethodGet, "/cart", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	w, resp := doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 1, "quantity": 0})
	if w.Code != http.StatusBadRequest || resp["error"] != "invalid_quantity" {
		t.Errorf("Expected 400 invalid_quantity, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 42, "quantity": 1})
	if w.Code != http.StatusNotFound || resp["error"] != "book_not_found" {
		t.Errorf("Expected 404 book_not_found, got %d %v", w.Code, resp)
	}

	doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 1, "quantity": 2})
	w, resp = doJSON(t, r, http.MethodGet, "/cart", "u1", nil)
	if w.Code != http.StatusOK || resp["total"] != "20" {
		t.Errorf("Expected total 20, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPut, "/cart/items/1", "u1", gin.H{"quantity": 0})
	if w.Code != http.StatusOK || resp["removed"] != true {
		t.Errorf("Expected removal on quantity 0, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodDelete, "/cart/items/1", "u1", nil)
	if w.Code != http.StatusNotFound || resp["error"] != "cart_item_not_found" {
		t.Errorf("Expected 404 cart_item_not_found, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPut, "/cart/items/abc", "u1", gin.H{"quantity": 1})
	if w.Code != http.StatusBadRequest || resp["field"] != "bookId" {
		t.Errorf("Expected 400 on bad path id, got %d %v", w.Code, resp)
	}
}

func TestUpdateAddress_RejectsUnknownField(t *testing.T) {
	r := newTestRouter(t, 0)

	w, resp := doJSON(t, r, http.MethodPost, "/addresses", "u1", gin.H{
		"address_line1": "1 Main St",
		"city":          "Toronto",
		"province":      "ON",
		"postal_code":   "M5V 1A1",
		"country":       "CA",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d %v", w.Code, resp)
	}
	id := int64(resp["id"].(float64))

	w, resp = doJSON(t, r, http.MethodPatch, "/addresses/"+strconv.FormatInt(id, 10), "u1", gin.H{"user_id": "u2"})
	if w.Code != http.StatusBadRequest || resp["field"] != "user_id" {
		t.Errorf("Expected 400 on user_id patch, got %d %v", w.Code, resp)
	}
}

func TestCheckoutFlow(t *testing.T) {
	r := newTestRouter(t, 0)

	w, resp := doJSON(t, r, http.MethodPost, "/checkout/shipping", "u1", gin.H{"addressId": 1})
	if w.Code != http.StatusBadRequest || resp["error"] != "cart_empty" {
		t.Errorf("Expected 400 cart_empty, got %d %v", w.Code, resp)
	}

	doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 1, "quantity": 2})
	doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 2, "quantity": 1})

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/shipping", "u1", gin.H{
		"address_line1": "1 Main St",
		"city":          "Toronto",
		"province":      "ON",
		"postal_code":   "M5V 1A1",
		"country":       "CA",
		"is_default":    true,
	})
	if w.Code != http.StatusOK || resp["shippingAddressId"] == nil {
		t.Fatalf("Expected shipping to succeed, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/payment", "u1", gin.H{"paymentMethod": "Bitcoin"})
	if w.Code != http.StatusBadRequest || resp["field"] != "paymentMethod" {
		t.Errorf("Expected 400 for Bitcoin, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/payment", "u1", gin.H{"paymentMethod": "CreditCard"})
	if w.Code != http.StatusOK || resp["status"] != string(models.OrderStatusPaymentSuccess) {
		t.Fatalf("Expected Payment_Success, got %d %v", w.Code, resp)
	}
	if resp["amount"] != "25" {
		t.Errorf("Expected amount 25, got %v", resp["amount"])
	}
	orderID := resp["orderId"].(string)

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/confirm", "u2", gin.H{"orderId": orderID})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/confirm", "u1", nil)
	if w.Code != http.StatusOK || resp["status"] != string(models.OrderStatusCompleted) {
		t.Fatalf("Expected Completed, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/checkout/confirm", "u1", gin.H{"orderId": orderID})
	if w.Code != http.StatusBadRequest || resp["error"] != "invalid_order_status" {
		t.Errorf("Expected 400 invalid_order_status on second confirm, got %d %v", w.Code, resp)
	}

	w, resp = doJSON(t, r, http.MethodGet, "/orders/"+orderID, "u1", nil)
	if w.Code != http.StatusOK || len(resp["items"].([]interface{})) != 2 {
		t.Errorf("Expected order with 2 items, got %d %v", w.Code, resp)
	}
}

func TestSetPayment_Declined(t *testing.T) {
	r := newTestRouter(t, 1)

	doJSON(t, r, http.MethodPost, "/cart/items", "u1", gin.H{"bookId": 1, "quantity": 1})

	w, resp := doJSON(t, r, http.MethodPost, "/checkout/payment", "u1", gin.H{"paymentMethod": "PayPal"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d %v", w.Code, resp)
	}
	if resp["status"] != string(models.OrderStatusPaymentFailed) || resp["orderId"] == nil || resp["paymentId"] == nil {
		t.Errorf("Expected order and payment ids with Payment_Failed, got %v", resp)
	}
	if resp["error"] != "payment_declined" {
		t.Errorf("Expected payment_declined, got %v", resp["error"])
	}
}
