package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0},
		Auth:   config.AuthConfig{JWTSecret: "server-secret"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
	}

	store := repository.NewMemoryStore()
	store.SeedBook(models.Book{ID: 7, Title: "Book", Author: "A", Price: decimal.RequireFromString("12.50")})

	m := metrics.New(prometheus.NewRegistry())
	payments := service.NewPaymentService(clients.NewSimulatedPaymentGateway(0, 0), time.Second, m)
	h := handlers.NewHandlers(
		service.NewCartService(store, store.Repos().Books),
		service.NewAddressService(store),
		service.NewCheckoutService(store, payments, nil, nil, m, cfg),
		service.NewOrderService(store, nil, cfg),
		cfg,
	)
	h.AddReadinessCheck("database", store.Ping)

	return New(h, cfg, m)
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)
	auth := "Bearer " + token(t, "u1")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", "", http.StatusOK},
		{"live", http.MethodGet, "/live", "", "", http.StatusOK},
		{"version", http.MethodGet, "/version", "", "", http.StatusOK},
		{"cart requires auth", http.MethodGet, "/api/v1/cart", "", "", http.StatusUnauthorized},
		{"checkout requires auth", http.MethodGet, "/checkout/session", "", "", http.StatusUnauthorized},
		{"add to cart", http.MethodPost, "/api/v1/cart/items", `{"bookId":7,"quantity":2}`, auth, http.StatusOK},
		{"cart", http.MethodGet, "/api/v1/cart", "", auth, http.StatusOK},
		{"session", http.MethodGet, "/checkout/session", "", auth, http.StatusOK},
		{"addresses", http.MethodGet, "/api/v1/addresses", "", auth, http.StatusOK},
		{"payment", http.MethodPost, "/checkout/payment", `{"paymentMethod":"EWallet"}`, auth, http.StatusOK},
		{"confirm", http.MethodPost, "/checkout/confirm", `{}`, auth, http.StatusOK},
		{"orders", http.MethodGet, "/api/v1/orders?limit=5", "", auth, http.StatusOK},
		{"unknown order", http.MethodGet, "/api/v1/orders/ord_missing", "", auth, http.StatusNotFound},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d: %s", tt.method, tt.path, tt.want, w.Code, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("Expected X-Request-ID response header")
			}
		})
	}
}

func TestMetricsExposeCheckoutSteps(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/payment", strings.NewReader(`{"paymentMethod":"EWallet"}`))
	req.Header.Set("Authorization", "Bearer "+token(t, "u2"))
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `checkout_steps_total{outcome="cart_empty",step="payment"} 1`) {
		t.Errorf("Expected cart_empty payment step in metrics, got:\n%s", body)
	}
	if !strings.Contains(body, "checkout_http_requests_total") {
		t.Error("Expected HTTP request counter in metrics")
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/checkout/payment", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}
