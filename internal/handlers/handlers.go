package handlers

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/service"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the checkout service.
type Handlers struct {
	cartService     *service.CartService
	addressService  *service.AddressService
	checkoutService *service.CheckoutService
	orderService    *service.OrderService
	checks          map[string]ReadinessCheck
	config          *config.Config
	logger          *logging.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	cartService *service.CartService,
	addressService *service.AddressService,
	checkoutService *service.CheckoutService,
	orderService *service.OrderService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		cartService:     cartService,
		addressService:  addressService,
		checkoutService: checkoutService,
		orderService:    orderService,
		checks:          make(map[string]ReadinessCheck),
		config:          cfg,
		logger:          logging.NewLogger("handlers"),
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready.
func (h *Handlers) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}
