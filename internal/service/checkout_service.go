package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
)

const (
	stepShipping = "shipping"
	stepPayment  = "payment"
	stepConfirm  = "confirm"
)

// CheckoutService sequences shipping, payment and confirmation. The user's
// checkout session links the steps: it remembers the selected address and
// the order created by the last payment attempt.
type CheckoutService struct {
	store      repository.Store
	payments   *PaymentService
	publisher  EventPublisher
	orderCache repository.OrderCache
	metrics    *metrics.Metrics
	config     *config.Config
	logger     *logging.Logger
}

// NewCheckoutService creates the checkout orchestrator. publisher and
// orderCache may be nil.
func NewCheckoutService(
	store repository.Store,
	payments *PaymentService,
	publisher EventPublisher,
	orderCache repository.OrderCache,
	m *metrics.Metrics,
	cfg *config.Config,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		payments:   payments,
		publisher:  publisher,
		orderCache: orderCache,
		metrics:    m,
		config:     cfg,
		logger:     logging.NewLogger("checkout-service"),
	}
}

// ShippingRequest selects an existing address by id or saves a new one.
type ShippingRequest struct {
	AddressID *int64
	Address   *models.ShippingAddress
}

// PaymentRequest is the input of the payment step.
type PaymentRequest struct {
	Method            string
	ShippingAddressID *int64
}

// PaymentOutcome is returned for approved and declined payments alike.
type PaymentOutcome struct {
	OrderID       string             `json:"orderId"`
	PaymentID     string             `json:"paymentId"`
	Status        models.OrderStatus `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	TransactionID string             `json:"transactionId,omitempty"`
}

// SessionView is the read-only checkout status of a user.
type SessionView struct {
	Cart                      *CartView                 `json:"cart"`
	ShippingAddresses         []*models.ShippingAddress `json:"shippingAddresses"`
	SelectedShippingAddressID *int64                    `json:"selectedShippingAddressId,omitempty"`
	OrderID                   string                    `json:"orderId,omitempty"`
	OrderStatus               models.OrderStatus        `json:"orderStatus,omitempty"`
}

// SetShipping selects the shipping address for the user's checkout. The cart
// must not be empty; that is checked before a new address is validated. No
// order is created at this step.
func (s *CheckoutService) SetShipping(ctx context.Context, userID string, req ShippingRequest) (addr *models.ShippingAddress, err error) {
	defer func() { s.recordStep(stepShipping, err) }()

	s.logger.Debug("Setting shipping information", logging.Fields{
		"user_id":     userID,
		"existing_id": req.AddressID != nil,
	})

	if req.AddressID == nil && req.Address == nil {
		return nil, errors.NewValidationError("address", "either addressId or a new address is required")
	}

	err = s.store.WithinTx(ctx, func(repos *repository.Repositories) error {
		if _, _, err := requireCartLines(ctx, repos, userID); err != nil {
			return err
		}

		var err error
		if req.AddressID != nil {
			addr, err = repos.Addresses.GetForUser(ctx, *req.AddressID, userID)
		} else {
			addr, err = createAddress(ctx, repos, userID, req.Address)
		}
		if err != nil {
			return err
		}

		return repos.Sessions.SetShippingAddress(ctx, userID, addr.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shipping address selected", logging.Fields{
		"user_id":    userID,
		"address_id": addr.ID,
	})
	return addr, nil
}

// SetPayment creates a Pending order for the current cart, authorizes the
// payment and records it. A declined payment returns the outcome together
// with a payment_declined error.
func (s *CheckoutService) SetPayment(ctx context.Context, userID string, req PaymentRequest) (outcome *PaymentOutcome, err error) {
	defer func() { s.recordStep(stepPayment, err) }()

	method, err := ValidatePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.store.WithinTx(ctx, func(repos *repository.Repositories) error {
		session, err := repos.Sessions.Lock(ctx, userID)
		if err != nil {
			return err
		}

		_, lines, err := requireCartLines(ctx, repos, userID)
		if err != nil {
			return err
		}
		if err := requireAvailable(lines); err != nil {
			return err
		}
		if err := abandonSessionOrder(ctx, repos, session); err != nil {
			return err
		}

		addressID, err := resolvePaymentAddress(ctx, repos, userID, req.ShippingAddressID, session)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:            userID,
			Total:             CartTotal(lines),
			ShippingAddressID: addressID,
			Status:            models.OrderStatusPending,
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		return repos.Sessions.SetOrder(ctx, userID, order.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created", logging.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.Total.String(),
	})
	s.publish(ctx, order.ID, func(p EventPublisher) error { return p.PublishOrderCreated(ctx, order) })

	auth := s.payments.Authorize(ctx, order, method)

	// The outcome is recorded even if the client went away mid-authorization.
	recordCtx := context.WithoutCancel(ctx)
	payment := newPayment(order, method, order.Total, auth)
	next := models.OrderStatusPaymentFailed
	if auth.Approved() {
		next = models.OrderStatusPaymentSuccess
	}

	err = s.store.WithinTx(recordCtx, func(repos *repository.Repositories) error {
		if err := repos.Payments.Create(recordCtx, payment); err != nil {
			return err
		}
		return repos.Orders.TransitionStatus(recordCtx, order.ID, models.OrderStatusPending, next, payment.ID)
	})
	if err != nil {
		s.logger.Error("Failed to record payment outcome", logging.Fields{
			"order_id": order.ID,
			"status":   auth.Status,
			"error":    err.Error(),
		})
		return nil, err
	}

	order.Status = next
	order.PaymentID = payment.ID

	outcome = &PaymentOutcome{
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		Status:        next,
		Amount:        order.Total,
		TransactionID: auth.TransactionID,
	}

	if !auth.Approved() {
		s.logger.Warn("Payment failed", logging.Fields{
			"order_id":   order.ID,
			"payment_id": payment.ID,
			"reason":     auth.Reason,
		})
		s.publish(recordCtx, order.ID, func(p EventPublisher) error { return p.PublishPaymentFailed(recordCtx, order, payment) })
		return outcome, errors.NewPaymentDeclined("payment was not authorized; choose a payment method and try again")
	}

	s.logger.Info("Payment succeeded", logging.Fields{
		"order_id":   order.ID,
		"payment_id": payment.ID,
	})
	s.publish(recordCtx, order.ID, func(p EventPublisher) error { return p.PublishPaymentSucceeded(recordCtx, order, payment) })
	return outcome, nil
}

// Confirm completes a paid order: it freezes current catalog prices into
// order items, drains the cart, grants ownership and marks the order
// Completed, all in one transaction. An empty orderID confirms the order of
// the user's checkout session.
func (s *CheckoutService) Confirm(ctx context.Context, userID, orderID string) (order *models.Order, err error) {
	defer func() { s.recordStep(stepConfirm, err) }()

	repos := s.store.Repos()
	if orderID == "" {
		session, err := repos.Sessions.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if session.OrderID == "" {
			return nil, errors.NewValidationError("orderId", "orderId is required")
		}
		orderID = session.OrderID
	}

	order, err = repos.Orders.GetByID(ctx, orderID)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && order.UserID != userID) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, err
	}
	if !order.CanConfirm() {
		return nil, errors.NewInvalidState("invalid_order_status",
			fmt.Sprintf("order status is %s; only %s orders can be confirmed", order.Status, models.OrderStatusPaymentSuccess))
	}

	var items []models.OrderItem
	err = s.store.WithinTx(ctx, func(tx *repository.Repositories) error {
		cart, lines, err := requireCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}

		items, err = freezePrices(ctx, tx.Books, order.ID, lines)
		if err != nil {
			return err
		}
		if err := tx.Orders.AddItems(ctx, order.ID, items); err != nil {
			return err
		}
		cleared, err := tx.Carts.Clear(ctx, cart.ID)
		if err != nil {
			return err
		}
		if cleared != int64(len(lines)) {
			return errors.NewInvalidState("cart_changed", "cart changed during confirmation")
		}

		bookIDs := make([]int64, len(items))
		for i, item := range items {
			bookIDs[i] = item.BookID
		}
		if err := tx.Ownership.Grant(ctx, userID, bookIDs); err != nil {
			return err
		}

		if err := tx.Orders.TransitionStatus(ctx, order.ID, models.OrderStatusPaymentSuccess, models.OrderStatusCompleted, ""); err != nil {
			return err
		}
		return tx.Sessions.ClearOrder(ctx, userID, order.ID)
	})
	if err != nil {
		s.logger.Warn("Order confirmation failed", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	if stored, err := repos.Orders.ListItems(ctx, order.ID); err == nil {
		items = stored
	}
	order.Status = models.OrderStatusCompleted
	order.Items = items

	if frozen := orderItemsTotal(items); !frozen.Equal(order.Total) {
		s.logger.Info("Catalog prices changed between payment and confirmation", logging.Fields{
			"order_id":     order.ID,
			"paid_total":   order.Total.String(),
			"frozen_total": frozen.String(),
		})
	}
	s.logger.Info("Order completed", logging.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"items":    len(items),
	})

	cacheOrder(ctx, s.orderCache, s.config, order, s.logger)
	s.publish(ctx, order.ID, func(p EventPublisher) error { return p.PublishOrderCompleted(ctx, order) })
	return order, nil
}

// GetSession returns the cart, its total and the user's addresses. It never
// writes.
func (s *CheckoutService) GetSession(ctx context.Context, userID string) (*SessionView, error) {
	repos := s.store.Repos()

	cart, err := loadCartView(ctx, repos, userID)
	if err != nil {
		return nil, err
	}
	addrs, err := repos.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := repos.Sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		Cart:                      cart,
		ShippingAddresses:         addrs,
		SelectedShippingAddressID: session.ShippingAddressID,
		OrderID:                   session.OrderID,
	}
	if session.OrderID != "" {
		if order, err := repos.Orders.GetByID(ctx, session.OrderID); err == nil {
			view.OrderStatus = order.Status
		}
	}
	return view, nil
}

func requireCartLines(ctx context.Context, repos *repository.Repositories, userID string) (*models.Cart, []*models.CartLine, error) {
	cart, err := repos.Carts.GetByUser(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil, cartEmpty()
	}
	if err != nil {
		return nil, nil, err
	}
	lines, err := repos.Carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, cartEmpty()
	}
	return cart, lines, nil
}

// abandonSessionOrder retires the order of a previous payment attempt so it
// is never left dangling. A paid order awaiting confirmation blocks a new
// payment instead, since paying again would charge twice.
func abandonSessionOrder(ctx context.Context, repos *repository.Repositories, session *models.CheckoutSession) error {
	if session.OrderID == "" {
		return nil
	}
	prev, err := repos.Orders.GetByID(ctx, session.OrderID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch prev.Status {
	case models.OrderStatusPending, models.OrderStatusPaymentFailed:
		err := repos.Orders.TransitionStatus(ctx, prev.ID, prev.Status, models.OrderStatusAbandoned, "")
		if errors.Is(err, errors.ErrStaleStatus) {
			return nil
		}
		return err
	case models.OrderStatusPaymentSuccess:
		return errors.NewInvalidState("order_awaiting_confirmation",
			fmt.Sprintf("order %s is already paid; confirm it before starting a new payment", prev.ID))
	}
	return nil
}

func resolvePaymentAddress(ctx context.Context, repos *repository.Repositories, userID string, requested *int64, session *models.CheckoutSession) (*int64, error) {
	if requested != nil {
		addr, err := repos.Addresses.GetForUser(ctx, *requested, userID)
		if err != nil {
			return nil, err
		}
		return &addr.ID, nil
	}
	if session.ShippingAddressID == nil {
		return nil, nil
	}
	addr, err := repos.Addresses.GetForUser(ctx, *session.ShippingAddressID, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &addr.ID, nil
}

func (s *CheckoutService) publish(ctx context.Context, orderID string, fn func(EventPublisher) error) {
	if s.publisher == nil || s.config == nil || !s.config.Features.EnableCheckoutEvents {
		return
	}
	if err := fn(s.publisher); err != nil {
		s.logger.Error("Failed to publish checkout event", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}
}

func (s *CheckoutService) recordStep(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "internal"
		var appErr *errors.Error
		if errors.As(err, &appErr) && appErr.Kind != errors.KindInternal {
			outcome = appErr.Reason
		}
	}
	s.metrics.CheckoutStep(step, outcome)
}

func cartEmpty() error {
	return errors.NewInvalidState("cart_empty", "cart is empty")
}

func orderNotFound() error {
	return errors.NewNotFound("order_not_found", "order not found")
}
