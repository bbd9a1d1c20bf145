package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
)

// OrderService handles order history reads.
type OrderService struct {
	store      repository.Store
	orderCache repository.OrderCache
	config     *config.Config
	logger     *logging.Logger
}

// NewOrderService creates a new order service. orderCache may be nil.
func NewOrderService(store repository.Store, orderCache repository.OrderCache, cfg *config.Config) *OrderService {
	return &OrderService{
		store:      store,
		orderCache: orderCache,
		config:     cfg,
		logger:     logging.NewLogger("order-service"),
	}
}

// ListOrders returns a page of the user's orders, newest first, along with
// the normalized page parameters.
func (s *OrderService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, int, error) {
	limit, offset = NormalizePage(limit, offset)

	orders, err := s.store.Repos().Orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list orders", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, limit, offset, err
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, limit, offset, nil
}

// GetOrder returns one of the user's orders with its items. Orders owned by
// someone else are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	if s.cachingEnabled() {
		if order, err := s.orderCache.Get(ctx, id); err == nil && order != nil {
			s.logger.Debug("Order found in cache", logging.Fields{"order_id": id})
			if order.UserID != userID {
				return nil, orderNotFound()
			}
			return order, nil
		}
	}

	repos := s.store.Repos()
	order, err := repos.Orders.GetByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && order.UserID != userID) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, err
	}

	items, err := repos.Orders.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	cacheOrder(ctx, s.orderCache, s.config, order, s.logger)
	return order, nil
}

// GetOrderPayment returns the latest payment recorded for one of the user's
// orders.
func (s *OrderService) GetOrderPayment(ctx context.Context, userID, orderID string) (*models.Payment, error) {
	repos := s.store.Repos()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && order.UserID != userID) {
		return nil, orderNotFound()
	}
	if err != nil {
		return nil, err
	}
	return repos.Payments.GetByOrderID(ctx, orderID)
}

func (s *OrderService) cachingEnabled() bool {
	return s.orderCache != nil && s.config != nil && s.config.Features.EnableOrderCaching
}

// cacheOrder stores terminal orders. Cache failures are logged only.
func cacheOrder(ctx context.Context, cache repository.OrderCache, cfg *config.Config, order *models.Order, logger *logging.Logger) {
	if cache == nil || cfg == nil || !cfg.Features.EnableOrderCaching || !order.Status.IsTerminal() {
		return
	}
	if err := cache.Set(ctx, order); err != nil {
		logger.Error("Failed to cache order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
