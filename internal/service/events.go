package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// EventPublisher announces checkout state changes after they commit.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishPaymentSucceeded(ctx context.Context, order *models.Order, payment *models.Payment) error
	PublishPaymentFailed(ctx context.Context, order *models.Order, payment *models.Payment) error
	PublishOrderCompleted(ctx context.Context, order *models.Order) error
}
