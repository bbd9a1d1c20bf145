package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
)

// CartView is a cart with its display lines and current total.
type CartView struct {
	CartID    int64              `json:"cartId"`
	Items     []*models.CartLine `json:"items"`
	Total     decimal.Decimal    `json:"total"`
	ItemCount int                `json:"itemCount"`
}

func newCartView(cartID int64, lines []*models.CartLine) *CartView {
	if lines == nil {
		lines = []*models.CartLine{}
	}
	return &CartView{
		CartID:    cartID,
		Items:     lines,
		Total:     CartTotal(lines),
		ItemCount: ItemCount(lines),
	}
}

// CartService manages the per-user cart.
type CartService struct {
	store  repository.Store
	books  repository.BookCatalog
	logger *logging.Logger
}

// NewCartService creates a cart service. books is used to reject unknown
// books before they reach the cart.
func NewCartService(store repository.Store, books repository.BookCatalog) *CartService {
	return &CartService{
		store:  store,
		books:  books,
		logger: logging.NewLogger("cart-service"),
	}
}

// GetCart returns the user's cart. A user without a cart gets an empty view.
func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	return loadCartView(ctx, s.store.Repos(), userID)
}

func loadCartView(ctx context.Context, repos *repository.Repositories, userID string) (*CartView, error) {
	cart, err := repos.Carts.GetByUser(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return newCartView(0, nil), nil
	}
	if err != nil {
		return nil, err
	}
	lines, err := repos.Carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return newCartView(cart.ID, lines), nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, bookID int64, quantity int) (*models.CartItem, error) {
	s.logger.Debug("Adding item to cart", logging.Fields{
		"user_id":  userID,
		"book_id":  bookID,
		"quantity": quantity,
	})

	if err := validateAddQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.books.FindBookByID(ctx, bookID); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	cart, err := repos.Carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := repos.Carts.AddOrUpdateItem(ctx, cart.ID, bookID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Item added to cart", logging.Fields{
		"user_id":  userID,
		"book_id":  bookID,
		"quantity": item.Quantity,
	})
	return item, nil
}

// SetItemQuantity overwrites the quantity of a cart item. Zero removes it and
// returns (nil, nil).
func (s *CartService) SetItemQuantity(ctx context.Context, userID string, bookID int64, quantity int) (*models.CartItem, error) {
	if err := validateSetQuantity(quantity); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	cart, err := repos.Carts.GetByUser(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, cartItemNotFound()
	}
	if err != nil {
		return nil, err
	}

	item, err := repos.Carts.SetItemQuantity(ctx, cart.ID, bookID, quantity)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, cartItemNotFound()
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cart item quantity set", logging.Fields{
		"user_id":  userID,
		"book_id":  bookID,
		"quantity": quantity,
	})
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, bookID int64) error {
	repos := s.store.Repos()
	cart, err := repos.Carts.GetByUser(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return cartItemNotFound()
	}
	if err != nil {
		return err
	}

	removed, err := repos.Carts.RemoveItem(ctx, cart.ID, bookID)
	if err != nil {
		return err
	}
	if !removed {
		return cartItemNotFound()
	}

	s.logger.Info("Item removed from cart", logging.Fields{
		"user_id": userID,
		"book_id": bookID,
	})
	return nil
}

// Clear empties the cart and returns the number of removed items.
func (s *CartService) Clear(ctx context.Context, userID string) (int64, error) {
	repos := s.store.Repos()
	cart, err := repos.Carts.GetByUser(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return repos.Carts.Clear(ctx, cart.ID)
}

func cartItemNotFound() error {
	return errors.NewNotFound("cart_item_not_found", "book is not in the cart")
}
