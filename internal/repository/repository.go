package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// CartRepository owns carts and their line items.
type CartRepository interface {
	// GetOrCreateCart returns the user's cart, creating it on first use.
	GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error)
	// GetByUser returns the user's cart without creating it, or ErrNotFound.
	GetByUser(ctx context.Context, userID string) (*models.Cart, error)
	// AddOrUpdateItem inserts the (cart, book) pair or adds quantity to the
	// existing row, returning the resulting row.
	AddOrUpdateItem(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error)
	// ListItems returns items joined with catalog data, newest first.
	ListItems(ctx context.Context, cartID int64) ([]*models.CartLine, error)
	// SetItemQuantity overwrites the quantity. Zero removes the item and
	// returns (nil, nil). A missing item yields ErrNotFound.
	SetItemQuantity(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error)
	// RemoveItem reports whether a row was deleted.
	RemoveItem(ctx context.Context, cartID, bookID int64) (bool, error)
	// Clear deletes every item of the cart and returns how many were removed.
	Clear(ctx context.Context, cartID int64) (int64, error)
}

type AddressRepository interface {
	Insert(ctx context.Context, addr *models.ShippingAddress) error
	// ClearDefault unsets is_default on every address of the user.
	ClearDefault(ctx context.Context, userID string) error
	// SetDefault marks one address as default. Callers clear the previous
	// default first in the same transaction.
	SetDefault(ctx context.Context, id int64, userID string) error
	// GetForUser returns the address only when it belongs to userID.
	GetForUser(ctx context.Context, id int64, userID string) (*models.ShippingAddress, error)
	// ListByUser returns addresses with the default first.
	ListByUser(ctx context.Context, userID string) ([]*models.ShippingAddress, error)
	Update(ctx context.Context, addr *models.ShippingAddress) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	// AddItems locks the order row, requires Payment_Success and inserts all
	// items or none.
	AddItems(ctx context.Context, orderID string, items []models.OrderItem) error
	ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	// TransitionStatus moves the order from -> to only if its status is still
	// from. A lost race returns ErrStaleStatus. An empty paymentID keeps the
	// stored payment reference.
	TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus, paymentID string) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
}

// BookCatalog is the read-only view of the catalog.
type BookCatalog interface {
	FindBookByID(ctx context.Context, id int64) (*models.Book, error)
}

// OwnershipRepository records permanent user-book ownership.
type OwnershipRepository interface {
	// Grant records ownership of every book. An already-owned book fails the
	// whole call with a conflict.
	Grant(ctx context.Context, userID string, bookIDs []int64) error
	Owns(ctx context.Context, userID string, bookID int64) (bool, error)
}

type SessionRepository interface {
	// Get returns the user's session, or an empty one when none exists.
	Get(ctx context.Context, userID string) (*models.CheckoutSession, error)
	// Lock creates the session row if needed and locks it until the enclosing
	// transaction ends, so one user's payment steps run one at a time.
	Lock(ctx context.Context, userID string) (*models.CheckoutSession, error)
	SetShippingAddress(ctx context.Context, userID string, addressID int64) error
	SetOrder(ctx context.Context, userID, orderID string) error
	// ClearOrder drops the order reference if it still points at orderID.
	ClearOrder(ctx context.Context, userID, orderID string) error
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Carts     CartRepository
	Addresses AddressRepository
	Orders    OrderRepository
	Payments  PaymentRepository
	Books     BookCatalog
	Ownership OwnershipRepository
	Sessions  SessionRepository
}

// Store gives access to repositories and runs units of work atomically.
type Store interface {
	Repos() *Repositories
	// WithinTx runs fn against repositories bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repos *Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}

// BookCache caches catalog entries. Get returns (nil, nil) on a miss.
type BookCache interface {
	Get(ctx context.Context, id int64) (*models.Book, error)
	Set(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
}

// OrderCache caches orders in a terminal status. Get returns (nil, nil) on a miss.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
}

func generateOrderID() string {
	return "ord_" + uuid.NewString()
}

func generatePaymentID() string {
	return "pay_" + uuid.NewString()
}
