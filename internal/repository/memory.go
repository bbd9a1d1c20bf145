package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

type ownershipKey struct {
	userID string
	bookID int64
}

type cartItemKey struct {
	cartID int64
	bookID int64
}

// memState is the whole in-memory dataset. Values are stored by value so a
// shallow map copy is enough to snapshot it.
type memState struct {
	seq        int64
	carts      map[int64]models.Cart
	cartByUser map[string]int64
	items      map[cartItemKey]models.CartItem
	addresses  map[int64]models.ShippingAddress
	orders     map[string]models.Order
	orderSeq   map[string]int64
	orderItems map[string][]models.OrderItem
	payments   map[string]models.Payment
	books      map[int64]models.Book
	owned      map[ownershipKey]time.Time
	sessions   map[string]models.CheckoutSession
}

func newMemState() *memState {
	return &memState{
		carts:      make(map[int64]models.Cart),
		cartByUser: make(map[string]int64),
		items:      make(map[cartItemKey]models.CartItem),
		addresses:  make(map[int64]models.ShippingAddress),
		orders:     make(map[string]models.Order),
		orderSeq:   make(map[string]int64),
		orderItems: make(map[string][]models.OrderItem),
		payments:   make(map[string]models.Payment),
		books:      make(map[int64]models.Book),
		owned:      make(map[ownershipKey]time.Time),
		sessions:   make(map[string]models.CheckoutSession),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:        s.seq,
		carts:      make(map[int64]models.Cart, len(s.carts)),
		cartByUser: make(map[string]int64, len(s.cartByUser)),
		items:      make(map[cartItemKey]models.CartItem, len(s.items)),
		addresses:  make(map[int64]models.ShippingAddress, len(s.addresses)),
		orders:     make(map[string]models.Order, len(s.orders)),
		orderSeq:   make(map[string]int64, len(s.orderSeq)),
		orderItems: make(map[string][]models.OrderItem, len(s.orderItems)),
		payments:   make(map[string]models.Payment, len(s.payments)),
		books:      make(map[int64]models.Book, len(s.books)),
		owned:      make(map[ownershipKey]time.Time, len(s.owned)),
		sessions:   make(map[string]models.CheckoutSession, len(s.sessions)),
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.owned {
		c.owned[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	return c
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

// MemoryStore is an in-process Store. Transactions run serially on a private
// copy of the state which replaces the live state on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// SeedBook adds or replaces a catalog entry.
func (m *MemoryStore) SeedBook(book models.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.books[book.ID] = book
}

// RemoveBook drops a book from the catalog. Cart items referencing it stay.
func (m *MemoryStore) RemoveBook(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.books, id)
}

func (m *MemoryStore) Repos() *Repositories {
	return m.reposFor(&memAccess{store: m})
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(repos *Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.Internal("begin transaction", err)
	}

	snapshot := m.state.clone()
	if err := fn(m.reposFor(&memAccess{tx: snapshot})); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) reposFor(a *memAccess) *Repositories {
	return &Repositories{
		Carts:     &memCarts{a},
		Addresses: &memAddresses{a},
		Orders:    &memOrders{a},
		Payments:  &memPayments{a},
		Books:     &memBooks{a},
		Ownership: &memOwnership{a},
		Sessions:  &memSessions{a},
	}
}

// memAccess runs a function against either a transaction snapshot or the
// live state under the store lock.
type memAccess struct {
	store *MemoryStore
	tx    *memState
}

func (a *memAccess) do(fn func(s *memState) error) error {
	if a.tx != nil {
		return fn(a.tx)
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.state)
}

type memCarts struct{ *memAccess }

func (r *memCarts) GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.do(func(s *memState) error {
		if id, ok := s.cartByUser[userID]; ok {
			cart = s.carts[id]
			return nil
		}
		cart = models.Cart{ID: s.nextID(), UserID: userID, CreatedAt: time.Now().UTC()}
		s.carts[cart.ID] = cart
		s.cartByUser[userID] = cart.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *memCarts) GetByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.do(func(s *memState) error {
		id, ok := s.cartByUser[userID]
		if !ok {
			return errors.ErrNotFound
		}
		cart = s.carts[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *memCarts) AddOrUpdateItem(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, errors.NewValidationError("quantity", "quantity must be a positive integer")
	}
	var item models.CartItem
	err := r.do(func(s *memState) error {
		if _, ok := s.carts[cartID]; !ok {
			return errors.ErrNotFound
		}
		if _, ok := s.books[bookID]; !ok {
			return errors.NewNotFound("book_not_found", "book not found")
		}
		key := cartItemKey{cartID, bookID}
		existing, ok := s.items[key]
		if ok {
			existing.Quantity += quantity
			item = existing
		} else {
			item = models.CartItem{ID: s.nextID(), CartID: cartID, BookID: bookID, Quantity: quantity, AddedAt: time.Now().UTC()}
		}
		s.items[key] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *memCarts) ListItems(ctx context.Context, cartID int64) ([]*models.CartLine, error) {
	lines := make([]*models.CartLine, 0)
	err := r.do(func(s *memState) error {
		for key, item := range s.items {
			if key.cartID != cartID {
				continue
			}
			book, ok := s.books[item.BookID]
			lines = append(lines, &models.CartLine{
				CartItem:    item,
				Title:       book.Title,
				Author:      book.Author,
				Price:       book.Price,
				CoverURL:    book.CoverURL,
				Unavailable: !ok,
			})
		}
		return nil
	})
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].AddedAt.After(lines[j].AddedAt)
		}
		return lines[i].ID > lines[j].ID
	})
	return lines, err
}

func (r *memCarts) SetItemQuantity(ctx context.Context, cartID, bookID int64, quantity int) (*models.CartItem, error) {
	if quantity < 0 {
		return nil, errors.NewValidationError("quantity", "quantity must not be negative")
	}
	if quantity == 0 {
		removed, err := r.RemoveItem(ctx, cartID, bookID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, errors.ErrNotFound
		}
		return nil, nil
	}
	var item models.CartItem
	err := r.do(func(s *memState) error {
		key := cartItemKey{cartID, bookID}
		existing, ok := s.items[key]
		if !ok {
			return errors.ErrNotFound
		}
		existing.Quantity = quantity
		s.items[key] = existing
		item = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *memCarts) RemoveItem(ctx context.Context, cartID, bookID int64) (bool, error) {
	var removed bool
	err := r.do(func(s *memState) error {
		key := cartItemKey{cartID, bookID}
		if _, ok := s.items[key]; ok {
			delete(s.items, key)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (r *memCarts) Clear(ctx context.Context, cartID int64) (int64, error) {
	var n int64
	err := r.do(func(s *memState) error {
		for key := range s.items {
			if key.cartID == cartID {
				delete(s.items, key)
				n++
			}
		}
		return nil
	})
	return n, err
}

type memAddresses struct{ *memAccess }

func (r *memAddresses) Insert(ctx context.Context, addr *models.ShippingAddress) error {
	return r.do(func(s *memState) error {
		if addr.IsDefault {
			for _, a := range s.addresses {
				if a.UserID == addr.UserID && a.IsDefault {
					return errors.NewConflict("conflict", "user already has a default address")
				}
			}
		}
		addr.ID = s.nextID()
		addr.CreatedAt = time.Now().UTC()
		s.addresses[addr.ID] = *addr
		return nil
	})
}

func (r *memAddresses) ClearDefault(ctx context.Context, userID string) error {
	return r.do(func(s *memState) error {
		for id, a := range s.addresses {
			if a.UserID == userID && a.IsDefault {
				a.IsDefault = false
				s.addresses[id] = a
			}
		}
		return nil
	})
}

func (r *memAddresses) SetDefault(ctx context.Context, id int64, userID string) error {
	return r.do(func(s *memState) error {
		a, ok := s.addresses[id]
		if !ok || a.UserID != userID {
			return errors.NewNotFound("address_not_found", "shipping address not found")
		}
		for _, other := range s.addresses {
			if other.ID != id && other.UserID == userID && other.IsDefault {
				return errors.NewConflict("conflict", "user already has a default address")
			}
		}
		a.IsDefault = true
		s.addresses[id] = a
		return nil
	})
}

func (r *memAddresses) GetForUser(ctx context.Context, id int64, userID string) (*models.ShippingAddress, error) {
	var addr models.ShippingAddress
	err := r.do(func(s *memState) error {
		a, ok := s.addresses[id]
		if !ok || a.UserID != userID {
			return errors.NewNotFound("address_not_found", "shipping address not found")
		}
		addr = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *memAddresses) ListByUser(ctx context.Context, userID string) ([]*models.ShippingAddress, error) {
	addrs := make([]*models.ShippingAddress, 0)
	err := r.do(func(s *memState) error {
		for _, a := range s.addresses {
			if a.UserID == userID {
				a := a
				addrs = append(addrs, &a)
			}
		}
		return nil
	})
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].IsDefault != addrs[j].IsDefault {
			return addrs[i].IsDefault
		}
		return addrs[i].ID > addrs[j].ID
	})
	return addrs, err
}

func (r *memAddresses) Update(ctx context.Context, addr *models.ShippingAddress) error {
	return r.do(func(s *memState) error {
		existing, ok := s.addresses[addr.ID]
		if !ok || existing.UserID != addr.UserID {
			return errors.NewNotFound("address_not_found", "shipping address not found")
		}
		existing.Line1 = addr.Line1
		existing.Line2 = addr.Line2
		existing.City = addr.City
		existing.Province = addr.Province
		existing.PostalCode = addr.PostalCode
		existing.Country = addr.Country
		s.addresses[addr.ID] = existing
		return nil
	})
}

type memOrders struct{ *memAccess }

func (r *memOrders) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = generateOrderID()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.Total.IsNegative() {
		return errors.NewValidationError("total", "order total must not be negative")
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	return r.do(func(s *memState) error {
		if _, ok := s.orders[order.ID]; ok {
			return errors.NewConflict("conflict", "order already exists")
		}
		stored := *order
		stored.Items = nil
		s.orders[order.ID] = stored
		s.orderSeq[order.ID] = s.nextID()
		return nil
	})
}

func (r *memOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.do(func(s *memState) error {
		o, ok := s.orders[id]
		if !ok {
			return errors.NewNotFound("order_not_found", "order not found")
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *memOrders) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	all := make([]*models.Order, 0)
	seq := make(map[string]int64)
	err := r.do(func(s *memState) error {
		for _, o := range s.orders {
			if o.UserID == userID {
				o := o
				all = append(all, &o)
				seq[o.ID] = s.orderSeq[o.ID]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return seq[all[i].ID] > seq[all[j].ID]
	})
	if offset >= len(all) {
		return []*models.Order{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memOrders) AddItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	if len(items) == 0 {
		return errors.NewValidationError("items", "order must contain at least one item")
	}
	return r.do(func(s *memState) error {
		o, ok := s.orders[orderID]
		if !ok {
			return errors.NewNotFound("order_not_found", "order not found")
		}
		if o.Status != models.OrderStatusPaymentSuccess {
			return errors.NewInvalidState("invalid_order_status",
				fmt.Sprintf("items can only be added to a paid order, current status is %s", o.Status))
		}
		seen := make(map[int64]bool, len(s.orderItems[orderID])+len(items))
		for _, existing := range s.orderItems[orderID] {
			seen[existing.BookID] = true
		}
		added := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if seen[item.BookID] {
				return errors.NewConflict("conflict", "order item already exists")
			}
			if _, ok := s.books[item.BookID]; !ok {
				return errors.NewNotFound("book_not_found", "book not found")
			}
			if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
				return errors.NewValidationError("items", "order item quantity and price must be positive")
			}
			seen[item.BookID] = true
			item.ID = s.nextID()
			item.OrderID = orderID
			added = append(added, item)
		}
		s.orderItems[orderID] = append(s.orderItems[orderID], added...)
		return nil
	})
}

func (r *memOrders) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.do(func(s *memState) error {
		items = append([]models.OrderItem{}, s.orderItems[orderID]...)
		return nil
	})
	return items, err
}

func (r *memOrders) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus, paymentID string) error {
	if !models.CanTransition(from, to) {
		return errors.NewInvalidState("invalid_transition",
			fmt.Sprintf("cannot move order from %s to %s", from, to))
	}
	return r.do(func(s *memState) error {
		o, ok := s.orders[id]
		if !ok || o.Status != from {
			return errors.ErrStaleStatus
		}
		o.Status = to
		if paymentID != "" {
			o.PaymentID = paymentID
		}
		o.UpdatedAt = time.Now().UTC()
		s.orders[id] = o
		return nil
	})
}

type memPayments struct{ *memAccess }

func (r *memPayments) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = generatePaymentID()
	}
	p.CreatedAt = time.Now().UTC()
	return r.do(func(s *memState) error {
		if _, ok := s.orders[p.OrderID]; !ok {
			return errors.NewNotFound("order_not_found", "order not found")
		}
		s.payments[p.ID] = *p
		return nil
	})
}

func (r *memPayments) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := r.do(func(s *memState) error {
		found, ok := s.payments[id]
		if !ok {
			return errors.NewNotFound("payment_not_found", "payment not found")
		}
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *memPayments) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var latest *models.Payment
	err := r.do(func(s *memState) error {
		for _, p := range s.payments {
			if p.OrderID != orderID {
				continue
			}
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
				p := p
				latest = &p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, errors.NewNotFound("payment_not_found", "payment not found")
	}
	return latest, nil
}

type memBooks struct{ *memAccess }

func (r *memBooks) FindBookByID(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	err := r.do(func(s *memState) error {
		b, ok := s.books[id]
		if !ok {
			return errors.NewNotFound("book_not_found", "book not found")
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

type memOwnership struct{ *memAccess }

func (r *memOwnership) Grant(ctx context.Context, userID string, bookIDs []int64) error {
	return r.do(func(s *memState) error {
		for i, id := range bookIDs {
			if _, ok := s.owned[ownershipKey{userID, id}]; ok {
				return errors.NewConflict("already_owned", "one or more books are already owned")
			}
			for _, prev := range bookIDs[:i] {
				if prev == id {
					return errors.NewConflict("already_owned", "one or more books are already owned")
				}
			}
		}
		now := time.Now().UTC()
		for _, id := range bookIDs {
			s.owned[ownershipKey{userID, id}] = now
		}
		return nil
	})
}

func (r *memOwnership) Owns(ctx context.Context, userID string, bookID int64) (bool, error) {
	var owned bool
	err := r.do(func(s *memState) error {
		_, owned = s.owned[ownershipKey{userID, bookID}]
		return nil
	})
	return owned, err
}

type memSessions struct{ *memAccess }

func (r *memSessions) Get(ctx context.Context, userID string) (*models.CheckoutSession, error) {
	session := models.CheckoutSession{UserID: userID}
	err := r.do(func(s *memState) error {
		if found, ok := s.sessions[userID]; ok {
			session = found
		}
		return nil
	})
	return &session, err
}

// Lock relies on WithinTx holding the store mutex for the whole transaction.
func (r *memSessions) Lock(ctx context.Context, userID string) (*models.CheckoutSession, error) {
	return r.Get(ctx, userID)
}

func (r *memSessions) SetShippingAddress(ctx context.Context, userID string, addressID int64) error {
	return r.do(func(s *memState) error {
		session := s.sessions[userID]
		session.UserID = userID
		id := addressID
		session.ShippingAddressID = &id
		session.UpdatedAt = time.Now().UTC()
		s.sessions[userID] = session
		return nil
	})
}

func (r *memSessions) SetOrder(ctx context.Context, userID, orderID string) error {
	return r.do(func(s *memState) error {
		session := s.sessions[userID]
		session.UserID = userID
		session.OrderID = orderID
		session.UpdatedAt = time.Now().UTC()
		s.sessions[userID] = session
		return nil
	})
}

func (r *memSessions) ClearOrder(ctx context.Context, userID, orderID string) error {
	return r.do(func(s *memState) error {
		session, ok := s.sessions[userID]
		if !ok || session.OrderID != orderID {
			return nil
		}
		session.OrderID = ""
		session.UpdatedAt = time.Now().UTC()
		s.sessions[userID] = session
		return nil
	})
}
