// Package memory is an in-process implementation of every repository, used
// for STORE_DRIVER=memory and unit tests. One mutex guards the whole store,
// which gives the same all-or-nothing behaviour as a database transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	cartdomain "github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
	catalogdomain "github.com/dwikikusuma/marketplace-checkout/internal/catalog/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	products map[string]catalogdomain.Product
	codes    map[string][]string
	carts    map[string]*cartdomain.Cart
	wallets  map[string]decimal.Decimal
	settings map[string]string
	orders   map[string]domain.Order
}

func New() *Store {
	return &Store{
		products: make(map[string]catalogdomain.Product),
		codes:    make(map[string][]string),
		carts:    make(map[string]*cartdomain.Cart),
		wallets:  make(map[string]decimal.Decimal),
		settings: make(map[string]string),
		orders:   make(map[string]domain.Order),
	}
}

func (s *Store) Products() *Products { return &Products{s: s} }
func (s *Store) Carts() *Carts       { return &Carts{s: s} }
func (s *Store) Wallets() *Wallets   { return &Wallets{s: s} }
func (s *Store) Settings() *Settings { return &Settings{s: s} }
func (s *Store) Orders() *Orders     { return &Orders{s: s} }

// Seeding helpers.

func (s *Store) PutProduct(p catalogdomain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddCodes(productID string, codes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[productID] = append(s.codes[productID], codes...)
}

func (s *Store) SetBalance(userID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID] = balance
}

func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

func (s *Store) Stock(productID string) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

type Products struct{ s *Store }

func (r *Products) Get(_ context.Context, id string) (catalogdomain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return catalogdomain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

type Carts struct{ s *Store }

func (r *Carts) Get(_ context.Context, userID string) (cartdomain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return cartdomain.Cart{}, apperr.ErrNotFound
	}
	return copyCart(c), nil
}

func (r *Carts) GetOrCreate(_ context.Context, userID string) (cartdomain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		now := time.Now()
		c = &cartdomain.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			Status:    cartdomain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.s.carts[userID] = c
	}
	return copyCart(c), nil
}

func (r *Carts) AddItem(_ context.Context, cartID string, item cartdomain.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.cartByID(cartID)
	if c == nil {
		return fmt.Errorf("cart %s: %w", cartID, apperr.ErrNotFound)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].RequiredFields = item.RequiredFields
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (r *Carts) ClearCart(_ context.Context, cartID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.cartByID(cartID); c != nil {
		c.Items = nil
	}
	return nil
}

func (s *Store) cartByID(id string) *cartdomain.Cart {
	for _, c := range s.carts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func copyCart(c *cartdomain.Cart) cartdomain.Cart {
	out := *c
	out.Items = append([]cartdomain.CartItem(nil), c.Items...)
	return out
}

type Wallets struct{ s *Store }

func (r *Wallets) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.wallets[userID], nil
}

type Settings struct{ s *Store }

func (r *Settings) LoadSettings(context.Context) (map[string]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]string, len(r.s.settings))
	for k, v := range r.s.settings {
		out[k] = v
	}
	return out, nil
}

type Orders struct{ s *Store }

func (r *Orders) CreateBatch(_ context.Context, batch domain.Batch) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	need := make(map[string]int32)
	for _, o := range batch.Orders {
		need[o.ProductID] += o.Quantity
	}
	for id, qty := range need {
		p, ok := s.products[id]
		if !ok || !p.Published || !p.InStock(qty) {
			return fmt.Errorf("%w: product %s", apperr.ErrOutOfStock, id)
		}
	}
	if batch.WalletDebit.IsPositive() && s.wallets[batch.BuyerID].LessThan(batch.WalletDebit) {
		return fmt.Errorf("%w: wallet debit of %s refused", apperr.ErrInsufficientFunds, batch.WalletDebit.StringFixed(2))
	}

	for id, qty := range need {
		p := s.products[id]
		if !p.UnlimitedStock {
			p.Stock -= qty
			s.products[id] = p
		}
	}
	if batch.WalletDebit.IsPositive() {
		s.wallets[batch.BuyerID] = s.wallets[batch.BuyerID].Sub(batch.WalletDebit)
	}
	for _, o := range batch.Orders {
		if o.Status == domain.StatusCompleted {
			o = s.release(o, o.UpdatedAt)
		}
		s.orders[o.ID] = o
	}
	return nil
}

func (r *Orders) Get(_ context.Context, id string) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func (r *Orders) ListByIDs(_ context.Context, ids []string) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, id := range ids {
		if o, ok := r.s.orders[id]; ok {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *Orders) UpdateBatch(_ context.Context, reference string, fn func([]domain.Order) ([]domain.Change, error)) ([]domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []domain.Order
	for _, o := range s.orders {
		if o.PaymentReference == reference {
			batch = append(batch, o)
		}
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("payment %s: %w", reference, apperr.ErrNotFound)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })

	changes, err := fn(batch)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(changes))
	for _, ch := range changes {
		out = append(out, s.apply(ch))
	}
	return out, nil
}

func (r *Orders) Update(_ context.Context, id string, fn func(domain.Order) (*domain.Change, error)) (domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	ch, err := fn(o)
	if err != nil {
		return domain.Order{}, err
	}
	if ch == nil {
		return o, nil
	}
	return s.apply(*ch), nil
}

func (r *Orders) ListByStatus(_ context.Context, status domain.Status, limit int, cursor string) ([]domain.Order, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var all []domain.Order
	for _, o := range r.s.orders {
		if o.Status == status {
			all = append(all, o)
		}
	}
	sortOrders(all)

	start := 0
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		start = len(all)
		if after, ok := r.s.orders[cursor]; ok {
			for i, o := range all {
				if after.CreatedAt.Before(o.CreatedAt) || (after.CreatedAt.Equal(o.CreatedAt) && after.ID < o.ID) {
					start = i
					break
				}
			}
		}
	}

	page := all[start:]
	if len(page) > limit {
		page = page[:limit]
	}
	var next string
	if len(page) == limit {
		next = page[len(page)-1].ID
	}
	return append([]domain.Order(nil), page...), next, nil
}

func (r *Orders) ListDueDeliveries(_ context.Context, now time.Time, limit int) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Order
	for _, o := range r.s.orders {
		if o.Status == domain.StatusAwaitingDelivery && o.DeliveryScheduledAt != nil && !o.DeliveryScheduledAt.After(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryScheduledAt.Before(*out[j].DeliveryScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Orders) ListExpiredReferences(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, o := range r.s.orders {
		if o.Status == domain.StatusPending && o.Expired(now) && !seen[o.PaymentReference] {
			seen[o.PaymentReference] = true
			out = append(out, o.PaymentReference)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// apply must be called with the lock held.
func (s *Store) apply(ch domain.Change) domain.Order {
	o := ch.Order
	if ch.Release {
		o = s.release(o, o.UpdatedAt)
	}
	if ch.Restock {
		if p, ok := s.products[o.ProductID]; ok && !p.UnlimitedStock {
			p.Stock += o.Quantity
			s.products[o.ProductID] = p
		}
	}
	if ch.Refund.IsPositive() {
		s.wallets[o.BuyerID] = s.wallets[o.BuyerID].Add(ch.Refund)
	}
	s.orders[o.ID] = o
	return o
}

func (s *Store) release(o domain.Order, now time.Time) domain.Order {
	if o.DeliveredAt != nil {
		return o
	}
	available := s.codes[o.ProductID]
	n := int(o.Quantity)
	if n > len(available) {
		n = len(available)
	}
	o.DeliveryPayload = strings.Join(available[:n], "\n")
	s.codes[o.ProductID] = available[n:]
	o.DeliveredAt = &now
	return o
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}
