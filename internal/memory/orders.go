// Package memory holds mutex-guarded in-memory stores with the same
// conditional-update semantics as the Postgres repositories. They back unit
// tests and make the race behaviour of settlement checkable without a
// database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type OrderStore struct {
	mu       sync.Mutex
	orders   map[string]*shop.Order
	products *ProductStore
}

// NewOrderStore wires the store to a product store so Settle can decrement
// stock under the same lock ordering as the database transaction.
func NewOrderStore(products *ProductStore) *OrderStore {
	return &OrderStore{orders: map[string]*shop.Order{}, products: products}
}

func (s *OrderStore) Insert(_ context.Context, o *shop.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *OrderStore) Get(_ context.Context, orderID string) (*shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, shop.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) ListPending(_ context.Context) ([]shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shop.Order
	for _, o := range s.orders {
		if o.Status == shop.StatusPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *OrderStore) Expire(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != shop.StatusPending {
		return false, nil
	}
	o.Status = shop.StatusExpired
	return true, nil
}

func (s *OrderStore) Settle(_ context.Context, orderID string, productID int64, fixed bool, paidAt time.Time) (shop.SettleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != shop.StatusPending {
		return shop.SettleLost, nil
	}

	if fixed && s.products != nil && !s.products.takeUnit(productID) {
		o.Status = shop.StatusOutOfStock
		o.PaidAt = nil
		return shop.SettleSoldOut, nil
	}

	o.Status = shop.StatusPaid
	o.PaidAt = &paidAt
	return shop.SettleWon, nil
}
