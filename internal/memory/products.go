package memory

import (
	"context"
	"sync"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type ProductStore struct {
	mu       sync.Mutex
	products map[int64]*shop.Product
}

func NewProductStore(products ...shop.Product) *ProductStore {
	s := &ProductStore{products: map[int64]*shop.Product{}}
	for _, p := range products {
		cp := p
		s.products[p.ID] = &cp
	}
	return s
}

func (s *ProductStore) GetActive(_ context.Context, id int64) (shop.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || !p.Active {
		return shop.Product{}, shop.ErrNotFound
	}
	return *p, nil
}

func (s *ProductStore) Stock(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, shop.ErrNotFound
	}
	return p.Stock, nil
}

// takeUnit decrements stock if a unit is available. Lock order is always
// OrderStore before ProductStore.
func (s *ProductStore) takeUnit(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Stock <= 0 {
		return false
	}
	p.Stock--
	return true
}
