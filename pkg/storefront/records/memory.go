package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProductStore is an in-memory ProductStore for tests and
// single-process runs.
type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]Product
	closed   bool
}

// NewMemoryProductStore creates an empty in-memory product store.
func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[string]Product)}
}

// Create implements ProductStore.
func (s *MemoryProductStore) Create(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Product{}, ErrStoreClosed
	}
	p.ID = uuid.New().String()
	s.products[p.ID] = p
	return p, nil
}

// GetByID implements ProductStore.
func (s *MemoryProductStore) GetByID(ctx context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Product{}, ErrStoreClosed
	}
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// GetByIDs implements ProductStore.
func (s *MemoryProductStore) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

// List implements ProductStore.
func (s *MemoryProductStore) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update implements ProductStore.
func (s *MemoryProductStore) Update(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Product{}, ErrStoreClosed
	}
	if _, ok := s.products[p.ID]; !ok {
		return Product{}, fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	s.products[p.ID] = p
	return p, nil
}

// Delete implements ProductStore.
func (s *MemoryProductStore) Delete(ctx context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Product{}, ErrStoreClosed
	}
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(s.products, id)
	return p, nil
}

// Close marks the store closed.
func (s *MemoryProductStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MemoryOrderStore is an in-memory OrderStore.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]map[string]Order // email -> order id -> order
	closed bool
}

// NewMemoryOrderStore creates an empty in-memory order store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]map[string]Order)}
}

// Create implements OrderStore.
func (s *MemoryOrderStore) Create(ctx context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Order{}, ErrStoreClosed
	}
	o.ID = NewOrderID()
	o.CreatedAt = time.Now().UnixMilli()
	byID, ok := s.orders[o.Email]
	if !ok {
		byID = make(map[string]Order)
		s.orders[o.Email] = byID
	}
	byID[o.ID] = o
	return o, nil
}

// Get implements OrderStore.
func (s *MemoryOrderStore) Get(ctx context.Context, email, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Order{}, ErrStoreClosed
	}
	o, ok := s.orders[email][id]
	if !ok {
		return Order{}, fmt.Errorf("order %s for %s: %w", id, email, ErrNotFound)
	}
	return o, nil
}

// ListByEmail implements OrderStore.
func (s *MemoryOrderStore) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Order, 0, len(s.orders[email]))
	for _, o := range s.orders[email] {
		out = append(out, o)
	}
	sortOrders(out)
	return out, nil
}

// List implements OrderStore.
func (s *MemoryOrderStore) List(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var out []Order
	for _, byID := range s.orders {
		for _, o := range byID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

// Delete implements OrderStore.
func (s *MemoryOrderStore) Delete(ctx context.Context, email, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Order{}, ErrStoreClosed
	}
	o, ok := s.orders[email][id]
	if !ok {
		return Order{}, fmt.Errorf("order %s for %s: %w", id, email, ErrNotFound)
	}
	delete(s.orders[email], id)
	if len(s.orders[email]) == 0 {
		delete(s.orders, email)
	}
	return o, nil
}

// Close marks the store closed.
func (s *MemoryOrderStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// NewOrderID generates a new order identifier.
func NewOrderID() string {
	return "ORDER#" + uuid.New().String()
}

func sortOrders(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].ID < orders[j].ID
	})
}
