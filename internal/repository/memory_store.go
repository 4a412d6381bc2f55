package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
)

// MemoryStore implements CartRepository with in-memory storage.
// Each user's cart has its own lock, so operations on different carts never
// wait on each other's read-modify-write sequences.
type MemoryStore struct {
	mu     sync.RWMutex
	carts  map[string]*userCart // userID -> cart
	owners map[string]string    // lineItemID -> userID

	now func() time.Time
}

type userCart struct {
	mu    sync.Mutex
	items []*domain.LineItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:  make(map[string]*userCart),
		owners: make(map[string]string),
		now:    time.Now,
	}
}

func (s *MemoryStore) cart(userID string, create bool) *userCart {
	s.mu.RLock()
	c, ok := s.carts[userID]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.carts[userID]; !ok {
		c = &userCart{}
		s.carts[userID] = c
	}
	return c
}

func (s *MemoryStore) owner(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.owners[id]
	return userID, ok
}

func (c *userCart) find(pred func(*domain.LineItem) bool) int {
	for i, item := range c.items {
		if pred(item) {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) ListItems(_ context.Context, userID string) ([]domain.LineItem, error) {
	c := s.cart(userID, false)
	if c == nil {
		return []domain.LineItem{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]domain.LineItem, 0, len(c.items))
	for _, item := range c.items {
		result = append(result, *item)
	}
	return result, nil
}

func (s *MemoryStore) AddItem(_ context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	c := s.cart(userID, true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.find(func(it *domain.LineItem) bool { return it.ProductID == productID }); i >= 0 {
		if c.items[i].Quantity > domain.MaxQuantity-quantity {
			return nil, ErrQuantityLimit
		}
		c.items[i].Quantity += quantity
		item := *c.items[i]
		return &item, nil
	}

	item := &domain.LineItem{
		ID:        domain.NewLineItemID(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: s.now(),
	}
	c.items = append(c.items, item)

	s.mu.Lock()
	s.owners[item.ID] = userID
	s.mu.Unlock()

	created := *item
	return &created, nil
}

// locked runs fn with the owning cart locked and the item's index resolved.
func (s *MemoryStore) locked(id string, fn func(c *userCart, i int) *domain.LineItem) (*domain.LineItem, error) {
	userID, ok := s.owner(id)
	if !ok {
		return nil, ErrItemNotFound
	}
	c := s.cart(userID, false)
	if c == nil {
		return nil, ErrItemNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The item may have been removed between the owner lookup and the lock.
	i := c.find(func(it *domain.LineItem) bool { return it.ID == id })
	if i < 0 {
		return nil, ErrItemNotFound
	}
	return fn(c, i), nil
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (*domain.LineItem, error) {
	return s.locked(id, func(c *userCart, i int) *domain.LineItem {
		item := *c.items[i]
		return &item
	})
}

func (s *MemoryStore) UpdateItemQuantity(_ context.Context, id string, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	return s.locked(id, func(c *userCart, i int) *domain.LineItem {
		c.items[i].Quantity = quantity
		item := *c.items[i]
		return &item
	})
}

func (s *MemoryStore) RemoveItem(_ context.Context, id string) (*domain.LineItem, error) {
	return s.locked(id, func(c *userCart, i int) *domain.LineItem {
		removed := *c.items[i]
		c.items = append(c.items[:i], c.items[i+1:]...)

		s.mu.Lock()
		delete(s.owners, id)
		s.mu.Unlock()
		return &removed
	})
}

func (s *MemoryStore) DeleteCart(_ context.Context, userID string) error {
	c := s.cart(userID, false)
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	for _, item := range c.items {
		delete(s.owners, item.ID)
	}
	s.mu.Unlock()

	c.items = nil
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
