package in_memory

import (
	"context"
	"sync"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
)

type Cache struct {
	mu    sync.Mutex
	store map[string]*domain.OfferBook
}

var _ port.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{store: make(map[string]*domain.OfferBook)}
}

func (c *Cache) SetOfferBook(ctx context.Context, market string, ob *domain.OfferBook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[market] = ob.DeepCopy()
	return nil
}

func (c *Cache) GetOfferBook(ctx context.Context, market string) (*domain.OfferBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ob, ok := c.store[market]
	if !ok {
		return nil, nil
	}
	return ob.DeepCopy(), nil
}

func (c *Cache) Invalidate(ctx context.Context, market string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, market)
	return nil
}
