package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
)

var _ port.Cache = (*LocalCache)(nil)

// LocalCache keeps offer books in process memory. Each instance of the
// service has its own copy, so it suits single-node deployments.
type LocalCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewLocalCache(maxBooks int64, ttl time.Duration) (*LocalCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxBooks * 10,
		MaxCost:            maxBooks,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{c: c, ttl: ttl}, nil
}

func (c *LocalCache) SetOfferBook(ctx context.Context, market string, ob *domain.OfferBook) error {
	c.c.SetWithTTL(key(market), ob.DeepCopy(), 1, c.ttl)
	// make the write visible to the next Get
	c.c.Wait()
	return nil
}

func (c *LocalCache) GetOfferBook(ctx context.Context, market string) (*domain.OfferBook, error) {
	v, ok := c.c.Get(key(market))
	if !ok {
		return nil, nil
	}
	ob, ok := v.(*domain.OfferBook)
	if !ok {
		return nil, nil
	}
	return ob.DeepCopy(), nil
}

func (c *LocalCache) Invalidate(ctx context.Context, market string) error {
	c.c.Del(key(market))
	return nil
}

func (c *LocalCache) Close() {
	c.c.Close()
}
