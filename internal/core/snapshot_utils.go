package core

import (
	"context"
	"sort"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"go.uber.org/zap"
)

func marketKey(m domain.Market) string { return m.String() }

func (e *Engine) invalidateBook(ctx context.Context, m domain.Market) {
	if e.cache == nil {
		return
	}
	key := marketKey(m)
	e.bookMu.Lock()
	defer e.bookMu.Unlock()
	e.bookGen[key]++
	if err := e.cache.Invalidate(ctx, key); err != nil {
		e.log.Warn("offer book invalidate failed", zap.String("market", key), zap.Error(err))
	}
}

func (e *Engine) bookGeneration(key string) uint64 {
	e.bookMu.Lock()
	defer e.bookMu.Unlock()
	return e.bookGen[key]
}

// storeBook caches ob unless the market was invalidated since gen was read.
func (e *Engine) storeBook(ctx context.Context, key string, gen uint64, ob *domain.OfferBook) {
	e.bookMu.Lock()
	defer e.bookMu.Unlock()
	if e.bookGen[key] != gen {
		e.log.Debug("offer book changed during rebuild, not cached", zap.String("market", key))
		return
	}
	if err := e.cache.SetOfferBook(ctx, key, ob.DeepCopy()); err != nil {
		e.log.Warn("offer book cache set failed", zap.String("market", key), zap.Error(err))
	}
}

// getOrLoadBook serves the offer book from cache, rebuilding it from the
// repository on a miss.
func (e *Engine) getOrLoadBook(ctx context.Context, m domain.Market) (*domain.OfferBook, error) {
	key := marketKey(m)
	var gen uint64
	if e.cache != nil {
		gen = e.bookGeneration(key)
		if ob, err := e.cache.GetOfferBook(ctx, key); err == nil && ob != nil {
			return ob, nil
		}
	}
	offers, err := e.repo.ListOffers(ctx, domain.OfferFilter{Asset: m.Asset, Fiat: m.Fiat, Status: domain.OfferActive})
	if err != nil {
		return nil, err
	}
	ob := &domain.OfferBook{Market: key, Buy: []domain.Offer{}, Sell: []domain.Offer{}, Timestamp: e.now()}
	for _, o := range offers {
		if o.Side == domain.Buy {
			ob.Buy = append(ob.Buy, *o)
		} else {
			ob.Sell = append(ob.Sell, *o)
		}
	}
	sortOffers(ob)
	if e.cache != nil {
		e.storeBook(ctx, key, gen, ob)
	}
	return ob, nil
}

func sortOffers(ob *domain.OfferBook) {
	// buy: price desc, then oldest first
	sort.SliceStable(ob.Buy, func(i, j int) bool {
		if !ob.Buy[i].Price.Equal(ob.Buy[j].Price) {
			return ob.Buy[i].Price.GreaterThan(ob.Buy[j].Price)
		}
		return ob.Buy[i].CreatedAt.Before(ob.Buy[j].CreatedAt)
	})
	// sell: price asc, then oldest first
	sort.SliceStable(ob.Sell, func(i, j int) bool {
		if !ob.Sell[i].Price.Equal(ob.Sell[j].Price) {
			return ob.Sell[i].Price.LessThan(ob.Sell[j].Price)
		}
		return ob.Sell[i].CreatedAt.Before(ob.Sell[j].CreatedAt)
	})
}
