package port

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/domain"
)

// Cache holds offer book snapshots keyed by market. A miss returns nil, nil.
type Cache interface {
	SetOfferBook(ctx context.Context, market string, ob *domain.OfferBook) error
	GetOfferBook(ctx context.Context, market string) (*domain.OfferBook, error)
	Invalidate(ctx context.Context, market string) error
}
