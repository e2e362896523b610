package port

import (
	"context"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
)

// Repository gives snapshot reads and opens transactions for mutations.
// Lookups of unknown ids return a domain NotFound error.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error)
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
	ListOffers(ctx context.Context, f domain.OfferFilter) ([]*domain.Offer, error)
	GetTrade(ctx context.Context, id string) (*domain.Trade, error)
	ListTrades(ctx context.Context, f domain.TradeFilter) ([]*domain.Trade, error)
	// ListStaleTrades returns trades in status created before cutoff, oldest first.
	ListStaleTrades(ctx context.Context, status domain.TradeStatus, cutoff time.Time, limit int) ([]*domain.Trade, error)
	GetDispute(ctx context.Context, id string) (*domain.Dispute, error)
	ListDisputes(ctx context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error)

	// AppendMessage stores m and assigns m.Seq.
	AppendMessage(ctx context.Context, m *domain.ChatMessage) error
	ListMessages(ctx context.Context, tradeID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error)

	Close(ctx context.Context)
}

// Tx is a unit of work. Lock* methods take an exclusive lock on the row that is
// held until Commit or Rollback; Rollback after Commit is a no-op.
// Implementations report lost races as a domain Conflict error.
type Tx interface {
	LockAccount(ctx context.Context, id string) (*domain.Account, error)
	SaveAccount(ctx context.Context, a *domain.Account) error
	// LockBalance returns a zero balance when the account holds no such currency yet.
	LockBalance(ctx context.Context, accountID, currency string) (*domain.Balance, error)
	SaveBalance(ctx context.Context, b *domain.Balance) error
	LockOffer(ctx context.Context, id string) (*domain.Offer, error)
	SaveOffer(ctx context.Context, o *domain.Offer) error
	LockTrade(ctx context.Context, id string) (*domain.Trade, error)
	SaveTrade(ctx context.Context, t *domain.Trade) error
	LockDispute(ctx context.Context, id string) (*domain.Dispute, error)
	SaveDispute(ctx context.Context, d *domain.Dispute) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
