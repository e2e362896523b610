package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the engine's business parameters.
type Config struct {
	// FeeRate is withheld from the buyer's credit on completion.
	FeeRate      decimal.Decimal
	FeeAccountID string
	// Reaching CancelThreshold penalised cancellations blocks the account for BlockDuration.
	CancelThreshold     int
	BlockDuration       time.Duration
	InitTradeTimeout    time.Duration
	LargeTradeThreshold decimal.Decimal
	MaxRetries          int
}

func DefaultConfig() Config {
	return Config{
		FeeRate:             decimal.Zero,
		FeeAccountID:        "fees",
		CancelThreshold:     10,
		BlockDuration:       24 * time.Hour,
		InitTradeTimeout:    30 * time.Minute,
		LargeTradeThreshold: decimal.NewFromInt(10000),
		MaxRetries:          3,
	}
}

// Engine implements the escrow trade lifecycle: offers, balance reservations,
// trades, disputes and trade chat.
type Engine struct {
	repo     port.Repository
	cache    port.Cache
	notifier port.Notifier
	log      *zap.Logger
	cfg      Config

	// bookMu guards bookGen, bumped on every invalidation so a rebuild that
	// raced a mutation is not written back to the cache.
	bookMu  sync.Mutex
	bookGen map[string]uint64

	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithNotifier(n port.Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithConfig(c Config) Option { return func(e *Engine) { e.cfg = c } }

// WithClock replaces time.Now, mainly for tests of time-based policies.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(repo port.Repository, cache port.Cache, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		cache:   cache,
		log:     zap.NewNop(),
		cfg:     DefaultConfig(),
		bookGen: make(map[string]uint64),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxRetries < 0 {
		e.cfg.MaxRetries = 0
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

func requireCaller(c domain.Caller) error {
	if !c.Valid() {
		return domain.Unauthorized("caller identity required")
	}
	return nil
}

func requireAdmin(c domain.Caller) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	if !c.Admin {
		return domain.Unauthorized("admin role required")
	}
	return nil
}

// lockBalances locks the currency balance of every distinct account in a
// stable order so concurrent transactions cannot deadlock on each other.
func lockBalances(ctx context.Context, tx port.Tx, currency string, accountIDs ...string) (map[string]*domain.Balance, error) {
	ids := distinctSorted(accountIDs)
	out := make(map[string]*domain.Balance, len(ids))
	for _, id := range ids {
		b, err := tx.LockBalance(ctx, id, currency)
		if err != nil {
			return nil, err
		}
		out[id] = b
	}
	return out, nil
}

func lockAccounts(ctx context.Context, tx port.Tx, accountIDs ...string) (map[string]*domain.Account, error) {
	ids := distinctSorted(accountIDs)
	out := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func saveBalances(ctx context.Context, tx port.Tx, now time.Time, bals map[string]*domain.Balance) error {
	for _, id := range distinctSorted(keys(bals)) {
		b := bals[id]
		b.UpdatedAt = now
		if err := tx.SaveBalance(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func distinctSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func tradeEvent(typ domain.EventType, t *domain.Trade, actor string) domain.Event {
	return domain.Event{
		Type:       typ,
		OfferID:    t.OfferID,
		TradeID:    t.ID,
		Actor:      actor,
		Recipients: []string{t.BuyerID, t.SellerID},
		Status:     string(t.Status),
		Amount:     t.Amount,
		Currency:   t.Asset,
	}
}
