package in_memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
)

// MemoryRepo keeps all state in maps. Transactions are serialised by a
// single-slot semaphore; their writes are staged and applied on Commit.
type MemoryRepo struct {
	txSem chan struct{}

	mu       sync.RWMutex
	accounts map[string]*domain.Account
	balances map[balanceKey]*domain.Balance
	offers   map[string]*domain.Offer
	trades   map[string]*domain.Trade
	disputes map[string]*domain.Dispute
	messages map[string][]*domain.ChatMessage
	seq      int64
}

type balanceKey struct {
	account  string
	currency string
}

var _ port.Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		txSem:    make(chan struct{}, 1),
		accounts: make(map[string]*domain.Account),
		balances: make(map[balanceKey]*domain.Balance),
		offers:   make(map[string]*domain.Offer),
		trades:   make(map[string]*domain.Trade),
		disputes: make(map[string]*domain.Dispute),
		messages: make(map[string][]*domain.ChatMessage),
	}
}

func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	select {
	case r.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memTx{
		repo:     r,
		accounts: make(map[string]*domain.Account),
		balances: make(map[balanceKey]*domain.Balance),
		offers:   make(map[string]*domain.Offer),
		trades:   make(map[string]*domain.Trade),
		disputes: make(map[string]*domain.Dispute),
	}, nil
}

func (r *MemoryRepo) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.NotFound("account %s not found", id)
	}
	return cloneAccount(a), nil
}

func (r *MemoryRepo) ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Balance
	for k, b := range r.balances {
		if k.account == accountID {
			res = append(res, cloneBalance(b))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Currency < res[j].Currency })
	return res, nil
}

func (r *MemoryRepo) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, domain.NotFound("offer %s not found", id)
	}
	return cloneOffer(o), nil
}

func (r *MemoryRepo) ListOffers(ctx context.Context, f domain.OfferFilter) ([]*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Offer
	for _, o := range r.offers {
		if f.OwnerID != "" && o.OwnerID != f.OwnerID {
			continue
		}
		if f.Asset != "" && o.Asset != f.Asset {
			continue
		}
		if f.Fiat != "" && o.Fiat != f.Fiat {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		res = append(res, cloneOffer(o))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepo) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, domain.NotFound("trade %s not found", id)
	}
	return cloneTrade(t), nil
}

func (r *MemoryRepo) ListTrades(ctx context.Context, f domain.TradeFilter) ([]*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Trade
	for _, t := range r.trades {
		if f.AccountID != "" && !t.IsParty(f.AccountID) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		res = append(res, cloneTrade(t))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (r *MemoryRepo) ListStaleTrades(ctx context.Context, status domain.TradeStatus, cutoff time.Time, limit int) ([]*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Trade
	for _, t := range r.trades {
		if t.Status == status && t.CreatedAt.Before(cutoff) {
			res = append(res, cloneTrade(t))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *MemoryRepo) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, domain.NotFound("dispute %s not found", id)
	}
	return cloneDispute(d), nil
}

func (r *MemoryRepo) ListDisputes(ctx context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Dispute
	for _, d := range r.disputes {
		if f.TradeID != "" && d.TradeID != f.TradeID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		res = append(res, cloneDispute(d))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (r *MemoryRepo) AppendMessage(ctx context.Context, m *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[m.TradeID]; !ok {
		return domain.NotFound("trade %s not found", m.TradeID)
	}
	r.seq++
	m.Seq = r.seq
	cp := *m
	r.messages[m.TradeID] = append(r.messages[m.TradeID], &cp)
	return nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, tradeID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[tradeID]
	// messages are appended in Seq order
	i := sort.Search(len(msgs), func(i int) bool { return msgs[i].Seq > afterSeq })
	res := make([]*domain.ChatMessage, 0)
	for ; i < len(msgs) && (limit <= 0 || len(res) < limit); i++ {
		cp := *msgs[i]
		res = append(res, &cp)
	}
	return res, nil
}

func (r *MemoryRepo) Close(ctx context.Context) {}

type memTx struct {
	repo *MemoryRepo
	done bool

	accounts map[string]*domain.Account
	balances map[balanceKey]*domain.Balance
	offers   map[string]*domain.Offer
	trades   map[string]*domain.Trade
	disputes map[string]*domain.Dispute
}

func (tx *memTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	if a, ok := tx.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return tx.repo.GetAccount(ctx, id)
}

func (tx *memTx) SaveAccount(ctx context.Context, a *domain.Account) error {
	tx.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (tx *memTx) LockBalance(ctx context.Context, accountID, currency string) (*domain.Balance, error) {
	k := balanceKey{account: accountID, currency: currency}
	if b, ok := tx.balances[k]; ok {
		return cloneBalance(b), nil
	}
	tx.repo.mu.RLock()
	defer tx.repo.mu.RUnlock()
	if b, ok := tx.repo.balances[k]; ok {
		return cloneBalance(b), nil
	}
	return domain.NewBalance(accountID, currency), nil
}

func (tx *memTx) SaveBalance(ctx context.Context, b *domain.Balance) error {
	if b.Reserved.IsNegative() || b.Reserved.GreaterThan(b.Total) {
		return &domain.Error{Kind: domain.KindInternal, Message: "balance invariant violated for " + b.AccountID}
	}
	tx.balances[balanceKey{account: b.AccountID, currency: b.Currency}] = cloneBalance(b)
	return nil
}

func (tx *memTx) LockOffer(ctx context.Context, id string) (*domain.Offer, error) {
	if o, ok := tx.offers[id]; ok {
		return cloneOffer(o), nil
	}
	return tx.repo.GetOffer(ctx, id)
}

func (tx *memTx) SaveOffer(ctx context.Context, o *domain.Offer) error {
	tx.offers[o.ID] = cloneOffer(o)
	return nil
}

func (tx *memTx) LockTrade(ctx context.Context, id string) (*domain.Trade, error) {
	if t, ok := tx.trades[id]; ok {
		return cloneTrade(t), nil
	}
	return tx.repo.GetTrade(ctx, id)
}

func (tx *memTx) SaveTrade(ctx context.Context, t *domain.Trade) error {
	tx.trades[t.ID] = cloneTrade(t)
	return nil
}

func (tx *memTx) LockDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	if d, ok := tx.disputes[id]; ok {
		return cloneDispute(d), nil
	}
	return tx.repo.GetDispute(ctx, id)
}

func (tx *memTx) SaveDispute(ctx context.Context, d *domain.Dispute) error {
	tx.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return domain.InvalidState("transaction already finished")
	}
	r := tx.repo
	r.mu.Lock()
	for k, v := range tx.accounts {
		r.accounts[k] = v
	}
	for k, v := range tx.balances {
		r.balances[k] = v
	}
	for k, v := range tx.offers {
		r.offers[k] = v
	}
	for k, v := range tx.trades {
		r.trades[k] = v
	}
	for k, v := range tx.disputes {
		r.disputes[k] = v
	}
	r.mu.Unlock()
	tx.finish()
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *memTx) finish() {
	tx.done = true
	<-tx.repo.txSem
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.BlockedUntil != nil {
		t := *a.BlockedUntil
		cp.BlockedUntil = &t
	}
	return &cp
}

func cloneBalance(b *domain.Balance) *domain.Balance {
	cp := *b
	return &cp
}

func cloneOffer(o *domain.Offer) *domain.Offer {
	cp := *o
	return &cp
}

func cloneTrade(t *domain.Trade) *domain.Trade {
	cp := *t
	if t.PaidAt != nil {
		v := *t.PaidAt
		cp.PaidAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}

func cloneDispute(d *domain.Dispute) *domain.Dispute {
	cp := *d
	cp.Evidence = append([]string{}, d.Evidence...)
	if d.ResolvedAt != nil {
		v := *d.ResolvedAt
		cp.ResolvedAt = &v
	}
	return &cp
}
