package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
)

var _ port.Tx = (*pgTx)(nil)

// pgTx takes row locks with SELECT ... FOR UPDATE; they are released by
// Commit or Rollback.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "account", id)
	}
	return a, nil
}

func (t *pgTx) SaveAccount(ctx context.Context, a *domain.Account) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO accounts(id, verified, completed_trades, cancelled_trades, blocked_until, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  verified = EXCLUDED.verified,
  completed_trades = EXCLUDED.completed_trades,
  cancelled_trades = EXCLUDED.cancelled_trades,
  blocked_until = EXCLUDED.blocked_until,
  updated_at = EXCLUDED.updated_at
`, a.ID, a.Verified, a.CompletedTrades, a.CancelledTrades, a.BlockedUntil, a.CreatedAt, a.UpdatedAt)
	return mapErr(err, "account", a.ID)
}

func (t *pgTx) LockBalance(ctx context.Context, accountID, currency string) (*domain.Balance, error) {
	// create the row first so there is something to lock
	_, err := t.tx.Exec(ctx, `
INSERT INTO balances(account_id, currency, total, reserved)
VALUES($1,$2,0,0)
ON CONFLICT (account_id, currency) DO NOTHING
`, accountID, currency)
	if err != nil {
		return nil, mapErr(err, "balance", accountID+"/"+currency)
	}
	b, err := scanBalance(t.tx.QueryRow(ctx,
		`SELECT `+balanceCols+` FROM balances WHERE account_id = $1 AND currency = $2 FOR UPDATE`,
		accountID, currency))
	if err != nil {
		return nil, mapErr(err, "balance", accountID+"/"+currency)
	}
	return b, nil
}

func (t *pgTx) SaveBalance(ctx context.Context, b *domain.Balance) error {
	_, err := t.tx.Exec(ctx, `
UPDATE balances SET total = $3, reserved = $4, updated_at = $5
WHERE account_id = $1 AND currency = $2
`, b.AccountID, b.Currency, b.Total.String(), b.Reserved.String(), b.UpdatedAt)
	return mapErr(err, "balance", b.AccountID+"/"+b.Currency)
}

func (t *pgTx) LockOffer(ctx context.Context, id string) (*domain.Offer, error) {
	o, err := scanOffer(t.tx.QueryRow(ctx, `SELECT `+offerCols+` FROM offers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "offer", id)
	}
	return o, nil
}

func (t *pgTx) SaveOffer(ctx context.Context, o *domain.Offer) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO offers(id, owner_id, side, asset, fiat, price, total_amount, remaining, filled,
  min_limit, max_limit, payment_method, contact, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  remaining = EXCLUDED.remaining,
  filled = EXCLUDED.filled,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.OwnerID, string(o.Side), o.Asset, o.Fiat, o.Price.String(), o.TotalAmount.String(),
		o.Remaining.String(), o.Filled.String(), o.MinLimit.String(), o.MaxLimit.String(),
		o.PaymentMethod, o.Contact, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return mapErr(err, "offer", o.ID)
}

func (t *pgTx) LockTrade(ctx context.Context, id string) (*domain.Trade, error) {
	tr, err := scanTrade(t.tx.QueryRow(ctx, `SELECT `+tradeCols+` FROM trades WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "trade", id)
	}
	return tr, nil
}

func (t *pgTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO trades(id, offer_id, buyer_id, seller_id, amount, asset, fiat, price, fee, payment_method,
  status, cancelled_by, created_at, paid_at, completed_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  fee = EXCLUDED.fee,
  status = EXCLUDED.status,
  cancelled_by = EXCLUDED.cancelled_by,
  paid_at = EXCLUDED.paid_at,
  completed_at = EXCLUDED.completed_at,
  updated_at = EXCLUDED.updated_at
`, tr.ID, tr.OfferID, tr.BuyerID, tr.SellerID, tr.Amount.String(), tr.Asset, tr.Fiat, tr.Price.String(),
		tr.Fee.String(), tr.PaymentMethod, string(tr.Status), tr.CancelledBy, tr.CreatedAt, tr.PaidAt,
		tr.CompletedAt, tr.UpdatedAt)
	return mapErr(err, "trade", tr.ID)
}

func (t *pgTx) LockDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	d, err := scanDispute(t.tx.QueryRow(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "dispute", id)
	}
	return d, nil
}

func (t *pgTx) SaveDispute(ctx context.Context, d *domain.Dispute) error {
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO disputes(id, trade_id, opened_by, reason, evidence, status, outcome, resolved_by, created_at, resolved_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  evidence = EXCLUDED.evidence,
  status = EXCLUDED.status,
  outcome = EXCLUDED.outcome,
  resolved_by = EXCLUDED.resolved_by,
  resolved_at = EXCLUDED.resolved_at
`, d.ID, d.TradeID, d.OpenedBy, d.Reason, evidence, string(d.Status), string(d.Outcome), d.ResolvedBy,
		d.CreatedAt, d.ResolvedAt)
	return mapErr(err, "dispute", d.ID)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return mapErr(t.tx.Commit(ctx), "commit", "")
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
