package pg

import (
	"fmt"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// numeric columns are read as text and parsed, keeping full precision.
const (
	accountCols = `id, verified, completed_trades, cancelled_trades, blocked_until, created_at, updated_at`
	balanceCols = `account_id, currency, total::text, reserved::text, updated_at`
	offerCols   = `id, owner_id, side, asset, fiat, price::text, total_amount::text, remaining::text, filled::text,
min_limit::text, max_limit::text, payment_method, contact, status, created_at, updated_at`
	tradeCols = `id, offer_id, buyer_id, seller_id, amount::text, asset, fiat, price::text, fee::text,
payment_method, status, cancelled_by, created_at, paid_at, completed_at, updated_at`
	disputeCols = `id, trade_id, opened_by, reason, evidence, status, outcome, resolved_by, created_at, resolved_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func parseDecimals(dst []*decimal.Decimal, src []string) error {
	for i, s := range src {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", s, err)
		}
		*dst[i] = v
	}
	return nil
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := r.Scan(&a.ID, &a.Verified, &a.CompletedTrades, &a.CancelledTrades, &a.BlockedUntil,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanBalance(r rowScanner) (*domain.Balance, error) {
	var (
		b               domain.Balance
		total, reserved string
	)
	if err := r.Scan(&b.AccountID, &b.Currency, &total, &reserved, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := parseDecimals([]*decimal.Decimal{&b.Total, &b.Reserved}, []string{total, reserved}); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanOffer(r rowScanner) (*domain.Offer, error) {
	var (
		o                                       domain.Offer
		side, status                            string
		price, total, remaining, filled, lo, hi string
	)
	if err := r.Scan(&o.ID, &o.OwnerID, &side, &o.Asset, &o.Fiat, &price, &total, &remaining, &filled,
		&lo, &hi, &o.PaymentMethod, &o.Contact, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OfferStatus(status)
	err := parseDecimals(
		[]*decimal.Decimal{&o.Price, &o.TotalAmount, &o.Remaining, &o.Filled, &o.MinLimit, &o.MaxLimit},
		[]string{price, total, remaining, filled, lo, hi},
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanTrade(r rowScanner) (*domain.Trade, error) {
	var (
		t                  domain.Trade
		status             string
		amount, price, fee string
	)
	if err := r.Scan(&t.ID, &t.OfferID, &t.BuyerID, &t.SellerID, &amount, &t.Asset, &t.Fiat, &price, &fee,
		&t.PaymentMethod, &status, &t.CancelledBy, &t.CreatedAt, &t.PaidAt, &t.CompletedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(status)
	if err := parseDecimals([]*decimal.Decimal{&t.Amount, &t.Price, &t.Fee}, []string{amount, price, fee}); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanDispute(r rowScanner) (*domain.Dispute, error) {
	var (
		d               domain.Dispute
		status, outcome string
	)
	if err := r.Scan(&d.ID, &d.TradeID, &d.OpenedBy, &d.Reason, &d.Evidence, &status, &outcome,
		&d.ResolvedBy, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	d.Status = domain.DisputeStatus(status)
	d.Outcome = domain.DisputeOutcome(outcome)
	if d.Evidence == nil {
		d.Evidence = []string{}
	}
	return &d, nil
}
