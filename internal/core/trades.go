package core

import (
	"context"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// CreateTrade commits the caller to amount of an active offer. The seller's
// funds are frozen and the offer's remaining amount shrinks in the same
// transaction.
func (e *Engine) CreateTrade(ctx context.Context, c domain.Caller, offerID string, amount decimal.Decimal) (*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}
	var out *domain.Trade
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		now := e.now()
		o, err := tx.LockOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.Status != domain.OfferActive {
			return domain.InvalidState("offer %s is %s", o.ID, o.Status)
		}
		if o.OwnerID == c.AccountID {
			return domain.Validation("cannot trade against own offer")
		}
		if err := o.CheckLimits(amount); err != nil {
			return err
		}
		buyer, seller := o.Parties(c.AccountID)

		bals, err := lockBalances(ctx, tx, o.Asset, seller)
		if err != nil {
			return err
		}
		if err := bals[seller].Reserve(amount); err != nil {
			return err
		}
		accts, err := lockAccounts(ctx, tx, buyer, seller)
		if err != nil {
			return err
		}
		// taker first so a blocked caller sees its own block
		for _, id := range []string{c.AccountID, o.OwnerID} {
			if a := accts[id]; a.IsBlocked(now) {
				return domain.Unauthorized("account %s is blocked until %s", a.ID, a.BlockedUntil.Format(time.RFC3339))
			}
		}

		o.Take(amount)
		o.UpdatedAt = now
		if err := tx.SaveOffer(ctx, o); err != nil {
			return err
		}
		if err := saveBalances(ctx, tx, now, bals); err != nil {
			return err
		}
		t := &domain.Trade{
			ID:            e.newID(),
			OfferID:       o.ID,
			BuyerID:       buyer,
			SellerID:      seller,
			Amount:        amount,
			Asset:         o.Asset,
			Fiat:          o.Fiat,
			Price:         o.Price,
			Fee:           decimal.Zero,
			PaymentMethod: o.PaymentMethod,
			Status:        domain.TradeInit,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.SaveTrade(ctx, t); err != nil {
			return err
		}
		fx.touched(o.Market())
		fx.emit(tradeEvent(domain.EventTradeCreated, t, c.AccountID))
		if e.cfg.LargeTradeThreshold.IsPositive() && amount.GreaterThanOrEqual(e.cfg.LargeTradeThreshold) {
			fx.emit(tradeEvent(domain.EventTradeLarge, t, c.AccountID))
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("trade created", zap.String("trade", out.ID), zap.String("offer", out.OfferID),
		zap.String("amount", out.Amount.String()))
	return out, nil
}

// MarkPaid records the buyer's off-platform payment.
func (e *Engine) MarkPaid(ctx context.Context, c domain.Caller, tradeID string) (*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	var out *domain.Trade
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		t, err := tx.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if c.AccountID != t.BuyerID {
			return domain.Unauthorized("only the buyer may mark trade %s paid", t.ID)
		}
		from := t.Status
		if err := t.Transition(domain.TradePending, e.now()); err != nil {
			return err
		}
		if err := tx.SaveTrade(ctx, t); err != nil {
			return err
		}
		fx.moved(from, t.Status)
		fx.emit(tradeEvent(domain.EventTradePaid, t, c.AccountID))
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmCompletion is the seller acknowledging payment; it releases the
// frozen funds to the buyer.
func (e *Engine) ConfirmCompletion(ctx context.Context, c domain.Caller, tradeID string) (*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	var out *domain.Trade
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		t, err := tx.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if c.AccountID != t.SellerID {
			return domain.Unauthorized("only the seller may confirm trade %s", t.ID)
		}
		// a disputed trade completes only through admin resolution
		if t.Status != domain.TradePending {
			return domain.InvalidState("trade %s is %s, not %s", t.ID, t.Status, domain.TradePending)
		}
		if err := e.settle(ctx, tx, fx, t); err != nil {
			return err
		}
		fx.emit(tradeEvent(domain.EventTradeCompleted, t, c.AccountID))
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelTrade is allowed to either party before payment is confirmed.
// Cancelling after the buyer marked the trade paid counts against the canceller.
func (e *Engine) CancelTrade(ctx context.Context, c domain.Caller, tradeID string) (*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	var out *domain.Trade
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		t, err := tx.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if !t.IsParty(c.AccountID) {
			return domain.Unauthorized("account %s is not a party to trade %s", c.AccountID, t.ID)
		}
		if t.Status != domain.TradeInit && t.Status != domain.TradePending {
			return domain.InvalidState("trade %s is %s and cannot be cancelled", t.ID, t.Status)
		}
		penalised := t.Status == domain.TradePending
		if err := e.refund(ctx, tx, fx, t, c.AccountID); err != nil {
			return err
		}
		if penalised {
			accts, err := lockAccounts(ctx, tx, c.AccountID)
			if err != nil {
				return err
			}
			a := accts[c.AccountID]
			e.penalise(a, t.UpdatedAt)
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
		}
		fx.emit(tradeEvent(domain.EventTradeCancelled, t, c.AccountID))
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) GetTrade(ctx context.Context, c domain.Caller, tradeID string) (*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	t, err := e.repo.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(c.AccountID) && !c.Admin {
		return nil, domain.Unauthorized("account %s is not a party to trade %s", c.AccountID, t.ID)
	}
	return t, nil
}

// ListTrades returns trades newest first. Non-admin callers only see their own.
func (e *Engine) ListTrades(ctx context.Context, c domain.Caller, f domain.TradeFilter) ([]*domain.Trade, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if !c.Admin {
		f.AccountID = c.AccountID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Validation("unknown trade status %q", f.Status)
	}
	f.Limit = clampLimit(f.Limit)
	return e.repo.ListTrades(ctx, f)
}

// settle completes t: the seller's frozen amount leaves the ledger, the buyer
// is credited net of the fee and the offer records the fill.
func (e *Engine) settle(ctx context.Context, tx port.Tx, fx *effects, t *domain.Trade) error {
	now := e.now()
	from := t.Status
	o, err := tx.LockOffer(ctx, t.OfferID)
	if err != nil {
		return err
	}
	fee := decimal.Zero
	if e.cfg.FeeAccountID != "" && e.cfg.FeeRate.IsPositive() {
		fee = t.Amount.Mul(e.cfg.FeeRate).Truncate(domain.AmountScale)
	}
	ids := []string{t.SellerID, t.BuyerID}
	if fee.IsPositive() {
		ids = append(ids, e.cfg.FeeAccountID)
	}
	bals, err := lockBalances(ctx, tx, t.Asset, ids...)
	if err != nil {
		return err
	}
	if err := bals[t.SellerID].Settle(t.Amount); err != nil {
		return err
	}
	bals[t.BuyerID].Credit(t.Amount.Sub(fee))
	if fee.IsPositive() {
		bals[e.cfg.FeeAccountID].Credit(fee)
	}
	if err := saveBalances(ctx, tx, now, bals); err != nil {
		return err
	}

	accts, err := lockAccounts(ctx, tx, t.BuyerID, t.SellerID)
	if err != nil {
		return err
	}
	for _, a := range accts {
		a.CompletedTrades++
		a.UpdatedAt = now
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
	}

	o.Fill(t.Amount)
	o.UpdatedAt = now
	if err := tx.SaveOffer(ctx, o); err != nil {
		return err
	}

	t.Fee = fee
	if err := t.Transition(domain.TradeCompleted, now); err != nil {
		return err
	}
	if err := tx.SaveTrade(ctx, t); err != nil {
		return err
	}
	fx.touched(o.Market())
	fx.moved(from, t.Status)
	return nil
}

// refund cancels t, unfreezing the seller's funds and giving the amount back
// to the offer.
func (e *Engine) refund(ctx context.Context, tx port.Tx, fx *effects, t *domain.Trade, by string) error {
	now := e.now()
	from := t.Status
	o, err := tx.LockOffer(ctx, t.OfferID)
	if err != nil {
		return err
	}
	bals, err := lockBalances(ctx, tx, t.Asset, t.SellerID)
	if err != nil {
		return err
	}
	if err := bals[t.SellerID].Unreserve(t.Amount); err != nil {
		return err
	}
	if err := saveBalances(ctx, tx, now, bals); err != nil {
		return err
	}

	o.Restore(t.Amount)
	o.UpdatedAt = now
	if err := tx.SaveOffer(ctx, o); err != nil {
		return err
	}

	if err := t.Transition(domain.TradeCancelled, now); err != nil {
		return err
	}
	t.CancelledBy = by
	if err := tx.SaveTrade(ctx, t); err != nil {
		return err
	}
	fx.touched(o.Market())
	fx.moved(from, t.Status)
	return nil
}
