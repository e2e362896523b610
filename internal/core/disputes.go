package core

import (
	"context"
	"strings"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
	"go.uber.org/zap"
)

// OpenDispute freezes a paid trade until an admin resolves it.
func (e *Engine) OpenDispute(ctx context.Context, c domain.Caller, tradeID, reason string, evidence []string) (*domain.Trade, *domain.Dispute, error) {
	if err := requireCaller(c); err != nil {
		return nil, nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, nil, domain.Validation("dispute reason is required")
	}
	var (
		outT *domain.Trade
		outD *domain.Dispute
	)
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		now := e.now()
		t, err := tx.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if !t.IsParty(c.AccountID) {
			return domain.Unauthorized("account %s is not a party to trade %s", c.AccountID, t.ID)
		}
		if t.Status != domain.TradePending {
			return domain.InvalidState("trade %s is %s; disputes open only on paid trades", t.ID, t.Status)
		}
		d := &domain.Dispute{
			ID:        e.newID(),
			TradeID:   t.ID,
			OpenedBy:  c.AccountID,
			Reason:    reason,
			Evidence:  []string{},
			Status:    domain.DisputeOpen,
			CreatedAt: now,
		}
		if err := d.AddEvidence(evidence...); err != nil {
			return err
		}
		from := t.Status
		if err := t.Transition(domain.TradeDisputed, now); err != nil {
			return err
		}
		if err := tx.SaveTrade(ctx, t); err != nil {
			return err
		}
		if err := tx.SaveDispute(ctx, d); err != nil {
			return err
		}
		fx.moved(from, t.Status)
		ev := tradeEvent(domain.EventTradeDisputed, t, c.AccountID)
		ev.DisputeID = d.ID
		fx.emit(ev)
		outT, outD = t, d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("dispute opened", zap.String("dispute", outD.ID), zap.String("trade", outT.ID),
		zap.String("by", c.AccountID))
	return outT, outD, nil
}

// AttachEvidence adds evidence handles to an open dispute.
func (e *Engine) AttachEvidence(ctx context.Context, c domain.Caller, disputeID string, handles []string) (*domain.Dispute, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, domain.Validation("at least one evidence handle is required")
	}
	var out *domain.Dispute
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		d, err := tx.LockDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if !c.Admin {
			t, err := e.repo.GetTrade(ctx, d.TradeID)
			if err != nil {
				return err
			}
			if !t.IsParty(c.AccountID) {
				return domain.Unauthorized("account %s is not a party to dispute %s", c.AccountID, d.ID)
			}
		}
		if d.Status != domain.DisputeOpen {
			return domain.InvalidState("dispute %s is %s", d.ID, d.Status)
		}
		if err := d.AddEvidence(handles...); err != nil {
			return err
		}
		if err := tx.SaveDispute(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveDispute releases the frozen funds of a disputed trade to the buyer or
// refunds them to the seller. A dispute resolves once; later attempts fail
// with InvalidState and move nothing.
func (e *Engine) ResolveDispute(ctx context.Context, c domain.Caller, disputeID string, outcome domain.DisputeOutcome) (*domain.Trade, *domain.Dispute, error) {
	if err := requireAdmin(c); err != nil {
		return nil, nil, err
	}
	if !outcome.Valid() {
		return nil, nil, domain.Validation("outcome must be %s or %s", domain.ReleaseToBuyer, domain.RefundToSeller)
	}
	var (
		outT *domain.Trade
		outD *domain.Dispute
	)
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		d, err := tx.LockDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if d.Status != domain.DisputeOpen {
			return domain.InvalidState("dispute %s already resolved with %s", d.ID, d.Outcome)
		}
		t, err := tx.LockTrade(ctx, d.TradeID)
		if err != nil {
			return err
		}
		if t.Status != domain.TradeDisputed {
			return domain.InvalidState("trade %s is %s, not %s", t.ID, t.Status, domain.TradeDisputed)
		}
		var typ domain.EventType
		switch outcome {
		case domain.ReleaseToBuyer:
			err = e.settle(ctx, tx, fx, t)
			typ = domain.EventTradeCompleted
		case domain.RefundToSeller:
			err = e.refund(ctx, tx, fx, t, c.AccountID)
			typ = domain.EventTradeCancelled
		}
		if err != nil {
			return err
		}
		now := e.now()
		d.Status = domain.DisputeResolved
		d.Outcome = outcome
		d.ResolvedBy = c.AccountID
		d.ResolvedAt = &now
		if err := tx.SaveDispute(ctx, d); err != nil {
			return err
		}
		fx.emit(tradeEvent(typ, t, c.AccountID))
		ev := tradeEvent(domain.EventDisputeResolved, t, c.AccountID)
		ev.DisputeID = d.ID
		ev.Status = string(outcome)
		fx.emit(ev)
		outT, outD = t, d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("dispute resolved", zap.String("dispute", outD.ID), zap.String("trade", outT.ID),
		zap.String("outcome", string(outcome)), zap.String("by", c.AccountID))
	return outT, outD, nil
}

func (e *Engine) GetDispute(ctx context.Context, c domain.Caller, disputeID string) (*domain.Dispute, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	d, err := e.repo.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if c.Admin {
		return d, nil
	}
	t, err := e.repo.GetTrade(ctx, d.TradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(c.AccountID) {
		return nil, domain.Unauthorized("account %s is not a party to dispute %s", c.AccountID, d.ID)
	}
	return d, nil
}

// ListDisputes is an admin queue; parties may list the disputes of their own trade.
func (e *Engine) ListDisputes(ctx context.Context, c domain.Caller, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if !c.Admin {
		if f.TradeID == "" {
			return nil, domain.Unauthorized("admin role required")
		}
		if _, err := e.GetTrade(ctx, c, f.TradeID); err != nil {
			return nil, err
		}
	}
	f.Limit = clampLimit(f.Limit)
	return e.repo.ListDisputes(ctx, f)
}
