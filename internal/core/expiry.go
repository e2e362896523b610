package core

import (
	"context"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/olyamironova/escrow-engine/internal/port"
	"go.uber.org/zap"
)

const sweepBatch = 100

// ExpireStaleTrades cancels trades left in INIT longer than InitTradeTimeout.
// The system is recorded as canceller and no party is penalised.
func (e *Engine) ExpireStaleTrades(ctx context.Context) (int, error) {
	if e.cfg.InitTradeTimeout <= 0 {
		return 0, nil
	}
	expired := 0
	for {
		cutoff := e.now().Add(-e.cfg.InitTradeTimeout)
		stale, err := e.repo.ListStaleTrades(ctx, domain.TradeInit, cutoff, sweepBatch)
		if err != nil {
			return expired, err
		}
		progressed := 0
		for _, s := range stale {
			ok, err := e.expireTrade(ctx, s.ID, cutoff)
			if err != nil {
				if ctx.Err() != nil {
					return expired, ctx.Err()
				}
				e.log.Warn("expire trade failed", zap.String("trade", s.ID), zap.Error(err))
				continue
			}
			progressed++
			if ok {
				expired++
				metrics.ExpiredTrades.Inc()
			}
		}
		if len(stale) < sweepBatch || progressed == 0 {
			break
		}
	}
	if expired > 0 {
		e.log.Info("expired stale trades", zap.Int("count", expired))
	}
	return expired, nil
}

func (e *Engine) expireTrade(ctx context.Context, tradeID string, cutoff time.Time) (bool, error) {
	expired := false
	err := e.inTx(ctx, func(tx port.Tx, fx *effects) error {
		expired = false
		t, err := tx.LockTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		// the buyer may have paid since the trade was listed
		if t.Status != domain.TradeInit || t.CreatedAt.After(cutoff) {
			return nil
		}
		if err := e.refund(ctx, tx, fx, t, domain.SystemAccount); err != nil {
			return err
		}
		fx.emit(tradeEvent(domain.EventTradeCancelled, t, domain.SystemAccount))
		expired = true
		return nil
	})
	return expired, err
}
