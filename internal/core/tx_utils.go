package core

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/olyamironova/escrow-engine/internal/port"
	"go.uber.org/zap"
)

func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

type transition struct {
	from, to domain.TradeStatus
}

// effects collects what a transaction wants done once it has committed.
type effects struct {
	events      []domain.Event
	transitions []transition
	markets     []domain.Market
}

func (fx *effects) emit(ev domain.Event) { fx.events = append(fx.events, ev) }

func (fx *effects) moved(from, to domain.TradeStatus) {
	fx.transitions = append(fx.transitions, transition{from: from, to: to})
}

func (fx *effects) touched(m domain.Market) { fx.markets = append(fx.markets, m) }

// inTx runs fn in a transaction, retrying it from scratch when the store
// reports a conflict. Side effects are applied only after a successful commit.
func (e *Engine) inTx(ctx context.Context, fn func(tx port.Tx, fx *effects) error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		fx := &effects{}
		err = withTx(ctx, e.repo, func(tx port.Tx) error { return fn(tx, fx) })
		if err == nil {
			e.apply(ctx, fx)
			return nil
		}
		if !domain.Retryable(err) {
			return err
		}
		metrics.TxConflicts.Inc()
		e.log.Warn("transaction conflict, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

func (e *Engine) apply(ctx context.Context, fx *effects) {
	for _, t := range fx.transitions {
		metrics.TradeTransitions.WithLabelValues(string(t.from), string(t.to)).Inc()
	}
	for _, m := range fx.markets {
		e.invalidateBook(ctx, m)
	}
	for _, ev := range fx.events {
		e.publish(ctx, ev)
	}
}

func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if e.notifier == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = e.newID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now()
	}
	// delivery must not be tied to the request that caused it
	if err := e.notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		e.log.Warn("notify failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}
